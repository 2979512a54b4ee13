package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLocksSerializeSameKey(t *testing.T) {
	locks := newKeyedLocks()

	const n = 50
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Acquire("7:1")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, n, counter)
}

func TestKeyedLocksIndependentKeys(t *testing.T) {
	locks := newKeyedLocks()

	releaseA := locks.Acquire("7:1")
	done := make(chan struct{})
	go func() {
		release := locks.Acquire("7:2")
		release()
		close(done)
	}()

	// A held lock on another conversation must not block this one.
	<-done
	releaseA()
}

func TestKeyedLocksDropEntriesWhenIdle(t *testing.T) {
	locks := newKeyedLocks()

	release := locks.Acquire("7:1")
	release()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.entries)
}
