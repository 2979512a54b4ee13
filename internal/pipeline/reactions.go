package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zapdesk/zapdesk/internal/utils"
)

type pendingReaction struct {
	companyID int64
	targetID  string
	userKey   string
	emoji     string
	attempts  int
}

// reactionBuffer parks reactions whose target message has not been persisted
// yet. WhatsApp delivers reactions and their targets on independent paths, so
// a reaction can arrive first; we retry lookup a few times before discarding.
type reactionBuffer struct {
	apply       func(ctx context.Context, r pendingReaction) (bool, error)
	maxAttempts int
	interval    time.Duration

	queue   chan pendingReaction
	done    chan struct{}
	wg      sync.WaitGroup
	retries sync.WaitGroup
}

func newReactionBuffer(apply func(ctx context.Context, r pendingReaction) (bool, error), maxAttempts int, interval time.Duration) *reactionBuffer {
	return &reactionBuffer{
		apply:       apply,
		maxAttempts: maxAttempts,
		interval:    interval,
		queue:       make(chan pendingReaction, 256),
		done:        make(chan struct{}),
	}
}

func (b *reactionBuffer) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.run(ctx)
}

// Stop ends the loop and waits for any armed retry timer. The queue channel
// is never closed: a late Enqueue finds no consumer and falls into the drop
// branch instead of panicking.
func (b *reactionBuffer) Stop() {
	close(b.done)
	b.wg.Wait()
	b.retries.Wait()
}

// Enqueue hands a reaction to the retry loop. Drops with a warning when the
// buffer is saturated; reactions are cosmetic and must not block the pipeline.
func (b *reactionBuffer) Enqueue(r pendingReaction) {
	select {
	case b.queue <- r:
	default:
		utils.Zlog.Warn("Reaction buffer full, dropping reaction",
			zap.Int64("company_id", r.companyID),
			zap.String("target_message_id", r.targetID))
	}
}

func (b *reactionBuffer) run(ctx context.Context) {
	defer b.wg.Done()

	for {
		var r pendingReaction
		select {
		case <-b.done:
			return
		case r = <-b.queue:
		}

		applied, err := b.apply(ctx, r)
		if err != nil {
			utils.Zlog.Warn("Reaction apply failed",
				zap.Int64("company_id", r.companyID),
				zap.String("target_message_id", r.targetID),
				zap.Error(err))
		}
		if applied || err != nil {
			continue
		}

		// Target not persisted yet.
		r.attempts++
		if r.attempts >= b.maxAttempts {
			utils.Zlog.Warn("Discarding reaction, target message never arrived",
				zap.Int64("company_id", r.companyID),
				zap.String("target_message_id", r.targetID),
				zap.Int("attempts", r.attempts))
			continue
		}

		b.retries.Add(1)
		go func(r pendingReaction) {
			defer b.retries.Done()
			select {
			case <-ctx.Done():
			case <-b.done:
			case <-time.After(b.interval):
				b.Enqueue(r)
			}
		}(r)
	}
}
