package tickets

import (
	"context"
	"fmt"
	"time"
)

// SequenceSource hands out monotonically increasing values. Backed by a
// database sequence in production so numbers stay unique across processes.
type SequenceSource interface {
	NextProtocolSeq(ctx context.Context) (int64, error)
}

// ProtocolGenerator produces human-presentable close protocols of the form
// 20260828000123: date prefix plus a zero-padded sequence. Uniqueness is
// still enforced by the storage constraint, not assumed from the sequence.
type ProtocolGenerator struct {
	seq SequenceSource
	now func() time.Time
}

func NewProtocolGenerator(seq SequenceSource) *ProtocolGenerator {
	return &ProtocolGenerator{seq: seq, now: time.Now}
}

func (g *ProtocolGenerator) Next(ctx context.Context) (string, error) {
	n, err := g.seq.NextProtocolSeq(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to generate protocol candidate: %w", err)
	}
	return fmt.Sprintf("%s%06d", g.now().Format("20060102"), n%1000000), nil
}
