package indexer

import (
	"context"
	"time"
)

// Limiter is a minimal interface to rate-limit indexer calls.
type Limiter interface {
	Wait(ctx context.Context) error
}

// nopLimiter allows unlimited throughput.
type nopLimiter struct{}

func (nopLimiter) Wait(ctx context.Context) error { return ctx.Err() }

// qpsLimiter issues 1 token every tick to approximate QPS limiting.
type qpsLimiter struct {
	ch <-chan time.Time
}

func (l qpsLimiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ch:
		return nil
	}
}

// NewLimiter returns a Limiter enforcing req/s. If rate <= 0, returns unlimited.
func NewLimiter(rate int) Limiter {
	if rate <= 0 {
		return nopLimiter{}
	}
	period := time.Second / time.Duration(rate)
	if period <= 0 {
		period = time.Nanosecond
	}
	// The limiter lives for the whole process so the ticker is never stopped.
	t := time.NewTicker(period)
	return qpsLimiter{ch: t.C}
}

// Limited wraps a Querier with a Limiter.
type Limited struct {
	q Querier
	l Limiter
}

func WrapWithLimiter(q Querier, l Limiter) Querier { return Limited{q: q, l: l} }

func (r Limited) Query(ctx context.Context, entity Entity, q Query) ([]Row, error) {
	if err := r.l.Wait(ctx); err != nil {
		return nil, err
	}
	return r.q.Query(ctx, entity, q)
}
