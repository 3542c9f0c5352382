package gate

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Stats is a point-in-time view of admission. Limit 0 means unbounded.
type Stats struct {
	Limit  int64 `json:"limit"`
	Active int64 `json:"active"`
	Queued int64 `json:"queued"`
}

// Gate admits invocations of the capability. With no limit every caller is
// admitted immediately; otherwise at most limit callers hold a slot and the
// rest wait until one frees or their context ends.
type Gate struct {
	limit  int64
	sem    *semaphore.Weighted
	active atomic.Int64
	queued atomic.Int64
}

func New(limit int64) *Gate {
	g := &Gate{limit: max(limit, 0)}
	if g.limit > 0 {
		g.sem = semaphore.NewWeighted(g.limit)
	}
	return g
}

// Acquire blocks until a slot is available. The returned release must be
// called exactly once.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	if g.sem != nil {
		g.queued.Add(1)
		err := g.sem.Acquire(ctx, 1)
		g.queued.Add(-1)
		if err != nil {
			return nil, err
		}
	}
	g.active.Add(1)

	var released atomic.Bool
	return func() {
		if !released.CompareAndSwap(false, true) {
			return
		}
		g.active.Add(-1)
		if g.sem != nil {
			g.sem.Release(1)
		}
	}, nil
}

func (g *Gate) Stats() Stats {
	return Stats{Limit: g.limit, Active: g.active.Load(), Queued: g.queued.Load()}
}
