package refdata

import (
	"context"
	"errors"
	"time"

	"medicare-refprice/core/types"
	apperrors "medicare-refprice/internal/errors"
)

// Outcomes reported to a LookupObserver
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// LookupObserver receives one call per guarded lookup
type LookupObserver interface {
	ObserveLookup(table, outcome string, elapsed time.Duration)
}

// GuardOptions configures a Guard
type GuardOptions struct {
	// Timeout bounds each attempt of a lookup
	Timeout time.Duration

	// Retries is how many extra attempts a failed lookup gets
	Retries int

	// Backoff is the base delay between attempts
	Backoff time.Duration

	// Observer is notified of every lookup outcome
	Observer LookupObserver
}

// Guard wraps a Store so that every lookup is bounded, retried and
// isolated. A failure surfaces as a *errors.Error of TypeLookup and
// never affects any other lookup.
type Guard struct {
	store Store
	opts  GuardOptions
}

// NewGuard wraps store
func NewGuard(store Store, opts GuardOptions) *Guard {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 25 * time.Millisecond
	}
	return &Guard{store: store, opts: opts}
}

// Ping is attempted once with the lookup timeout
func (g *Guard) Ping(ctx context.Context) error {
	_, err := attempt(ctx, g.opts.Timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.store.Ping(ctx)
	})
	return err
}

func (g *Guard) LatestYear(ctx context.Context, dataset types.Dataset) (int, error) {
	return guarded(ctx, g, "latest_year", func(ctx context.Context) (int, error) {
		return g.store.LatestYear(ctx, dataset)
	})
}

func (g *Guard) MPFS(ctx context.Context, q MPFSQuery) ([]types.MPFSRow, error) {
	return guarded(ctx, g, "mpfs", func(ctx context.Context) ([]types.MPFSRow, error) {
		return g.store.MPFS(ctx, q)
	})
}

func (g *Guard) OPPS(ctx context.Context, hcpcs string, year int) (types.OPPSRow, error) {
	return guarded(ctx, g, "opps", func(ctx context.Context) (types.OPPSRow, error) {
		return g.store.OPPS(ctx, hcpcs, year)
	})
}

func (g *Guard) DME(ctx context.Context, q DMEQuery) ([]types.DMERow, error) {
	return guarded(ctx, g, string(q.Table), func(ctx context.Context) ([]types.DMERow, error) {
		return g.store.DME(ctx, q)
	})
}

func (g *Guard) Crosswalk(ctx context.Context, zip string) (types.CrosswalkRow, error) {
	return guarded(ctx, g, "crosswalk", func(ctx context.Context) (types.CrosswalkRow, error) {
		return g.store.Crosswalk(ctx, zip)
	})
}

func (g *Guard) GPCIByLocality(ctx context.Context, locality, state string) (types.GPCIRow, error) {
	return guarded(ctx, g, "gpci", func(ctx context.Context) (types.GPCIRow, error) {
		return g.store.GPCIByLocality(ctx, locality, state)
	})
}

func (g *Guard) GPCIByZip(ctx context.Context, zip string) (types.GPCIRow, error) {
	return guarded(ctx, g, "gpci_zip", func(ctx context.Context) (types.GPCIRow, error) {
		return g.store.GPCIByZip(ctx, zip)
	})
}

func (g *Guard) GPCIStateAverage(ctx context.Context, state string) (types.GPCIStateAverage, error) {
	return guarded(ctx, g, "gpci_state_avg", func(ctx context.Context) (types.GPCIStateAverage, error) {
		return g.store.GPCIStateAverage(ctx, state)
	})
}

func (g *Guard) GPCIByState(ctx context.Context, state string) ([]types.GPCIRow, error) {
	return guarded(ctx, g, "gpci_state", func(ctx context.Context) ([]types.GPCIRow, error) {
		return g.store.GPCIByState(ctx, state)
	})
}

// guarded runs fn with per-attempt timeouts and bounded retries.
// ErrNotFound is final on the first attempt.
func guarded[T any](ctx context.Context, g *Guard, table string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	start := time.Now()

	for i := 0; i <= g.opts.Retries; i++ {
		if i > 0 {
			select {
			case <-time.After(g.opts.Backoff * time.Duration(i)):
			case <-ctx.Done():
				g.observe(table, OutcomeTimeout, start)
				return zero, apperrors.Lookup(table, ctx.Err())
			}
		}

		v, err := attempt(ctx, g.opts.Timeout, fn)
		if err == nil {
			g.observe(table, OutcomeHit, start)
			return v, nil
		}
		if IsNotFound(err) {
			g.observe(table, OutcomeMiss, start)
			return zero, err
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	if errors.Is(lastErr, context.DeadlineExceeded) || errors.Is(lastErr, context.Canceled) {
		g.observe(table, OutcomeTimeout, start)
	} else {
		g.observe(table, OutcomeError, start)
	}
	return zero, apperrors.Lookup(table, lastErr)
}

// attempt abandons fn once the timeout fires, even if fn ignores its context
func attempt[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(actx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-actx.Done():
		var zero T
		return zero, actx.Err()
	}
}

func (g *Guard) observe(table, outcome string, start time.Time) {
	if g.opts.Observer != nil {
		g.opts.Observer.ObserveLookup(table, outcome, time.Since(start))
	}
}
