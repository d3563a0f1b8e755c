package refdata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medicare-refprice/core/types"
	apperrors "medicare-refprice/internal/errors"
)

// flakyStore fails OPPS a fixed number of times, hangs Crosswalk, and
// delegates everything else to an embedded MemoryStore.
type flakyStore struct {
	*MemoryStore
	failures int32
	calls    int32
}

func (f *flakyStore) OPPS(ctx context.Context, hcpcs string, year int) (types.OPPSRow, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= atomic.LoadInt32(&f.failures) {
		return types.OPPSRow{}, errors.New("connection reset")
	}
	return f.MemoryStore.OPPS(ctx, hcpcs, year)
}

func (f *flakyStore) Crosswalk(ctx context.Context, zip string) (types.CrosswalkRow, error) {
	select {} // never returns, even on cancellation
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveLookup(table, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, table+":"+outcome)
}

func TestGuardRetriesTransientErrors(t *testing.T) {
	fs := &flakyStore{MemoryStore: NewMemoryStore(testTables()), failures: 1}
	obs := &recordingObserver{}
	g := NewGuard(fs, GuardOptions{Retries: 1, Backoff: time.Millisecond, Observer: obs})

	row, err := g.OPPS(context.Background(), "99284", 2025)
	require.NoError(t, err)
	assert.Equal(t, "J2", row.StatusIndicator)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fs.calls))
	assert.Equal(t, []string{"opps:hit"}, obs.outcomes)
}

func TestGuardGivesUpAfterRetries(t *testing.T) {
	fs := &flakyStore{MemoryStore: NewMemoryStore(testTables()), failures: 10}
	g := NewGuard(fs, GuardOptions{Retries: 2, Backoff: time.Millisecond})

	_, err := g.OPPS(context.Background(), "99284", 2025)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeLookup))
	assert.Equal(t, int32(3), atomic.LoadInt32(&fs.calls))
}

func TestGuardDoesNotRetryNotFound(t *testing.T) {
	fs := &flakyStore{MemoryStore: NewMemoryStore(testTables())}
	obs := &recordingObserver{}
	g := NewGuard(fs, GuardOptions{Retries: 3, Backoff: time.Millisecond, Observer: obs})

	_, err := g.OPPS(context.Background(), "00000", 2025)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fs.calls))
	assert.Equal(t, []string{"opps:miss"}, obs.outcomes)
}

func TestGuardAbandonsHungLookup(t *testing.T) {
	fs := &flakyStore{MemoryStore: NewMemoryStore(testTables())}
	obs := &recordingObserver{}
	g := NewGuard(fs, GuardOptions{Timeout: 20 * time.Millisecond, Observer: obs})

	start := time.Now()
	_, err := g.Crosswalk(context.Background(), "94103")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, apperrors.IsType(err, apperrors.TypeLookup))
	assert.Equal(t, []string{"crosswalk:timeout"}, obs.outcomes)

	// other lookups are unaffected by the hung one
	avg, err := g.GPCIStateAverage(context.Background(), "CA")
	require.NoError(t, err)
	assert.Equal(t, "CA", avg.State)
}
