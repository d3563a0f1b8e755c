// Package refdata is the read-only query boundary over the Medicare
// reference tables. The engine never writes through it.
package refdata

import (
	"context"
	"errors"

	"medicare-refprice/core/types"
)

// ErrNotFound is returned when a keyed lookup has no row
var ErrNotFound = errors.New("reference row not found")

// MPFSQuery keys an MPFS lookup.
// State narrows locality-specific rows; national rows are always eligible.
type MPFSQuery struct {
	HCPCS    string
	Modifier string
	Year     int
	QPStatus string
	State    string
}

// DMEQuery keys a DMEPOS or DMEPEN lookup.
// A blank State asks for national rows only; AnyRow ignores State and Modifier.
type DMEQuery struct {
	Table    types.Dataset
	HCPCS    string
	Modifier string
	State    string
	Year     int
	AnyRow   bool
}

// Store is the read-only, keyed query interface over the six reference tables
type Store interface {
	// Ping verifies the store can serve queries at all
	Ping(ctx context.Context) error

	// LatestYear returns the newest schedule year loaded for a dataset
	LatestYear(ctx context.Context, dataset types.Dataset) (int, error)

	// MPFS returns candidate rows for an exact (code, modifier) pair
	MPFS(ctx context.Context, q MPFSQuery) ([]types.MPFSRow, error)

	// OPPS returns the Addendum B row for a code
	OPPS(ctx context.Context, hcpcs string, year int) (types.OPPSRow, error)

	// DME returns fee schedule rows for a DMEPOS/DMEPEN query
	DME(ctx context.Context, q DMEQuery) ([]types.DMERow, error)

	// Crosswalk maps a ZIP to its locality
	Crosswalk(ctx context.Context, zip string) (types.CrosswalkRow, error)

	// GPCIByLocality returns the GPCI row for a locality, preferring state when set
	GPCIByLocality(ctx context.Context, locality, state string) (types.GPCIRow, error)

	// GPCIByZip returns a GPCI row keyed directly by ZIP
	GPCIByZip(ctx context.Context, zip string) (types.GPCIRow, error)

	// GPCIStateAverage returns the precomputed state average
	GPCIStateAverage(ctx context.Context, state string) (types.GPCIStateAverage, error)

	// GPCIByState returns a state's localities ordered by locality number
	GPCIByState(ctx context.Context, state string) ([]types.GPCIRow, error)
}

// IsNotFound reports whether err means "no row"
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
