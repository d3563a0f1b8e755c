package geo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medicare-refprice/core/refdata"
	"medicare-refprice/core/types"
)

func testStore() *refdata.MemoryStore {
	gpci := []types.GPCIRow{
		{Carrier: "01112", Locality: "05", LocalityName: "SAN FRANCISCO", State: "CA", Work: 1.1, PE: 1.5, MP: 0.6},
		{Carrier: "01182", Locality: "18", LocalityName: "LOS ANGELES", State: "CA", Work: 1.04, PE: 1.2, MP: 0.8},
		{Carrier: "13282", Locality: "01", State: "NY", Work: 1.09, PE: 1.4, MP: 1.9},
		{Carrier: "04412", Locality: "99", State: "TX", Zip: "77030", Work: 1.02, PE: 1.0, MP: 0.9},
		{Carrier: "02102", Locality: "01", LocalityName: "ALASKA", State: "AK", Work: 1.5, PE: 1.1, MP: 0.6},
	}
	return refdata.NewMemoryStore(refdata.Tables{
		Crosswalk: []types.CrosswalkRow{
			{Zip: "94103", Carrier: "01112", Locality: "05", State: "CA"},
			{Zip: "10001", Carrier: "13282", Locality: "01", State: "NY"},
			{Zip: "60601", Carrier: "06102", Locality: "16", State: "IL"},
		},
		GPCI: gpci,
		// AK has no precomputed average so it exercises the first-locality fallback
		StateAverages: refdata.ComputeStateAverages(gpci[:4]),
	})
}

func newTestResolver() *Resolver {
	return NewResolver(testStore(), refdata.MustLoadGeography(), zap.NewNop())
}

func TestResolveLadder(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	tests := []struct {
		name       string
		zip        string
		state      string
		method     types.GeoMethod
		confidence types.Confidence
		resolved   string
		gpci       types.GpciIndices
	}{
		{"crosswalk hit", "94103", "", types.MethodZipExact, types.ConfidenceHigh, "CA", types.GpciIndices{Work: 1.1, PE: 1.5, MP: 0.6}},
		{"zip plus four", "94103-1234", "", types.MethodZipExact, types.ConfidenceHigh, "CA", types.GpciIndices{Work: 1.1, PE: 1.5, MP: 0.6}},
		{"gpci keyed by zip", "77030", "", types.MethodZipExact, types.ConfidenceHigh, "TX", types.GpciIndices{Work: 1.02, PE: 1.0, MP: 0.9}},
		{"zip prefix to state average", "94999", "", types.MethodZipToStateAvg, types.ConfidenceMedium, "CA", types.GpciIndices{Work: 1.07, PE: 1.35, MP: 0.7}},
		{"zip prefix to first locality", "99501", "", types.MethodZipToStateAvg, types.ConfidenceMedium, "AK", types.GpciIndices{Work: 1.5, PE: 1.1, MP: 0.6}},
		{"state only", "", "ny", types.MethodStateAvg, types.ConfidenceMedium, "NY", types.GpciIndices{Work: 1.09, PE: 1.4, MP: 1.9}},
		{"malformed zip with state", "12", "CA", types.MethodStateAvg, types.ConfidenceMedium, "CA", types.GpciIndices{Work: 1.07, PE: 1.35, MP: 0.7}},
		{"nothing", "", "", types.MethodNationalDefault, types.ConfidenceLow, "", types.NationalGPCI()},
		{"crosswalk state without gpci", "60601", "", types.MethodNationalDefault, types.ConfidenceLow, "IL", types.NationalGPCI()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := r.Resolve(ctx, tt.zip, tt.state)
			require.NotNil(t, g)
			assert.Equal(t, tt.method, g.Method)
			assert.Equal(t, tt.confidence, g.Confidence)
			assert.Equal(t, tt.resolved, g.ResolvedState)
			assert.InDelta(t, tt.gpci.Work, g.GPCI.Work, 1e-9)
			assert.InDelta(t, tt.gpci.PE, g.GPCI.PE, 1e-9)
			assert.InDelta(t, tt.gpci.MP, g.GPCI.MP, 1e-9)
			assert.NotEmpty(t, g.Notes)
			assert.NotEmpty(t, g.UserMessage)
		})
	}
}

func TestResolveExactLocalityName(t *testing.T) {
	r := newTestResolver()

	g := r.Resolve(context.Background(), "10001", "")
	assert.Equal(t, types.MethodZipExact, g.Method)
	assert.Equal(t, "01", g.Locality)
	// the GPCI row has no name, so it comes from the carrier table
	assert.Contains(t, g.LocalityName, "MANHATTAN")
}

func TestSuppliedZipIsNeverDropped(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	for _, zip := range []string{"94999", "00000", "abcde", "60601", "1234"} {
		t.Run(zip, func(t *testing.T) {
			g := r.Resolve(ctx, zip, "")
			assert.Equal(t, zip, g.InputZip)
			assert.True(t, g.ZipProvided)
			assert.True(t, strings.Contains(g.UserMessage, zip), g.UserMessage)
			assert.NotContains(t, g.UserMessage, "No ZIP provided")
		})
	}

	g := r.Resolve(ctx, "", "")
	assert.False(t, g.ZipProvided)
	assert.Contains(t, g.UserMessage, "No ZIP provided")
}

func TestResolveIsIdempotent(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	for _, in := range [][2]string{{"94103", ""}, {"94999", ""}, {"", "NY"}, {"junk", "zz"}} {
		first := r.Resolve(ctx, in[0], in[1])
		second := r.Resolve(ctx, in[0], in[1])
		assert.Equal(t, first, second)
	}
}

type brokenStore struct{}

var errDown = errors.New("connection refused")

func (brokenStore) Crosswalk(context.Context, string) (types.CrosswalkRow, error) {
	return types.CrosswalkRow{}, errDown
}
func (brokenStore) GPCIByLocality(context.Context, string, string) (types.GPCIRow, error) {
	return types.GPCIRow{}, errDown
}
func (brokenStore) GPCIByZip(context.Context, string) (types.GPCIRow, error) {
	return types.GPCIRow{}, errDown
}
func (brokenStore) GPCIStateAverage(context.Context, string) (types.GPCIStateAverage, error) {
	return types.GPCIStateAverage{}, errDown
}
func (brokenStore) GPCIByState(context.Context, string) ([]types.GPCIRow, error) {
	return nil, errDown
}

func TestLookupErrorsBecomeNotes(t *testing.T) {
	r := NewResolver(brokenStore{}, nil, zap.NewNop())

	g := r.Resolve(context.Background(), "94103", "CA")
	assert.Equal(t, types.MethodNationalDefault, g.Method)
	assert.Equal(t, "94103", g.InputZip)

	failed := 0
	for _, n := range g.Notes {
		if strings.Contains(n, "connection refused") {
			failed++
		}
	}
	assert.GreaterOrEqual(t, failed, 3)
}
