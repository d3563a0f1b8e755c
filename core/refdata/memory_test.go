package refdata

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medicare-refprice/core/types"
)

func dec(s string) decimal.NullDecimal {
	return types.Amount(decimal.RequireFromString(s))
}

func testTables() Tables {
	gpci := []types.GPCIRow{
		{Carrier: "01112", Locality: "05", LocalityName: "SAN FRANCISCO", State: "CA", Work: 1.1, PE: 1.5, MP: 0.6},
		{Carrier: "01182", Locality: "18", LocalityName: "LOS ANGELES", State: "CA", Work: 1.04, PE: 1.2, MP: 0.8},
		{Carrier: "13282", Locality: "01", LocalityName: "MANHATTAN", State: "NY", Work: 1.09, PE: 1.4, MP: 1.9},
		{Carrier: "10112", Locality: "01", LocalityName: "ALABAMA", State: "AL", Work: 1.0, PE: 0.87, MP: 0.5},
		{Locality: "99", State: "TX", Zip: "77030", Work: 1.02, PE: 1.0, MP: 0.9},
	}
	return Tables{
		MPFS: []types.MPFSRow{
			{Year: 2025, HCPCS: "99213", WorkRVU: dec("1.3"), NonfacPERVU: dec("1.2"), MPRVU: dec("0.1"), Status: "A"},
			{Year: 2025, HCPCS: "99213", State: "CA", Locality: "05", Carrier: "01112", NonfacFee: dec("120.00"), Status: "A"},
			{Year: 2025, HCPCS: "99213", State: "NY", Locality: "01", Carrier: "13282", NonfacFee: dec("130.00"), Status: "A", QPStatus: "QP"},
			{Year: 2024, HCPCS: "99213", NonfacFee: dec("90.00"), Status: "A"},
			{Year: 2025, HCPCS: "88305", State: "NY", Locality: "01", NonfacFee: dec("70.00"), Status: "A"},
		},
		OPPS: []types.OPPSRow{
			{Year: 2025, HCPCS: "99284", StatusIndicator: "J2", PaymentRate: dec("400.00")},
		},
		DME: []types.DMERow{
			{Table: types.DatasetDMEPOS, Year: 2025, HCPCS: "E0100", Modifier: "NU", State: "CA", Fee: dec("45.00")},
			{Table: types.DatasetDMEPOS, Year: 2025, HCPCS: "E0100", Modifier: "", Fee: dec("40.00")},
			{Table: types.DatasetDMEPEN, Year: 2024, HCPCS: "B4150", Fee: dec("8.00")},
		},
		Crosswalk: []types.CrosswalkRow{
			{Zip: "94103", Carrier: "01112", Locality: "05", State: "CA"},
		},
		GPCI:          gpci,
		StateAverages: ComputeStateAverages(gpci),
	}
}

func TestMemoryStoreLatestYear(t *testing.T) {
	s := NewMemoryStore(testTables())
	ctx := context.Background()

	y, err := s.LatestYear(ctx, types.DatasetMPFS)
	require.NoError(t, err)
	assert.Equal(t, 2025, y)

	y, err = s.LatestYear(ctx, types.DatasetDMEPEN)
	require.NoError(t, err)
	assert.Equal(t, 2024, y)

	empty := NewMemoryStore(Tables{})
	_, err = empty.LatestYear(ctx, types.DatasetOPPS)
	assert.True(t, IsNotFound(err))
}

func TestMemoryStoreMPFS(t *testing.T) {
	s := NewMemoryStore(testTables())
	ctx := context.Background()

	t.Run("state rows precede national", func(t *testing.T) {
		rows, err := s.MPFS(ctx, MPFSQuery{HCPCS: "99213", Year: 2025, State: "CA"})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "CA", rows[0].State)
		assert.Equal(t, "", rows[1].State)
	})

	t.Run("qp filter drops other status rows", func(t *testing.T) {
		rows, err := s.MPFS(ctx, MPFSQuery{HCPCS: "99213", Year: 2025, State: "NY", QPStatus: "nonQP"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "", rows[0].State)
	})

	t.Run("never another state's rows", func(t *testing.T) {
		rows, err := s.MPFS(ctx, MPFSQuery{HCPCS: "88305", Year: 2025, State: "CA"})
		require.NoError(t, err)
		assert.Empty(t, rows)

		rows, err = s.MPFS(ctx, MPFSQuery{HCPCS: "88305", Year: 2025})
		require.NoError(t, err)
		assert.Empty(t, rows)

		rows, err = s.MPFS(ctx, MPFSQuery{HCPCS: "88305", Year: 2025, State: "NY"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "NY", rows[0].State)
	})

	t.Run("unknown year", func(t *testing.T) {
		rows, err := s.MPFS(ctx, MPFSQuery{HCPCS: "99213", Year: 2019})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestMemoryStoreDME(t *testing.T) {
	s := NewMemoryStore(testTables())
	ctx := context.Background()

	rows, err := s.DME(ctx, DMEQuery{Table: types.DatasetDMEPOS, HCPCS: "E0100", Modifier: "NU", State: "CA", Year: 2025})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "45", rows[0].Fee.Decimal.String())

	rows, err = s.DME(ctx, DMEQuery{Table: types.DatasetDMEPOS, HCPCS: "E0100", Modifier: "NU", Year: 2025})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = s.DME(ctx, DMEQuery{Table: types.DatasetDMEPOS, HCPCS: "E0100", Year: 2025, AnyRow: true})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestMemoryStoreGeography(t *testing.T) {
	s := NewMemoryStore(testTables())
	ctx := context.Background()

	cw, err := s.Crosswalk(ctx, "94103")
	require.NoError(t, err)
	assert.Equal(t, "05", cw.Locality)

	_, err = s.Crosswalk(ctx, "10001")
	assert.True(t, IsNotFound(err))

	row, err := s.GPCIByLocality(ctx, "01", "AL")
	require.NoError(t, err)
	assert.Equal(t, "ALABAMA", row.LocalityName)

	_, err = s.GPCIByLocality(ctx, "05", "NY")
	assert.True(t, IsNotFound(err), "locality 05 exists only in CA")

	row, err = s.GPCIByZip(ctx, "77030")
	require.NoError(t, err)
	assert.Equal(t, "TX", row.State)

	avg, err := s.GPCIStateAverage(ctx, "CA")
	require.NoError(t, err)
	assert.Equal(t, 2, avg.Rows)
	assert.InDelta(t, 1.07, avg.Work, 1e-9)

	byState, err := s.GPCIByState(ctx, "CA")
	require.NoError(t, err)
	require.Len(t, byState, 2)
	assert.Equal(t, "05", byState[0].Locality)
}

func TestComputeStateAveragesSkipsInvalid(t *testing.T) {
	avgs := ComputeStateAverages([]types.GPCIRow{
		{State: "WA", Locality: "02", Work: 1.0, PE: 1.0, MP: 1.0},
		{State: "WA", Locality: "99", Work: 0, PE: 1.0, MP: 1.0},
		{State: "", Locality: "01", Work: 1.0, PE: 1.0, MP: 1.0},
	})
	require.Len(t, avgs, 1)
	assert.Equal(t, "WA", avgs[0].State)
	assert.Equal(t, 1, avgs[0].Rows)
}
