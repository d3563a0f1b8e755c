package ladder

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medicare-refprice/core/refdata"
	"medicare-refprice/core/types"
)

func priced(src types.ReferenceSource, price string) types.CodeResolution {
	return types.CodeResolution{
		MatchStatus:     types.StatusPriced,
		ReferenceSource: src,
		ReferencePrice:  amt(price),
	}
}

func TestAggregateSumInvariant(t *testing.T) {
	l := newTestLadder(refdata.NewMemoryStore(fixtureTables(true)))
	ctx := context.Background()
	billed := decimal.RequireFromString("200")

	codes := []types.CodeInput{
		{HCPCS: "99213", BilledAmount: &billed},
		{HCPCS: "E0100"},
		{HCPCS: "99214", BilledAmount: &billed},
		{HCPCS: "ZZ999"},
		{HCPCS: "B4150"},
	}
	results := make([]types.CodeResolution, len(codes))
	for i, c := range codes {
		results[i] = l.Resolve(ctx, c, types.CareOffice, nationalGeo, years)
	}

	s := Aggregate(results)
	assert.Equal(t, 5, s.TotalCodes)
	assert.Equal(t, 3, s.TotalPriced)
	assert.Equal(t, 1, s.TotalExistsNotPriced)
	assert.Equal(t, 1, s.TotalMissing)

	sum := decimal.Zero
	for _, r := range results {
		if r.MatchStatus == types.StatusPriced {
			sum = sum.Add(r.ReferencePrice.Decimal)
		} else {
			assert.False(t, r.ReferencePrice.Valid, r.HCPCS)
		}
	}
	require.True(t, s.TotalReferencePrice.Valid)
	assert.True(t, sum.Equal(s.TotalReferencePrice.Decimal))
	assert.Equal(t, "156.82", s.TotalReferencePrice.Decimal.StringFixed(2))

	// only the priced 99213 carried a billed amount
	assert.Equal(t, "200.00", s.TotalBilledPriced.Decimal.StringFixed(2))

	assert.Equal(t, map[types.ReferenceSource]int{
		types.SourceMPFS:   1,
		types.SourceDMEPOS: 1,
		types.SourceDMEPEN: 1,
	}, s.SourceCounts)
	assert.Equal(t, types.SourceMPFS, s.PrimarySource)
}

func TestAggregateNothingPriced(t *testing.T) {
	s := Aggregate([]types.CodeResolution{
		{MatchStatus: types.StatusMissing, ReferenceSource: types.SourceNone},
		{MatchStatus: types.StatusExistsNotPriced, ReferenceSource: types.SourceNone},
	})
	assert.False(t, s.TotalReferencePrice.Valid)
	assert.False(t, s.TotalBilledPriced.Valid)
	assert.Empty(t, s.SourceCounts)
	assert.Equal(t, types.SourceNone, s.PrimarySource)

	empty := Aggregate(nil)
	assert.Equal(t, 0, empty.TotalCodes)
	assert.Equal(t, types.SourceNone, empty.PrimarySource)
}

func TestPrimarySourceTieBreak(t *testing.T) {
	tests := []struct {
		name    string
		results []types.CodeResolution
		want    types.ReferenceSource
	}{
		{
			name:    "majority wins",
			results: []types.CodeResolution{priced(types.SourceDMEPOS, "1"), priced(types.SourceDMEPOS, "1"), priced(types.SourceMPFS, "1")},
			want:    types.SourceDMEPOS,
		},
		{
			name:    "mpfs beats opps on a tie",
			results: []types.CodeResolution{priced(types.SourceOPPS, "1"), priced(types.SourceMPFS, "1")},
			want:    types.SourceMPFS,
		},
		{
			name:    "opps beats dme on a tie",
			results: []types.CodeResolution{priced(types.SourceDMEPEN, "1"), priced(types.SourceDMEPOS, "1"), priced(types.SourceOPPS, "1")},
			want:    types.SourceOPPS,
		},
		{
			name:    "dmepos beats dmepen on a tie",
			results: []types.CodeResolution{priced(types.SourceDMEPEN, "1"), priced(types.SourceDMEPOS, "1")},
			want:    types.SourceDMEPOS,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// order of results must not matter
			for i := 0; i < len(tt.results); i++ {
				rotated := append(append([]types.CodeResolution{}, tt.results[i:]...), tt.results[:i]...)
				assert.Equal(t, tt.want, Aggregate(rotated).PrimarySource)
			}
		})
	}
}
