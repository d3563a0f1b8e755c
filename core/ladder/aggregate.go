package ladder

import (
	"github.com/shopspring/decimal"

	"medicare-refprice/core/types"
)

// Aggregate summarizes a batch of resolutions in one pass
func Aggregate(results []types.CodeResolution) types.Summary {
	s := types.Summary{
		TotalCodes:    len(results),
		SourceCounts:  make(map[types.ReferenceSource]int),
		PrimarySource: types.SourceNone,
	}

	total := decimal.Zero
	billed := decimal.Zero
	anyBilled := false

	for _, r := range results {
		switch r.MatchStatus {
		case types.StatusPriced:
			s.TotalPriced++
		case types.StatusExistsNotPriced:
			s.TotalExistsNotPriced++
			continue
		default:
			s.TotalMissing++
			continue
		}

		total = total.Add(r.ReferencePrice.Decimal)
		if r.ReferenceSource != types.SourceNone && r.ReferenceSource != "" {
			s.SourceCounts[r.ReferenceSource]++
		}
		if r.BilledAmount.Valid {
			billed = billed.Add(r.BilledAmount.Decimal)
			anyBilled = true
		}
	}

	if s.TotalPriced > 0 {
		s.TotalReferencePrice = types.Amount(total)
	}
	if anyBilled {
		s.TotalBilledPriced = types.Amount(billed)
	}
	s.PrimarySource = PrimarySource(s.SourceCounts)
	return s
}

// PrimarySource returns the most used source. Ties go to the earlier
// entry of types.SourcePriority.
func PrimarySource(counts map[types.ReferenceSource]int) types.ReferenceSource {
	best := types.SourceNone
	bestCount := 0
	for _, src := range types.SourcePriority {
		if n := counts[src]; n > bestCount {
			best, bestCount = src, n
		}
	}
	return best
}
