package ladder

import (
	"context"
	"fmt"
	"strings"

	"medicare-refprice/core/refdata"
	"medicare-refprice/core/types"
)

// packagedIndicators are OPPS status indicators with no separate payment
var packagedIndicators = map[string]bool{
	"N": true, "B": true, "C": true, "D": true, "E": true, "E1": true, "E2": true, "M": true,
}

// IsPackaged reports whether an OPPS status indicator means packaged or
// not separately payable
func IsPackaged(si string) bool {
	return packagedIndicators[strings.ToUpper(strings.TrimSpace(si))]
}

func (l *Ladder) opps(ctx context.Context, w *walk) {
	if w.years.OPPS == 0 {
		w.skip(types.LadderOPPS, "no OPPS schedule loaded")
		return
	}

	row, err := l.store.OPPS(ctx, w.hcpcs, w.years.OPPS)
	switch {
	case refdata.IsNotFound(err):
		w.step(types.LadderStep{Source: types.LadderOPPS, Reason: fmt.Sprintf("%s not in OPPS Addendum B %d", w.hcpcs, w.years.OPPS)})
		return
	case err != nil:
		w.lookupError("opps", err)
		w.step(types.LadderStep{Source: types.LadderOPPS, Reason: "OPPS lookup failed: " + err.Error()})
		return
	}

	w.oppsFound = true
	l.priceOPPS(w, row, types.LadderOPPS, "opps_addendum_b", types.ConfidenceHigh)
}

// oppsFallback consults the labeled ED table only after a primary miss
func (l *Ladder) oppsFallback(ctx context.Context, w *walk) {
	if w.oppsFound {
		w.skip(types.LadderOPPSFallback, "primary OPPS row present")
		return
	}
	if l.fallback == nil {
		w.skip(types.LadderOPPSFallback, "no fallback table configured")
		return
	}

	row, ok := l.fallback.Lookup(w.hcpcs)
	if !ok {
		w.step(types.LadderStep{Source: types.LadderOPPSFallback, Reason: fmt.Sprintf("%s not in %s", w.hcpcs, l.fallback.Label)})
		return
	}
	l.priceOPPS(w, row, types.LadderOPPSFallback, string(types.LadderOPPSFallback), types.ConfidenceMedium)
	if w.priced {
		w.expl.AddInput("table", l.fallback.Label, "fallback")
	}
}

func (l *Ladder) priceOPPS(w *walk, row types.OPPSRow, src types.LadderSource, table string, conf types.Confidence) {
	si := strings.ToUpper(strings.TrimSpace(row.StatusIndicator))
	priced := !IsPackaged(si) && types.Present(row.PaymentRate)
	w.foundRow(si, row.Year, priced)

	if IsPackaged(si) {
		w.step(types.LadderStep{
			Source:   src,
			FoundRow: true,
			Reason:   fmt.Sprintf("OPPS status indicator %s: packaged, not separately payable", si),
		})
		return
	}
	if !types.Present(row.PaymentRate) {
		w.step(types.LadderStep{
			Source:   src,
			FoundRow: true,
			Reason:   fmt.Sprintf("OPPS row has no payment rate (status indicator %s)", si),
		})
		return
	}

	w.step(types.LadderStep{Source: src, FoundRow: true, HasFee: true})
	w.res.Debug.TableMatched = table
	w.res.Debug.FeeBasis = "opps_payment_rate"
	w.price(row.PaymentRate.Decimal.Round(2), types.SourceOPPS, conf)

	w.expl.WithTier(fmt.Sprintf("OPPS %d", row.Year)).
		WithFormula("APC payment rate").
		AddInput("apc", row.APC, "opps").
		AddInput("status_indicator", si, "opps")
}
