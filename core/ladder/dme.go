package ladder

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"medicare-refprice/core/refdata"
	"medicare-refprice/core/types"
)

// dmeRung is one step of the DMEPOS/DMEPEN sub-ladder
type dmeRung struct {
	name     string
	state    bool
	modifier bool
	any      bool
}

var dmeRungs = []dmeRung{
	{name: "state+modifier", state: true, modifier: true},
	{name: "national+modifier", modifier: true},
	{name: "state", state: true},
	{name: "national"},
	{name: "any", any: true},
}

func (l *Ladder) dmepos(ctx context.Context, w *walk) {
	l.dme(ctx, w, types.DatasetDMEPOS, types.LadderDMEPOS, types.SourceDMEPOS)
}

func (l *Ladder) dmepen(ctx context.Context, w *walk) {
	l.dme(ctx, w, types.DatasetDMEPEN, types.LadderDMEPEN, types.SourceDMEPEN)
}

func (l *Ladder) dme(ctx context.Context, w *walk, table types.Dataset, src types.LadderSource, ref types.ReferenceSource) {
	year := w.years.For(table)
	if year == 0 {
		w.skip(src, fmt.Sprintf("no %s schedule loaded", table))
		return
	}

	state := ""
	if w.geo != nil {
		state = w.geo.ResolvedState
	}

	found := false
	var failures int
	var lastErr error
	tried := 0

	for _, r := range dmeRungs {
		if r.state && state == "" {
			continue
		}
		if r.modifier && w.modifier == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		q := refdata.DMEQuery{Table: table, HCPCS: w.hcpcs, Year: year, AnyRow: r.any}
		if r.state {
			q.State = state
		}
		if r.modifier {
			q.Modifier = w.modifier
		}

		tried++
		rows, err := l.store.DME(ctx, q)
		if err != nil && !refdata.IsNotFound(err) {
			failures++
			lastErr = err
			w.lookupError(string(table), err)
			continue
		}
		if len(rows) == 0 {
			continue
		}
		found = true

		for _, row := range rows {
			amount, column, ok := dmeFee(row)
			if !ok {
				continue
			}
			w.step(types.LadderStep{Source: src, FoundRow: true, HasFee: true})

			d := &w.res.Debug
			d.DMERung = r.name
			d.TableMatched = fmt.Sprintf("%s:%s", table, r.name)
			d.FeeBasis = column
			d.MatchedModifier = row.Modifier
			d.ModifierFallback = row.Modifier != w.modifier
			d.YearUsed = row.Year
			w.price(amount.Round(2), ref, types.ConfidenceMedium)

			where := row.State
			if where == "" {
				where = "national"
			}
			w.expl.WithTier(fmt.Sprintf("%s %d", upper(table), row.Year)).
				WithFormula("published " + column).
				AddInput("rung", r.name, string(table)).
				AddInput("region", where, string(table))
			if d.ModifierFallback {
				w.expl.AddInput("modifier", fmt.Sprintf("%q used for %q", row.Modifier, w.modifier), string(table))
			}
			return
		}
	}

	switch {
	case found:
		w.step(types.LadderStep{Source: src, FoundRow: true, Reason: fmt.Sprintf("%s row found but carries no fee", upper(table))})
	case tried > 0 && failures == tried:
		w.step(types.LadderStep{Source: src, Reason: fmt.Sprintf("%s lookup failed: %v", upper(table), lastErr)})
	default:
		w.step(types.LadderStep{Source: src, Reason: fmt.Sprintf("%s not in %s %d", w.hcpcs, upper(table), year)})
	}
}

// dmeFee prefers the purchase fee, then the rental fee, then the ceiling
func dmeFee(row types.DMERow) (decimal.Decimal, string, bool) {
	switch {
	case types.Present(row.Fee):
		return row.Fee.Decimal, "fee", true
	case types.Present(row.FeeRental):
		return row.FeeRental.Decimal, "fee_rental", true
	case types.Present(row.Ceiling):
		return row.Ceiling.Decimal, "ceiling", true
	}
	return decimal.Zero, "", false
}

func upper(d types.Dataset) string {
	switch d {
	case types.DatasetDMEPOS:
		return "DMEPOS"
	case types.DatasetDMEPEN:
		return "DMEPEN"
	}
	return string(d)
}
