package ladder

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"medicare-refprice/core/fee"
	"medicare-refprice/core/refdata"
	"medicare-refprice/core/types"
)

// MPFS row selections recorded in Debug.TableMatched
const (
	matchLocality = "locality"
	matchState    = "state"
	matchNational = "national"
	matchFirst    = "first"
)

func (l *Ladder) mpfs(ctx context.Context, w *walk) {
	if w.years.MPFS == 0 {
		w.skip(types.LadderMPFS, "no MPFS schedule loaded")
		return
	}

	state := ""
	if w.geo != nil {
		state = w.geo.ResolvedState
	}

	rows, matchedMod, err := l.mpfsRows(ctx, w, state)
	if err != nil && len(rows) == 0 {
		w.lookupError("mpfs", err)
		w.step(types.LadderStep{Source: types.LadderMPFS, Reason: "MPFS lookup failed: " + err.Error()})
		return
	}
	if len(rows) == 0 {
		w.step(types.LadderStep{Source: types.LadderMPFS, Reason: fmt.Sprintf("%s not in MPFS %d", w.hcpcs, w.years.MPFS)})
		return
	}

	row, match := chooseMPFSRow(rows, w.geo)

	var gpci *types.GpciIndices
	if w.geo.HasLocalityGPCI() {
		g := w.geo.GPCI
		gpci = &g
	}
	// locality-specific rows from the raw feed are already adjusted
	if row.Locality != "" && !row.HasRVUs(w.isFacility) {
		gpci = nil
	}

	result := l.calc.Calculate(row, gpci, w.isFacility)

	if !result.HasFee() {
		w.foundRow(row.Status, row.Year, false)
		w.step(types.LadderStep{
			Source:   types.LadderMPFS,
			FoundRow: true,
			Reason:   fmt.Sprintf("MPFS row found but not priced: %s", result.Reason),
		})
		return
	}

	w.step(types.LadderStep{Source: types.LadderMPFS, FoundRow: true, HasFee: true})
	w.foundRow(row.Status, row.Year, true)

	d := &w.res.Debug
	d.TableMatched = "mpfs:" + match
	d.MatchedModifier = matchedMod
	d.ModifierFallback = matchedMod != w.modifier
	d.FeeBasis = string(result.Basis)
	d.GPCIApplied = result.GPCIApplied
	if result.Basis == fee.BasisRVUGPCI || result.Basis == fee.BasisRVUNational {
		d.ConversionFactor = result.ConversionFactor.String()
	}

	conf := types.ConfidenceMedium
	switch {
	case result.Basis == fee.BasisRVUGPCI && w.geo.IsExactLocality():
		conf = types.ConfidenceHigh
	case (result.Basis == fee.BasisDirectFacility || result.Basis == fee.BasisDirectNonfacility) && match == matchLocality:
		conf = types.ConfidenceHigh
	}
	if match == matchFirst {
		conf = types.ConfidenceMedium
	}

	w.price(result.Fee.Decimal, types.SourceMPFS, conf)
	explainMPFS(w, row, result, gpci)
}

// mpfsRows tries the exact modifier then the base code. err is set only
// when no rows came back and a lookup failed.
func (l *Ladder) mpfsRows(ctx context.Context, w *walk, state string) ([]types.MPFSRow, string, error) {
	q := refdata.MPFSQuery{
		HCPCS:    w.hcpcs,
		Modifier: w.modifier,
		Year:     w.years.MPFS,
		QPStatus: l.qpStatus,
		State:    state,
	}

	rows, err := l.store.MPFS(ctx, q)
	if len(rows) > 0 || w.modifier == "" {
		return rows, w.modifier, filterNotFound(err)
	}

	q.Modifier = ""
	base, baseErr := l.store.MPFS(ctx, q)
	if len(base) > 0 {
		if err := filterNotFound(err); err != nil {
			w.lookupError("mpfs", err)
		}
		return base, "", nil
	}
	if err := filterNotFound(err); err != nil {
		return nil, "", err
	}
	return nil, "", filterNotFound(baseErr)
}

func filterNotFound(err error) error {
	if refdata.IsNotFound(err) {
		return nil
	}
	return err
}

// chooseMPFSRow prefers the resolved locality, then the resolved state,
// then a national row, then whatever came first
func chooseMPFSRow(rows []types.MPFSRow, geo *types.GeoResolution) (types.MPFSRow, string) {
	if geo != nil && geo.Locality != "" {
		for _, r := range rows {
			if r.Locality == geo.Locality && r.State == geo.ResolvedState &&
				(geo.Carrier == "" || r.Carrier == "" || r.Carrier == geo.Carrier) {
				return r, matchLocality
			}
		}
	}
	if geo != nil && geo.ResolvedState != "" {
		for _, r := range rows {
			if r.State == geo.ResolvedState {
				return r, matchState
			}
		}
	}
	for _, r := range rows {
		if r.State == "" {
			return r, matchNational
		}
	}
	return rows[0], matchFirst
}

func explainMPFS(w *walk, row types.MPFSRow, result fee.Result, gpci *types.GpciIndices) {
	e := w.expl.WithTier(fmt.Sprintf("MPFS %d", row.Year))

	switch result.Basis {
	case fee.BasisRVUGPCI:
		e.WithFormula("(work RVU × work GPCI + PE RVU × PE GPCI + MP RVU × MP GPCI) × CF")
	case fee.BasisRVUNational:
		e.WithFormula("(work RVU + PE RVU + MP RVU) × CF, no locality adjustment")
	default:
		e.WithFormula("published " + columnLabel(w.isFacility) + " fee")
	}

	if result.Basis == fee.BasisRVUGPCI || result.Basis == fee.BasisRVUNational {
		e.AddInput("work_rvu", nullString(row.WorkRVU), "mpfs").
			AddInput("pe_rvu", nullString(row.PERVU(w.isFacility)), "mpfs").
			AddInput("mp_rvu", nullString(row.MPRVU), "mpfs")
		if gpci != nil {
			e.AddInput("gpci", fmt.Sprintf("%.3f/%.3f/%.3f", gpci.Work, gpci.PE, gpci.MP), string(w.geo.Method))
		}
		cfSource := "default"
		if types.Present(row.ConversionFactor) {
			cfSource = "mpfs"
		}
		e.AddInput("cf", result.ConversionFactor.String(), cfSource)
	}
	if row.State != "" {
		region := row.State
		if row.Locality != "" {
			region += " locality " + row.Locality
		}
		e.AddInput("region", region, "mpfs")
	}
	if w.res.Debug.ModifierFallback {
		e.AddInput("modifier", "base code used for "+w.modifier, "mpfs")
	}
}

func columnLabel(isFacility bool) string {
	if isFacility {
		return "facility"
	}
	return "non-facility"
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return "0"
	}
	return d.Decimal.String()
}
