// Package geo resolves a ZIP/state pair to the GPCI triple used for
// geographic fee adjustment. Resolution never fails: every miss advances
// to the next rung and the last rung is the national default.
package geo

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"medicare-refprice/core/location"
	"medicare-refprice/core/refdata"
	"medicare-refprice/core/types"
	"medicare-refprice/internal/logging"
)

// Lookup is the subset of refdata.Store the resolver reads
type Lookup interface {
	Crosswalk(ctx context.Context, zip string) (types.CrosswalkRow, error)
	GPCIByLocality(ctx context.Context, locality, state string) (types.GPCIRow, error)
	GPCIByZip(ctx context.Context, zip string) (types.GPCIRow, error)
	GPCIStateAverage(ctx context.Context, state string) (types.GPCIStateAverage, error)
	GPCIByState(ctx context.Context, state string) ([]types.GPCIRow, error)
}

// Resolver walks the geography ladder
type Resolver struct {
	store  Lookup
	geo    *refdata.Geography
	logger *zap.Logger
}

// NewResolver creates a resolver. geography may be nil, which disables
// ZIP prefix state derivation and locality name lookup.
func NewResolver(store Lookup, geography *refdata.Geography, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = logging.Named("geo")
	}
	return &Resolver{store: store, geo: geography, logger: logger}
}

// resolution accumulates one walk
type resolution struct {
	*types.GeoResolution
}

func (r resolution) note(format string, args ...interface{}) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// Resolve returns the geography for zipInput and stateInput. The result is
// never nil and, when a ZIP was supplied, always echoes it.
func (r *Resolver) Resolve(ctx context.Context, zipInput, stateInput string) *types.GeoResolution {
	res := resolution{&types.GeoResolution{
		InputZip:    zipInput,
		InputState:  stateInput,
		ZipProvided: location.Provided(zipInput),
		Method:      types.MethodNationalDefault,
		Confidence:  types.ConfidenceLow,
		GPCI:        types.NationalGPCI(),
		Notes:       []string{},
	}}

	zip, zipOK := location.NormalizeZip(zipInput)
	state, stateOK := location.NormalizeState(stateInput)

	if res.ZipProvided && !zipOK {
		res.note("ZIP %q is not a valid 5 or 9 digit ZIP", zipInput)
	}
	if location.Provided(stateInput) && !stateOK {
		res.note("state %q is not a recognized state code", stateInput)
	}

	if zipOK {
		res.ResolvedZip = zip
		if r.resolveZip(ctx, res, zip) {
			return r.finish(res)
		}

		derived := r.deriveState(res, zip)
		if derived != "" {
			if stateOK && state != derived {
				res.note("state input %s differs from ZIP-derived state %s; using %s", state, derived, derived)
			}
			if r.statewide(ctx, res, derived) {
				res.Method = types.MethodZipToStateAvg
				res.Confidence = types.ConfidenceMedium
				return r.finish(res)
			}
		}
	}

	if stateOK {
		res.note("using caller-supplied state %s", state)
		if r.statewide(ctx, res, state) {
			res.Method = types.MethodStateAvg
			res.Confidence = types.ConfidenceMedium
			return r.finish(res)
		}
	}

	res.note("falling back to national GPCI 1.0/1.0/1.0")
	return r.finish(res)
}

// resolveZip tries the crosswalk then the ZIP-keyed GPCI rows
func (r *Resolver) resolveZip(ctx context.Context, res resolution, zip string) bool {
	cw, err := r.store.Crosswalk(ctx, zip)
	switch {
	case err == nil:
		res.note("crosswalk: ZIP %s -> carrier %s locality %s (%s)", zip, cw.Carrier, cw.Locality, cw.State)
		res.ResolvedState = cw.State
		res.Carrier = cw.Carrier

		row, err := r.store.GPCIByLocality(ctx, cw.Locality, cw.State)
		switch {
		case err == nil && row.GPCI().IsValid():
			r.exact(res, row, cw.Carrier)
			res.note("gpci: locality %s matched", cw.Locality)
			return true
		case err == nil:
			res.note("gpci: locality %s has a non-positive index; skipped", cw.Locality)
		case refdata.IsNotFound(err):
			res.note("gpci: no row for locality %s", cw.Locality)
		default:
			res.note("gpci: lookup for locality %s failed: %v", cw.Locality, err)
		}
	case refdata.IsNotFound(err):
		res.note("crosswalk: ZIP %s not found", zip)
	default:
		res.note("crosswalk: lookup for ZIP %s failed: %v", zip, err)
	}

	row, err := r.store.GPCIByZip(ctx, zip)
	switch {
	case err == nil && row.GPCI().IsValid():
		if res.ResolvedState == "" {
			res.ResolvedState = row.State
		}
		r.exact(res, row, row.Carrier)
		res.note("gpci: ZIP %s matched directly", zip)
		return true
	case err == nil:
		if res.ResolvedState == "" {
			res.ResolvedState = row.State
		}
		res.note("gpci: ZIP %s row has a non-positive index; skipped", zip)
	case refdata.IsNotFound(err):
		res.note("gpci: no row keyed by ZIP %s", zip)
	default:
		res.note("gpci: lookup by ZIP %s failed: %v", zip, err)
	}
	return false
}

func (r *Resolver) exact(res resolution, row types.GPCIRow, carrier string) {
	res.Method = types.MethodZipExact
	res.Confidence = types.ConfidenceHigh
	res.GPCI = row.GPCI()
	res.Locality = row.Locality
	if carrier != "" {
		res.Carrier = carrier
	}
	if row.State != "" && res.ResolvedState == "" {
		res.ResolvedState = row.State
	}
	res.LocalityName = r.localityName(row, res.Carrier)
}

func (r *Resolver) localityName(row types.GPCIRow, carrier string) string {
	if row.LocalityName != "" {
		return row.LocalityName
	}
	if r.geo != nil && carrier != "" {
		if name, ok := r.geo.LocalityName(carrier, row.Locality); ok {
			return name
		}
	}
	return ""
}

// deriveState finds the ZIP's state from lookups already made, then the
// ZIP prefix table
func (r *Resolver) deriveState(res resolution, zip string) string {
	if res.ResolvedState != "" {
		res.note("state %s derived from reference rows for ZIP %s", res.ResolvedState, zip)
		return res.ResolvedState
	}
	if r.geo != nil {
		if st, ok := r.geo.StateForZip(zip); ok {
			res.ResolvedState = st
			res.note("state %s derived from ZIP prefix %s", st, zip[:3])
			return st
		}
	}
	res.note("no state could be derived from ZIP %s", zip)
	return ""
}

// statewide applies the state's average GPCI, else its first locality
func (r *Resolver) statewide(ctx context.Context, res resolution, state string) bool {
	avg, err := r.store.GPCIStateAverage(ctx, state)
	switch {
	case err == nil && avg.GPCI().IsValid():
		res.ResolvedState = state
		res.GPCI = avg.GPCI()
		res.Carrier, res.Locality, res.LocalityName = "", "", ""
		res.note("gpci: %s state average over %d localities", state, avg.Rows)
		return true
	case err == nil:
		res.note("gpci: %s state average has a non-positive index; skipped", state)
	case refdata.IsNotFound(err):
		res.note("gpci: no state average for %s", state)
	default:
		res.note("gpci: state average lookup for %s failed: %v", state, err)
	}

	rows, err := r.store.GPCIByState(ctx, state)
	if err != nil && !refdata.IsNotFound(err) {
		res.note("gpci: locality list for %s failed: %v", state, err)
		return false
	}
	for _, row := range rows {
		if !row.GPCI().IsValid() {
			continue
		}
		res.ResolvedState = state
		res.GPCI = row.GPCI()
		res.Locality = row.Locality
		res.Carrier = row.Carrier
		res.LocalityName = r.localityName(row, row.Carrier)
		res.note("gpci: using first %s locality %s as an estimate", state, row.Locality)
		return true
	}
	res.note("gpci: no localities listed for %s", state)
	return false
}

func (r *Resolver) finish(res resolution) *types.GeoResolution {
	res.UserMessage = userMessage(res.GeoResolution)
	r.logger.Debug("geo resolved",
		zap.String("zip", res.InputZip),
		zap.String("state", res.ResolvedState),
		zap.String("method", string(res.Method)),
		zap.Int("notes", len(res.Notes)),
	)
	return res.GeoResolution
}

func userMessage(g *types.GeoResolution) string {
	place := g.LocalityName
	if place == "" {
		place = g.ResolvedState
	}

	switch g.Method {
	case types.MethodZipExact:
		return fmt.Sprintf("Prices adjusted for Medicare locality %s (ZIP %s).", place, g.ResolvedZip)
	case types.MethodZipToStateAvg:
		return fmt.Sprintf("ZIP %s could not be matched to a Medicare locality; using %s statewide average.", g.InputZip, g.ResolvedState)
	case types.MethodStateAvg:
		if g.ZipProvided {
			return fmt.Sprintf("ZIP %s was used but could not be matched; using %s statewide average.", g.InputZip, g.ResolvedState)
		}
		return fmt.Sprintf("No ZIP provided; using %s statewide average.", g.ResolvedState)
	default:
		if g.ZipProvided {
			return fmt.Sprintf("ZIP %s was used but could not be matched to a Medicare locality; national average prices shown.", g.InputZip)
		}
		return "No ZIP provided; national average prices shown."
	}
}
