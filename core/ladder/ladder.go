// Package ladder resolves one billing code to a reference price by walking
// the fee schedules in care-setting order until one of them prices it.
package ladder

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medicare-refprice/core/explanation"
	"medicare-refprice/core/fee"
	"medicare-refprice/core/refdata"
	"medicare-refprice/core/types"
	"medicare-refprice/internal/logging"
)

// ReasonDeadline is the reason attached to codes cut short by the request deadline
const ReasonDeadline = "request deadline exceeded"

// dmePrefixes are the leading HCPCS characters of supply and equipment codes
const dmePrefixes = "ABEKL"

// IsDMECode reports whether a code belongs to the DME-style prefix set
func IsDMECode(hcpcs string) bool {
	return hcpcs != "" && strings.IndexByte(dmePrefixes, hcpcs[0]) >= 0
}

// Options configures a Ladder
type Options struct {
	Calculator *fee.Calculator
	Fallback   *refdata.FallbackTable
	QPStatus   string
	Logger     *zap.Logger
}

// Ladder is stateless across calls and safe for concurrent use
type Ladder struct {
	store    refdata.Store
	calc     *fee.Calculator
	fallback *refdata.FallbackTable
	qpStatus string
	logger   *zap.Logger
}

// New creates a ladder over store
func New(store refdata.Store, opts Options) *Ladder {
	if opts.Calculator == nil {
		opts.Calculator = fee.NewCalculator(decimal.Zero)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Named("ladder")
	}
	return &Ladder{
		store:    store,
		calc:     opts.Calculator,
		fallback: opts.Fallback,
		qpStatus: opts.QPStatus,
		logger:   opts.Logger,
	}
}

// walk is the mutable state of one code's resolution
type walk struct {
	hcpcs      string
	modifier   string
	isFacility bool
	geo        *types.GeoResolution
	years      types.YearsUsed

	res       types.CodeResolution
	priced    bool
	timedOut  bool
	oppsFound bool
	expl      *explanation.Explanation
	tried     []string

	// decided is set once a found row fixed Debug.StatusIndicator
	decided bool
}

// step appends a ladder step
func (w *walk) step(s types.LadderStep) {
	s.Attempted = true
	w.res.LadderPath = append(w.res.LadderPath, s)
	w.tried = append(w.tried, strings.ToUpper(string(s.Source)))
}

// skip records a rung that was not attempted
func (w *walk) skip(src types.LadderSource, reason string) {
	w.res.LadderPath = append(w.res.LadderPath, types.LadderStep{Source: src, Reason: reason})
}

// foundRow records the status and year of a row a rung found. The row
// that prices wins; otherwise the first found row, whose reason the
// final explanation cites.
func (w *walk) foundRow(status string, year int, priced bool) {
	if w.decided && !priced {
		return
	}
	w.decided = true
	w.res.Debug.StatusIndicator = status
	w.res.Debug.YearUsed = year
}

func (w *walk) lookupError(table string, err error) {
	w.res.Debug.LookupErrors = append(w.res.Debug.LookupErrors, table+": "+err.Error())
}

// price marks the walk as priced
func (w *walk) price(amount decimal.Decimal, src types.ReferenceSource, conf types.Confidence) {
	w.priced = true
	w.res.ReferencePrice = types.Amount(amount)
	w.res.ReferenceSource = src
	w.res.MatchStatus = types.StatusPriced
	w.res.Confidence = conf
}

// Resolve walks the ladder for one code. It never fails: lookup errors
// are rung misses and a cancelled ctx ends the walk as a deadline miss.
func (l *Ladder) Resolve(ctx context.Context, code types.CodeInput, setting types.CareSetting, geo *types.GeoResolution, years types.YearsUsed) types.CodeResolution {
	w := &walk{
		hcpcs:    strings.ToUpper(strings.TrimSpace(code.HCPCS)),
		modifier: strings.ToUpper(strings.TrimSpace(code.Modifier)),
		geo:      geo,
		years:    years,
	}
	w.isFacility = setting == types.CareFacility
	if code.IsFacility != nil {
		w.isFacility = *code.IsFacility
	}
	w.res = types.CodeResolution{
		HCPCS:           w.hcpcs,
		Modifier:        w.modifier,
		ReferenceSource: types.SourceNone,
		LadderPath:      []types.LadderStep{},
	}
	w.res.Debug.IsFacility = w.isFacility
	if geo != nil {
		w.res.Debug.GeoMethod = geo.Method
	}
	if code.BilledAmount != nil {
		w.res.BilledAmount = types.Amount(*code.BilledAmount)
	}
	w.expl = explanation.New(w.hcpcs)

	if w.hcpcs == "" {
		w.res.MatchStatus = types.StatusMissing
		w.res.Confidence = types.ConfidenceLow
		w.res.Explanation = w.expl.AsUnpriced("no HCPCS code supplied", nil).ToNarrative()
		return w.res
	}

	for _, rung := range l.rungs(setting, w.hcpcs) {
		if w.priced {
			break
		}
		if ctx.Err() != nil {
			w.timedOut = true
			break
		}
		rung(ctx, w)
	}
	if !w.priced && ctx.Err() != nil {
		w.timedOut = true
	}

	l.finish(w)
	l.logger.Debug("code resolved",
		zap.String("hcpcs", w.hcpcs),
		zap.String("modifier", w.modifier),
		zap.String("status", string(w.res.MatchStatus)),
		zap.String("source", string(w.res.ReferenceSource)),
		zap.Int("steps", len(w.res.LadderPath)),
	)
	return w.res
}

type rung func(ctx context.Context, w *walk)

// rungs returns the ladder for a care setting
func (l *Ladder) rungs(setting types.CareSetting, hcpcs string) []rung {
	dme := IsDMECode(hcpcs)

	if setting == types.CareFacility {
		r := []rung{l.opps, l.oppsFallback, l.mpfs}
		if dme {
			r = append(r, l.dmepos)
		}
		return r
	}

	r := []rung{l.mpfs}
	if dme {
		r = append(r, l.dmepos, l.dmepen)
	}
	return r
}

// finish settles status, confidence and explanation
func (l *Ladder) finish(w *walk) {
	r := &w.res

	if w.timedOut {
		r.Debug.TimedOut = true
	}

	switch {
	case w.priced:
		r.Explanation = w.expl.WithAmount(r.ReferencePrice.Decimal.StringFixed(2)).ToNarrative()
		if types.Present(r.BilledAmount) && r.ReferencePrice.Decimal.IsPositive() {
			r.MedicareMultiple = types.Amount(r.BilledAmount.Decimal.Div(r.ReferencePrice.Decimal).Round(2))
		}
		return

	case w.timedOut:
		r.ReferencePrice = decimal.NullDecimal{}
		r.ReferenceSource = types.SourceNone
		r.MatchStatus = types.StatusMissing
		r.Confidence = types.ConfidenceLow
		r.LadderPath = append(r.LadderPath, types.LadderStep{Source: types.LadderDeadline, Reason: ReasonDeadline})
		r.Explanation = w.expl.AsUnpriced(ReasonDeadline, w.tried).ToNarrative()
		return
	}

	r.ReferencePrice = decimal.NullDecimal{}
	r.ReferenceSource = types.SourceNone

	for _, s := range r.LadderPath {
		if s.FoundRow {
			r.MatchStatus = types.StatusExistsNotPriced
			r.Confidence = types.ConfidenceMedium
			r.Explanation = w.expl.AsUnpriced(s.Reason, w.tried).ToNarrative()
			return
		}
	}

	r.MatchStatus = types.StatusMissing
	r.Confidence = types.ConfidenceLow
	reason := "code not found in any consulted fee schedule"
	if len(r.Debug.LookupErrors) > 0 {
		reason = "code not found; some lookups failed"
	}
	r.Explanation = w.expl.AsUnpriced(reason, w.tried).ToNarrative()
}

// TimedOut builds the resolution of a code that never started before the
// request deadline
func TimedOut(code types.CodeInput, geo *types.GeoResolution) types.CodeResolution {
	hcpcs := strings.ToUpper(strings.TrimSpace(code.HCPCS))
	r := types.CodeResolution{
		HCPCS:           hcpcs,
		Modifier:        strings.ToUpper(strings.TrimSpace(code.Modifier)),
		ReferenceSource: types.SourceNone,
		MatchStatus:     types.StatusMissing,
		Confidence:      types.ConfidenceLow,
		Explanation:     explanation.New(hcpcs).AsUnpriced(ReasonDeadline, nil).ToNarrative(),
		LadderPath:      []types.LadderStep{{Source: types.LadderDeadline, Reason: ReasonDeadline}},
	}
	r.Debug.TimedOut = true
	if geo != nil {
		r.Debug.GeoMethod = geo.Method
	}
	if code.BilledAmount != nil {
		r.BilledAmount = types.Amount(*code.BilledAmount)
	}
	return r
}
