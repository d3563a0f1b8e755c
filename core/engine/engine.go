// Package engine provides the reference price resolution engine.
// CLI and HTTP are thin wrappers around this engine.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"medicare-refprice/core/fee"
	"medicare-refprice/core/geo"
	"medicare-refprice/core/ladder"
	"medicare-refprice/core/refdata"
	"medicare-refprice/core/types"
	apperrors "medicare-refprice/internal/errors"
	"medicare-refprice/internal/logging"
	"medicare-refprice/internal/metrics"
)

// Config configures the engine
type Config struct {
	// Workers bounds concurrent ladder walks per call
	Workers int

	// LookupTimeout bounds each reference store attempt
	LookupTimeout time.Duration

	// LookupRetries is how many extra attempts a failed lookup gets
	LookupRetries int

	// RequestTimeout is the overall deadline of one resolve call
	RequestTimeout time.Duration

	// QPStatus keys MPFS lookups
	QPStatus string
}

// DefaultConfig returns the defaults used when a field is zero
func DefaultConfig() Config {
	return Config{
		Workers:        8,
		LookupTimeout:  2 * time.Second,
		LookupRetries:  1,
		RequestTimeout: 15 * time.Second,
		QPStatus:       "nonQP",
	}
}

// Options carries the engine's optional collaborators
type Options struct {
	Geography  *refdata.Geography
	Fallback   *refdata.FallbackTable
	Calculator *fee.Calculator
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Engine is the primary API for reference price resolution.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	store    refdata.Store
	resolver *geo.Resolver
	ladder   *ladder.Ladder
	metrics  *metrics.Metrics
	logger   *zap.Logger
	config   Config
}

// New creates an engine over store. Every lookup is guarded with the
// configured timeout and retries.
func New(store refdata.Store, config Config, opts Options) *Engine {
	def := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.LookupTimeout <= 0 {
		config.LookupTimeout = def.LookupTimeout
	}
	if config.LookupRetries < 0 {
		config.LookupRetries = 0
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = def.RequestTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Named("engine")
	}

	guarded, ok := store.(*refdata.Guard)
	if !ok {
		guarded = refdata.NewGuard(store, refdata.GuardOptions{
			Timeout:  config.LookupTimeout,
			Retries:  config.LookupRetries,
			Observer: opts.Metrics,
		})
	}

	return &Engine{
		store:    guarded,
		resolver: geo.NewResolver(guarded, opts.Geography, opts.Logger.Named("geo")),
		ladder: ladder.New(guarded, ladder.Options{
			Calculator: opts.Calculator,
			Fallback:   opts.Fallback,
			QPStatus:   config.QPStatus,
			Logger:     opts.Logger.Named("ladder"),
		}),
		metrics: opts.Metrics,
		logger:  opts.Logger,
		config:  config,
	}
}

// Config returns the effective configuration
func (e *Engine) Config() Config {
	return e.config
}

// Ping reports whether the reference store is reachable
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.store.Ping(ctx); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	return nil
}

// ResolveGeo resolves a ZIP/state pair on its own. It never fails.
func (e *Engine) ResolveGeo(ctx context.Context, zip, state string) *types.GeoResolution {
	g := e.resolver.Resolve(ctx, zip, state)
	e.metrics.ObserveGeo(g.Method)
	return g
}

// ResolveReferences prices every code of req. Per-code and per-lookup
// failures degrade the affected codes only; the returned error is set
// only for a malformed request or an unreachable store.
func (e *Engine) ResolveReferences(ctx context.Context, req types.ResolveRequest) (*types.ResolverOutput, error) {
	start := time.Now()

	if len(req.Codes) == 0 {
		return nil, apperrors.Input("at least one code is required")
	}
	if !req.CareSetting.IsValid() {
		return nil, apperrors.Input("careSetting must be office or facility").
			WithContext("careSetting", string(req.CareSetting))
	}
	if req.Year != nil && *req.Year <= 0 {
		return nil, apperrors.Input("year must be positive")
	}

	requestID := uuid.NewString()
	log := e.logger.With(logging.Request(requestID))

	ctx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	defer cancel()

	if err := e.store.Ping(ctx); err != nil {
		log.Warn("reference store unavailable", zap.Error(err))
		return nil, apperrors.StoreUnavailable(err)
	}

	g := e.ResolveGeo(ctx, req.Zip, req.State)
	years := e.yearsUsed(ctx, req.Year, log)

	results := make([]types.CodeResolution, len(req.Codes))
	var group errgroup.Group
	group.SetLimit(e.config.Workers)

	for i, code := range req.Codes {
		if ctx.Err() != nil {
			results[i] = ladder.TimedOut(code, g)
			continue
		}
		group.Go(func() error {
			results[i] = e.ladder.Resolve(ctx, code, req.CareSetting, g, years)
			return nil
		})
	}
	_ = group.Wait()

	deadlineExceeded := false
	for _, r := range results {
		e.metrics.ObserveResolution(r.MatchStatus, r.ReferenceSource)
		if r.Debug.TimedOut {
			deadlineExceeded = true
		}
	}

	out := &types.ResolverOutput{
		Results: results,
		Summary: ladder.Aggregate(results),
		Geo:     g,
		Metadata: types.Metadata{
			RequestID:        requestID,
			CareSetting:      req.CareSetting,
			YearsUsed:        years,
			QPStatus:         e.config.QPStatus,
			GeneratedAt:      time.Now().UTC(),
			DurationMs:       time.Since(start).Milliseconds(),
			DeadlineExceeded: deadlineExceeded,
		},
	}

	e.metrics.ObserveRequest(time.Since(start), deadlineExceeded)
	log.Info("resolve complete",
		zap.Int("codes", out.Summary.TotalCodes),
		zap.Int("priced", out.Summary.TotalPriced),
		zap.Int("exists_not_priced", out.Summary.TotalExistsNotPriced),
		zap.Int("missing", out.Summary.TotalMissing),
		zap.String("geo_method", string(g.Method)),
		zap.Bool("deadline_exceeded", deadlineExceeded),
		zap.Int64("duration_ms", out.Metadata.DurationMs),
	)
	return out, nil
}

// yearsUsed pins every dataset to the requested year, or to the newest
// loaded one. A dataset with no year is skipped by the ladder.
func (e *Engine) yearsUsed(ctx context.Context, pinned *int, log *zap.Logger) types.YearsUsed {
	var y types.YearsUsed
	for _, d := range types.AllDatasets {
		year := 0
		if pinned != nil {
			year = *pinned
		} else {
			latest, err := e.store.LatestYear(ctx, d)
			switch {
			case err == nil:
				year = latest
			case refdata.IsNotFound(err):
				log.Debug("dataset not loaded", zap.String("dataset", string(d)))
			default:
				log.Warn("latest year lookup failed", zap.String("dataset", string(d)), zap.Error(err))
			}
		}

		switch d {
		case types.DatasetMPFS:
			y.MPFS = year
		case types.DatasetOPPS:
			y.OPPS = year
		case types.DatasetDMEPOS:
			y.DMEPOS = year
		case types.DatasetDMEPEN:
			y.DMEPEN = year
		}
	}
	return y
}
