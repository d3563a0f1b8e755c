package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"medicare-refprice/core/types"
	"medicare-refprice/internal/logging"
)

const namespace = "refprice"

// Metrics holds the engine's instruments. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	lookups         *prometheus.CounterVec
	lookupDuration  *prometheus.HistogramVec
	resolutions     *prometheus.CounterVec
	geoResolutions  *prometheus.CounterVec
	requestDuration prometheus.Histogram
	deadlines       prometheus.Counter
}

// New registers every instrument on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_lookups_total",
			Help:      "Reference store lookups by table and outcome",
		}, []string{"table", "outcome"}),
		lookupDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_lookup_duration_seconds",
			Help:      "Reference store lookup latency including retries",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"table"}),
		resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_resolutions_total",
			Help:      "Code resolutions by match status and reference source",
		}, []string{"status", "source"}),
		geoResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_resolutions_total",
			Help:      "Geography resolutions by method",
		}, []string{"method"}),
		requestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "End-to-end resolve call latency",
			Buckets:   prometheus.DefBuckets,
		}),
		deadlines: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_deadline_exceeded_total",
			Help:      "Resolve calls cut short by the request deadline",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveLookup records one guarded store lookup
func (m *Metrics) ObserveLookup(table, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(table, outcome).Inc()
	m.lookupDuration.WithLabelValues(table).Observe(elapsed.Seconds())
}

// ObserveResolution records one finished code
func (m *Metrics) ObserveResolution(status types.MatchStatus, source types.ReferenceSource) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(string(status), string(source)).Inc()
}

// ObserveGeo records one geography resolution
func (m *Metrics) ObserveGeo(method types.GeoMethod) {
	if m == nil {
		return
	}
	m.geoResolutions.WithLabelValues(string(method)).Inc()
}

// ObserveRequest records one resolve call
func (m *Metrics) ObserveRequest(elapsed time.Duration, deadlineExceeded bool) {
	if m == nil {
		return
	}
	m.requestDuration.Observe(elapsed.Seconds())
	if deadlineExceeded {
		m.deadlines.Inc()
	}
}

var datasetYearDesc = prometheus.NewDesc(
	namespace+"_dataset_latest_year",
	"Newest schedule year loaded per dataset",
	[]string{"dataset"},
	nil,
)

// YearSource is the part of the reference store the year collector reads
type YearSource interface {
	LatestYear(ctx context.Context, dataset types.Dataset) (int, error)
}

// DatasetCollector reads loaded schedule years from the store on each scrape
type DatasetCollector struct {
	store YearSource
}

// Describe sends the metric descriptor to the channel.
func (c *DatasetCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- datasetYearDesc
}

// Collect queries the store for each dataset's newest year.
func (c *DatasetCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, d := range types.AllDatasets {
		year, err := c.store.LatestYear(ctx, d)
		if err != nil {
			logging.Debug("no year for dataset", zap.String("dataset", string(d)), zap.Error(err))
			continue
		}
		ch <- prometheus.MustNewConstMetric(datasetYearDesc, prometheus.GaugeValue, float64(year), string(d))
	}
}

// WatchDatasets registers the dataset year collector
func (m *Metrics) WatchDatasets(store YearSource) {
	m.registry.MustRegister(&DatasetCollector{store: store})
}
