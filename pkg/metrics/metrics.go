package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records batch, provider, store and HTTP metrics
// ⭐ SSOT: prometheus 메트릭 정의는 여기서만
type Recorder struct {
	gatherer      prometheus.Gatherer
	stageUnits    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	lastRun       *prometheus.GaugeVec
	providerCalls *prometheus.CounterVec
	storeWrites   *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New creates a recorder registered on its own registry
func New() *Recorder {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a recorder registered on reg
func NewWithRegistry(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		gatherer: reg,
		stageUnits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sectorpulse_stage_units_total",
				Help: "Units processed per batch stage by outcome",
			},
			[]string{"stage", "status"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sectorpulse_stage_duration_seconds",
				Help:    "Duration of batch stages in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"stage"},
		),
		lastRun: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sectorpulse_stage_last_run_timestamp_seconds",
				Help: "Unix time of the last completed run per stage",
			},
			[]string{"stage"},
		),
		providerCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sectorpulse_provider_calls_total",
				Help: "Market data provider calls by operation and result",
			},
			[]string{"provider", "op", "result"},
		),
		storeWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sectorpulse_store_writes_total",
				Help: "Records written to the store by table, write mode and result",
			},
			[]string{"table", "mode", "result"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sectorpulse_http_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sectorpulse_http_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
}

// RecordStage records the outcome counts and duration of a stage
func (r *Recorder) RecordStage(stage string, counts map[string]int, d time.Duration) {
	for status, n := range counts {
		r.stageUnits.WithLabelValues(stage, status).Add(float64(n))
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	r.lastRun.WithLabelValues(stage).SetToCurrentTime()
}

// RecordProviderCall records one provider call
func (r *Recorder) RecordProviderCall(provider, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.providerCalls.WithLabelValues(provider, op, result).Inc()
}

// RecordStoreWrite records n records written in a mode ("batch" or "single")
func (r *Recorder) RecordStoreWrite(table, mode string, n int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.storeWrites.WithLabelValues(table, mode, result).Add(float64(n))
}

// RecordHTTP records an API request
func (r *Recorder) RecordHTTP(route, method, status string, d time.Duration) {
	r.httpRequests.WithLabelValues(route, method, status).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// Handler exposes the registry for scraping
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
