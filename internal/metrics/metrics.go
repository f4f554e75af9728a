package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes the bot's Prometheus metrics
type Recorder struct {
	registry     *prometheus.Registry
	analyses     *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	tpOutcomes   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	activeTracks prometheus.Gauge
}

// New creates a recorder on its own registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_analyses_total",
				Help: "Symbol analyses by outcome",
			},
			[]string{"symbol", "outcome"},
		),
		rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_rejections_total",
				Help: "Synthesis rejections by gate",
			},
			[]string{"stage"},
		),
		deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_deliveries_total",
				Help: "Per-chat deliveries by result",
			},
			[]string{"result"},
		),
		tpOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_tp_outcomes_total",
				Help: "Closed take-profit trackings by result",
			},
			[]string{"result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalbot_analysis_duration_seconds",
				Help:    "Duration of one symbol analysis including fetches",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"symbol"},
		),
		activeTracks: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalbot_active_trackings",
				Help: "Signals currently followed by the take-profit tracker",
			},
		),
	}
}

// RecordAnalysis counts one analysis and its duration
func (r *Recorder) RecordAnalysis(symbol, outcome string, d time.Duration) {
	r.analyses.WithLabelValues(symbol, outcome).Inc()
	r.duration.WithLabelValues(symbol).Observe(d.Seconds())
}

// RecordRejection counts a gate rejection
func (r *Recorder) RecordRejection(stage string) {
	r.rejections.WithLabelValues(stage).Inc()
}

// RecordDeliveries adds the results of one fan-out
func (r *Recorder) RecordDeliveries(sent, skipped, failed int) {
	r.deliveries.WithLabelValues("sent").Add(float64(sent))
	r.deliveries.WithLabelValues("skipped").Add(float64(skipped))
	r.deliveries.WithLabelValues("failed").Add(float64(failed))
}

// RecordTPOutcome counts a closed tracking
func (r *Recorder) RecordTPOutcome(result string) {
	r.tpOutcomes.WithLabelValues(result).Inc()
}

// SetActiveTrackings sets the active tracking gauge
func (r *Recorder) SetActiveTrackings(n int) {
	r.activeTracks.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
