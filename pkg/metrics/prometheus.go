package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	trainingsTotal *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	alertsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	cacheSize      prometheus.Gauge
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		trainingsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_trainings_total",
				Help: "Total number of training cycles by strategy",
			},
			[]string{"strategy"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		alertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_alerts_total",
				Help: "Total number of alerts fired by severity",
			},
			[]string{"severity"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricecast_last_price",
				Help: "Last observed price for an item",
			},
			[]string{"item_id"},
		),
		cacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricecast_model_cache_size",
				Help: "Number of model ensembles currently cached",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricecast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordTraining records a finished training cycle.
func (r *Recorder) RecordTraining(strategy string) {
	r.trainingsTotal.WithLabelValues(strategy).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordAlert records a fired alert.
func (r *Recorder) RecordAlert(severity string) {
	r.alertsTotal.WithLabelValues(severity).Inc()
}

// RecordLastPrice records the last observed price for an item.
func (r *Recorder) RecordLastPrice(itemID int64, price float64) {
	r.lastPrice.WithLabelValues(strconv.FormatInt(itemID, 10)).Set(price)
}

// RecordCacheSize records the model cache fill level.
func (r *Recorder) RecordCacheSize(size int) {
	r.cacheSize.Set(float64(size))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
