package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Batch kinds
const (
	BatchVariants  = "variants"
	BatchInventory = "inventory"
)

// Metrics records reconciliation outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	orders       *prometheus.CounterVec
	batches      *prometheus.CounterVec
	drafted      prometheus.Counter
	fulfillments *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobSuccess   *prometheus.CounterVec
	jobFailure   *prometheus.CounterVec
}

// New registers the integration metrics on the provided registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turum_orders_processed_total",
			Help: "Storefront orders processed, by resulting status.",
		}, []string{"status"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turum_catalog_batches_total",
			Help: "Storefront batch mutations submitted during catalog sync.",
		}, []string{"kind", "result"}),
		drafted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "turum_products_drafted_total",
			Help: "Storefront products set to draft because they left the supplier feed.",
		}),
		fulfillments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turum_fulfillments_total",
			Help: "Storefront fulfillment attempts from supplier tracking.",
		}, []string{"result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "turum_job_duration_seconds",
			Help:    "Duration of scheduled passes in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		jobSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turum_job_success",
			Help: "Successful scheduled passes.",
		}, []string{"job"}),
		jobFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turum_job_failure",
			Help: "Failed scheduled passes.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.orders, m.batches, m.drafted, m.fulfillments, m.jobDuration, m.jobSuccess, m.jobFailure)
	return m
}

// IncOrder counts an order that ended in status.
func (m *Metrics) IncOrder(status string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncBatch counts one batch call of kind.
func (m *Metrics) IncBatch(kind string, ok bool) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(normalizeLabel(kind), result(ok)).Inc()
}

// AddDrafted counts drafted products.
func (m *Metrics) AddDrafted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.drafted.Add(float64(n))
}

// IncFulfillment counts a fulfillment attempt.
func (m *Metrics) IncFulfillment(ok bool) {
	if m == nil {
		return
	}
	m.fulfillments.WithLabelValues(result(ok)).Inc()
}

// ObserveJob records one run of a scheduled pass.
func (m *Metrics) ObserveJob(job string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	job = normalizeLabel(job)
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
	if err != nil {
		m.jobFailure.WithLabelValues(job).Inc()
		return
	}
	m.jobSuccess.WithLabelValues(job).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
