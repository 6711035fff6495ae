// Package metrics exposes Prometheus counters for the order workflow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "commerce"

// Order placement results.
const (
	OrderResultCreated  = "created"
	OrderResultReplayed = "replayed"
	OrderResultRejected = "rejected"
	OrderResultFailed   = "failed"
)

// Metrics holds the service's collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	gatherer prometheus.Gatherer

	ordersPlaced      *prometheus.CounterVec
	orderAmount       *prometheus.CounterVec
	paymentAttempts   *prometheus.CounterVec
	paymentProjection *prometheus.CounterVec
	invoiceArchive    *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		gatherer: reg,
		ordersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Order placement requests by result.",
		}, []string{"result"}),
		orderAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_amount_minor_total",
			Help:      "Sum of created order totals in currency minor units.",
		}, []string{"currency"}),
		paymentAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_attempts_total",
			Help:      "Recorded payment attempts by provider and status.",
		}, []string{"provider", "status"}),
		paymentProjection: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_projections_total",
			Help:      "Payment projection outcomes.",
		}, []string{"outcome"}),
		invoiceArchive: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_archive_total",
			Help:      "Invoice archive writes by result.",
		}, []string{"result"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.ordersPlaced,
		m.orderAmount,
		m.paymentAttempts,
		m.paymentProjection,
		m.invoiceArchive,
		m.httpDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// OrderPlaced counts a placement attempt. Created orders also add their total.
func (m *Metrics) OrderPlaced(result, currency string, total int64) {
	if m == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(result).Inc()
	if result == OrderResultCreated && total > 0 {
		m.orderAmount.WithLabelValues(currency).Add(float64(total))
	}
}

// PaymentAttempt counts a recorded ledger entry.
func (m *Metrics) PaymentAttempt(provider, status string) {
	if m == nil {
		return
	}
	m.paymentAttempts.WithLabelValues(provider, status).Inc()
}

// PaymentProjected counts a projector outcome.
func (m *Metrics) PaymentProjected(outcome string) {
	if m == nil {
		return
	}
	m.paymentProjection.WithLabelValues(outcome).Inc()
}

// InvoiceArchived counts an archive write.
func (m *Metrics) InvoiceArchived(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.invoiceArchive.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
