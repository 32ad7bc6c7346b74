package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersCreated   prometheus.Counter
	OrdersConfirmed prometheus.Counter
	OrdersPaid      prometheus.Counter
	PaymentFailures prometheus.Counter
	StockShortfalls prometheus.Counter
	PayLatencySec   prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	created := prometheus.NewCounter(prometheus.CounterOpts{Name: "shop_orders_created_total"})
	confirmed := prometheus.NewCounter(prometheus.CounterOpts{Name: "shop_orders_confirmed_total"})
	paid := prometheus.NewCounter(prometheus.CounterOpts{Name: "shop_orders_paid_total"})
	payFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "shop_payment_failures_total"})
	shortfalls := prometheus.NewCounter(prometheus.CounterOpts{Name: "shop_stock_shortfalls_total"})
	payLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shop_pay_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(created, confirmed, paid, payFailed, shortfalls, payLatency)
	return &Registry{
		reg:             r,
		OrdersCreated:   created,
		OrdersConfirmed: confirmed,
		OrdersPaid:      paid,
		PaymentFailures: payFailed,
		StockShortfalls: shortfalls,
		PayLatencySec:   payLatency,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
