// Package metrics はガロン配布サービスの Prometheus メトリクスを提供します。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gallon"

// Metrics はドメインイベントのカウンタをまとめたものです。nil レシーバでも安全に呼び出せます。
type Metrics struct {
	lookups        *prometheus.CounterVec
	distributions  *prometheus.CounterVec
	gallons        prometheus.Counter
	quotaResets    prometheus.Counter
	ledgerFailures prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	gatherer       prometheus.Gatherer
}

// New は reg にメトリクスを登録して返します。
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Employee lookups by outcome.",
		}, []string{"outcome"}),
		distributions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distributions_total",
			Help:      "Distribution requests by outcome.",
		}, []string{"outcome"}),
		gallons: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gallons_distributed_total",
			Help:      "Gallons deducted from employee quotas.",
		}),
		quotaResets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_resets_total",
			Help:      "Monthly quota resets applied on access.",
		}),
		ledgerFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_write_failures_total",
			Help:      "Transactions that could not be recorded after a successful deduction.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: reg,
	}
}

// NewDefault は Go ランタイムとプロセスのコレクタを含むレジストリで Metrics を生成します。
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// Handler は /metrics 用のハンドラを返します。
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// LookupCompleted は検索結果を記録します。
func (m *Metrics) LookupCompleted(outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(outcome).Inc()
}

// DistributionCompleted は配布結果を記録します。
func (m *Metrics) DistributionCompleted(outcome string, gallons int) {
	if m == nil {
		return
	}
	m.distributions.WithLabelValues(outcome).Inc()
	if gallons > 0 {
		m.gallons.Add(float64(gallons))
	}
}

// LedgerWriteFailed は取引記録の失敗を記録します。
func (m *Metrics) LedgerWriteFailed() {
	if m == nil {
		return
	}
	m.ledgerFailures.Inc()
}

// QuotaReset は月次リセットを記録します。
func (m *Metrics) QuotaReset() {
	if m == nil {
		return
	}
	m.quotaResets.Inc()
}

// ObserveHTTP は HTTP リクエストの結果とレイテンシを記録します。
func (m *Metrics) ObserveHTTP(route, code string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, code).Inc()
	m.httpLatency.WithLabelValues(route).Observe(seconds)
}
