package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector 指标收集器
type MetricsCollector struct {
	registry *prometheus.Registry

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 业务指标
	ordersCreatedTotal    *prometheus.CounterVec
	paymentVerifiedTotal  *prometheus.CounterVec
	stockConflictsTotal   prometheus.Counter
	outboxDeliveriesTotal *prometheus.CounterVec
	outboxBacklog         prometheus.Gauge
}

// NewMetricsCollector 创建指标收集器，使用独立 Registry 便于测试
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()
	m := &MetricsCollector{
		registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		ordersCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_created_total",
				Help: "Orders created, by payment method",
			},
			[]string{"payment_method"},
		),

		paymentVerifiedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_verifications_total",
				Help: "Payment verification outcomes",
			},
			[]string{"result"},
		),

		stockConflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stock_conflicts_total",
				Help: "Paid orders whose stock decrement was rejected",
			},
		),

		outboxDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outbox_deliveries_total",
				Help: "Outbox message delivery attempts",
			},
			[]string{"channel", "result"},
		),

		outboxBacklog: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "outbox_claimed_batch_size",
				Help: "Size of the last claimed outbox batch",
			},
		),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.ordersCreatedTotal,
		m.paymentVerifiedTotal,
		m.stockConflictsTotal,
		m.outboxDeliveriesTotal,
		m.outboxBacklog,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// OrderCreated 记录下单
func (m *MetricsCollector) OrderCreated(paymentMethod string) {
	m.ordersCreatedTotal.WithLabelValues(paymentMethod).Inc()
}

// PaymentVerified 记录支付校验结果: paid / failed / duplicate / error
func (m *MetricsCollector) PaymentVerified(result string) {
	m.paymentVerifiedTotal.WithLabelValues(result).Inc()
}

// StockConflict 记录库存扣减冲突
func (m *MetricsCollector) StockConflict() {
	m.stockConflictsTotal.Inc()
}

// OutboxDelivery 记录通知投递
func (m *MetricsCollector) OutboxDelivery(channel, result string) {
	m.outboxDeliveriesTotal.WithLabelValues(channel, result).Inc()
}

// OutboxClaimed 记录本轮领取的消息数
func (m *MetricsCollector) OutboxClaimed(n int) {
	m.outboxBacklog.Set(float64(n))
}

// WatchDB 暴露连接池统计 (open / in_use / idle / wait)
func (m *MetricsCollector) WatchDB(db *sql.DB) error {
	return m.registry.Register(collectors.NewDBStatsCollector(db, "phonehub"))
}

// Handler 暴露 /metrics
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回底层 Registry
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

var (
	globalCollector *MetricsCollector
	once            sync.Once
)

// GetGlobalCollector 获取全局指标收集器
func GetGlobalCollector() *MetricsCollector {
	once.Do(func() {
		globalCollector = NewMetricsCollector()
	})
	return globalCollector
}
