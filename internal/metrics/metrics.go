// Package metrics 暴露 Prometheus 指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 汇总服务使用的全部指标
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sourceFailures  *prometheus.CounterVec
	composeDuration *prometheus.HistogramVec
}

// New 在独立的 registry 上注册指标，避免测试之间互相污染
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracklog",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tracklog",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracklog",
			Name:      "habit_source_failures_total",
			Help:      "Completion source reads that failed and were treated as not completed.",
		}, []string{"source"}),
		composeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tracklog",
			Name:      "habit_compose_duration_seconds",
			Help:      "Time spent composing today and stats views.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"view"}),
	}

	registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.sourceFailures,
		m.composeDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// SourceFailed 记录一次降级读取
func (m *Metrics) SourceFailed(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
}

// ObserveCompose 记录一次视图组装耗时
func (m *Metrics) ObserveCompose(view string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.composeDuration.WithLabelValues(view).Observe(elapsed.Seconds())
}

// Middleware 统计请求数与耗时，route 使用 gin 的路由模板避免高基数
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler 返回 /metrics 的处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
