package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 服务指标。nil 接收者上的方法均为空操作，便于关闭指标时直接传 nil
type Metrics struct {
	gatherer        prometheus.Gatherer
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	auditCreated    *prometheus.CounterVec
	loginAttempts   *prometheus.CounterVec
}

// New 创建指标并注册到 registry
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audit_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		auditCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_entries_created_total",
			Help: "Total number of audit entries created",
		}, []string{"severity"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
	}
	registry.MustRegister(m.requestsTotal, m.requestDuration, m.auditCreated, m.loginAttempts)
	return m
}

// Middleware 记录请求数与耗时，path 使用路由模板避免标签基数膨胀
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.requestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// Handler /metrics 输出
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// AuditCreated 审计日志写入计数
func (m *Metrics) AuditCreated(severity string) {
	if m == nil {
		return
	}
	m.auditCreated.WithLabelValues(severity).Inc()
}

// LoginAttempt 登录结果计数：success / invalid_credentials / inactive_account / error
func (m *Metrics) LoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}
