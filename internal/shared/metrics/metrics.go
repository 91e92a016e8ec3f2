// Package metrics Prometheus 指标导出
//
// 每个 Metrics 实例持有独立的 Registry，测试中可重复创建。
// 所有 Record* 方法对 nil 接收者安全，未注入指标的组件无需判空。
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 包含所有服务指标
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// 审核状态机指标
	VerificationTransitions *prometheus.CounterVec

	// 自动审核任务指标
	SweeperRunsTotal     prometheus.Counter
	SweeperProfiles      *prometheus.CounterVec
	SweeperRunDuration   prometheus.Histogram
	SweeperLastRunUnixTs prometheus.Gauge

	// 访问门禁指标
	GateDecisions *prometheus.CounterVec

	// WebSocket 指标
	WSConnectionsActive prometheus.Gauge
	WSMessagesTotal     *prometheus.CounterVec
}

// NewMetrics 创建指标实例（含 Go 运行时与进程指标）
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		VerificationTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verification_transitions_total",
				Help:      "Artisan verification transitions by event",
			},
			[]string{"event"},
		),
		SweeperRunsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeper_runs_total",
				Help:      "Total auto-approval sweeper passes",
			},
		),
		SweeperProfiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeper_profiles_total",
				Help:      "Profiles handled by the auto-approval sweeper by outcome",
			},
			[]string{"outcome"},
		),
		SweeperRunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweeper_run_duration_seconds",
				Help:      "Auto-approval sweeper pass duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		SweeperLastRunUnixTs: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sweeper_last_run_timestamp_seconds",
				Help:      "Unix time of the last completed sweeper pass",
			},
		),
		GateDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_decisions_total",
				Help:      "Artisan access gate decisions by reason",
			},
			[]string{"reason"},
		),
		WSConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_connections_active",
				Help:      "Active WebSocket connections",
			},
		),
		WSMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_messages_total",
				Help:      "Total WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}
}

// Registry 返回底层 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 Prometheus HTTP Handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// MetricsMiddleware 创建 HTTP 指标中间件
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		// 包装 ResponseWriter 以捕获状态码
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter 包装 http.ResponseWriter 以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath 规范化路径，将 ID 段替换为占位符，避免高基数
//
//	/api/v1/admin/artisans/3f2a.../confirm -> /api/v1/admin/artisans/{id}/confirm
//	/api/v1/auth/email/verify/u1/abcd     -> /api/v1/auth/email/verify/{id}/{hash}
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/admin/artisans/"):
		rest := strings.TrimPrefix(path, "/api/v1/admin/artisans/")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return "/api/v1/admin/artisans/{id}" + rest[i:]
		}
		return "/api/v1/admin/artisans/{id}"
	case strings.HasPrefix(path, "/api/v1/auth/email/verify/"):
		return "/api/v1/auth/email/verify/{id}/{hash}"
	default:
		return path
	}
}

// RecordTransition 记录审核状态变更
func (m *Metrics) RecordTransition(event string) {
	if m == nil {
		return
	}
	m.VerificationTransitions.WithLabelValues(event).Inc()
}

// RecordSweep 记录一次自动审核扫描
func (m *Metrics) RecordSweep(approved, skipped, failed int, duration time.Duration) {
	if m == nil {
		return
	}
	m.SweeperRunsTotal.Inc()
	m.SweeperProfiles.WithLabelValues("approved").Add(float64(approved))
	m.SweeperProfiles.WithLabelValues("skipped").Add(float64(skipped))
	m.SweeperProfiles.WithLabelValues("failed").Add(float64(failed))
	m.SweeperRunDuration.Observe(duration.Seconds())
	m.SweeperLastRunUnixTs.SetToCurrentTime()
}

// RecordGateDecision 记录门禁判定结果
func (m *Metrics) RecordGateDecision(reason string) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(reason).Inc()
}

// RecordWSMessage 记录 WebSocket 消息
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessagesTotal.WithLabelValues(direction, msgType).Inc()
}

// WSConnectionOpened WebSocket 连接打开
func (m *Metrics) WSConnectionOpened() {
	if m == nil {
		return
	}
	m.WSConnectionsActive.Inc()
}

// WSConnectionClosed WebSocket 连接关闭
func (m *Metrics) WSConnectionClosed() {
	if m == nil {
		return
	}
	m.WSConnectionsActive.Dec()
}
