// Package server 路由配置与核心基础设施
//
// 文件组织：
//   - common.go: Handler 定义与通用工具函数
//   - handler.go: 路由与中间件装配
//   - websocket.go: 审核事件 WebSocket 网关
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"craftbid/internal/apiserver/auth"
	"craftbid/internal/apiserver/sweeper"
	"craftbid/internal/apiserver/verification"
	"craftbid/internal/shared/infra"
	"craftbid/internal/shared/metrics"
)

// Options 可选组件
type Options struct {
	Auth auth.Config
	// Google 为 nil 时不启用 Google 登录
	Google      auth.GoogleProvider
	FrontendURL string
	// Sweeper 为 nil 时管理员无法手动触发自动审核
	Sweeper *sweeper.Sweeper
	Metrics *metrics.Metrics
}

// Handler API 处理器
//
// Handler 是所有 HTTP API 的入口，持有基础设施与业务服务，
// 由 Router 把各领域包的路由装配到一起。
type Handler struct {
	infra   *infra.Infrastructure
	service *verification.Service
	opts    Options
	metrics *metrics.Metrics
	gateway *EventGateway
}

// NewHandler 创建 Handler 实例
func NewHandler(in *infra.Infrastructure, service *verification.Service, opts Options) *Handler {
	m := opts.Metrics
	if m == nil {
		m = metrics.NewMetrics("craftbid")
	}
	opts.FrontendURL = strings.TrimRight(opts.FrontendURL, "/")
	return &Handler{
		infra:   in,
		service: service,
		opts:    opts,
		metrics: m,
		gateway: NewEventGateway(in.EventBus, opts.Auth, m),
	}
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *metrics.Metrics {
	return h.metrics
}

// Gateway 返回 WebSocket 事件网关
func (h *Handler) Gateway() *EventGateway {
	return h.gateway
}

// Health 健康检查接口
//
// 路由: GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"websocket_clients": h.gateway.ClientCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
