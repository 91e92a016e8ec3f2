package server

import (
	"net/http"

	"craftbid/internal/apiserver/artisan"
	"craftbid/internal/apiserver/auth"
	"craftbid/internal/apiserver/gate"
)

// Router 返回配置好的 HTTP 路由
//
// 健康检查与指标:
//   - GET /health
//   - GET /metrics
//
// 认证 (auth 包):
//   - POST /api/v1/auth/register | login | refresh
//   - GET  /api/v1/auth/me | verification-status
//   - GET  /api/v1/auth/email/verify/{id}/{hash}, POST /api/v1/auth/email/resend
//   - GET  /api/v1/auth/google/redirect | callback
//
// 手艺人与审核 (artisan 包):
//   - GET/PUT /api/v1/artisan/profile, POST /api/v1/artisan/verification
//   - GET     /api/v1/artisan/dashboard（门禁）
//   - /api/v1/admin/artisans/...、POST /api/v1/admin/sweeper/run
//
// WebSocket:
//   - GET /ws/verification?token=... 审核事件推送
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", h.metrics.Handler())

	authHandler := auth.NewHandler(h.infra.Storage, h.opts.Auth)
	if h.opts.Google != nil {
		authHandler.WithGoogle(h.opts.Google, h.infra.Cache, h.opts.FrontendURL)
	}
	authHandler.RegisterRoutes(mux)

	artisanHandler := artisan.NewHandler(h.infra.Storage, h.service, gate.New(h.infra.Storage, h.metrics))
	if h.infra.Documents != nil {
		artisanHandler.WithDocuments(h.infra.Documents)
	}
	if h.opts.Sweeper != nil {
		artisanHandler.WithSweeper(h.opts.Sweeper)
	}
	artisanHandler.RegisterRoutes(mux)

	// 中间件顺序：CORS → 认证 → 指标 → 路由
	apiHandler := h.metrics.MetricsMiddleware(mux)
	authedHandler := auth.Middleware(h.opts.Auth)(apiHandler)
	corsHandler := corsMiddleware(authedHandler)

	// WebSocket 绕过 metrics 中间件（responseWriter 不支持 http.Hijacker）
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /ws/verification", h.gateway.HandleWebSocket)
	topMux.Handle("/", corsHandler)

	return topMux
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
