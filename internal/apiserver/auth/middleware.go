package auth

import (
	"context"
	"log"
	"net/http"
	"strings"

	"craftbid/internal/shared/model"
)

// 免认证路由白名单（前缀匹配）
var publicPrefixes = []string{
	"/api/v1/auth/register",
	"/api/v1/auth/login",
	"/api/v1/auth/refresh",
	"/api/v1/auth/google/",
	"/api/v1/auth/email/verify/",
	"/health",
	"/metrics",
	"/ws/", // WebSocket 通过 ?token= 自行认证
}

func isPublicRoute(method, path string) bool {
	if method == http.MethodOptions {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Middleware 创建 JWT 认证中间件
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicRoute(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// 提取 Bearer Token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthenticated(w)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeUnauthenticated(w)
				return
			}

			user, err := AuthenticateToken(cfg, parts[1])
			if err != nil {
				log.Printf("[auth.token.invalid] path=%s error=%v", r.URL.Path, err)
				writeUnauthenticated(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthUser(r.Context(), user)))
		})
	}
}

// UserLoader 按 ID 加载用户（含角色）
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// RequireRole 角色校验中间件
//
// 每次请求都从存储重新加载角色，角色变更即时生效。
// 拥有任一角色即放行；加载的用户通过 GetUser 提供给后续处理器。
func RequireRole(store UserLoader, roles ...model.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authUser := GetAuthUser(r.Context())
			if authUser == nil {
				writeUnauthenticated(w)
				return
			}

			user, err := store.GetUserByID(r.Context(), authUser.ID)
			if err != nil {
				log.Printf("[auth.role.load.failed] user_id=%s error=%v", authUser.ID, err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if user == nil {
				writeUnauthenticated(w)
				return
			}
			if !user.Roles.HasAny(roles...) {
				writeJSON(w, http.StatusForbidden, map[string]string{"message": "This action is unauthorized."})
				return
			}

			next(w, r.WithContext(WithUser(r.Context(), user)))
		}
	}
}

func writeUnauthenticated(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
}
