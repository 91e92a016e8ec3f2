package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftbid/internal/shared/model"
)

func TestIsPublicRoute(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		expected bool
	}{
		// 公开路由
		{"login", "POST", "/api/v1/auth/login", true},
		{"register", "POST", "/api/v1/auth/register", true},
		{"google redirect", "GET", "/api/v1/auth/google/redirect", true},
		{"email verify", "GET", "/api/v1/auth/email/verify/u1/abc", true},
		{"health", "GET", "/health", true},
		{"metrics", "GET", "/metrics", true},
		{"ws", "GET", "/ws/verification", true},
		{"preflight", "OPTIONS", "/api/v1/artisan/profile", true},

		// 需要 JWT
		{"me", "GET", "/api/v1/auth/me", false},
		{"resend", "POST", "/api/v1/auth/email/resend", false},
		{"artisan profile", "GET", "/api/v1/artisan/profile", false},
		{"admin confirm", "POST", "/api/v1/admin/artisans/a1/confirm", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isPublicRoute(tt.method, tt.path)
			if got != tt.expected {
				t.Errorf("isPublicRoute(%q, %q) = %v, want %v", tt.method, tt.path, got, tt.expected)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	cfg := testConfig()
	var seen *AuthUser
	h := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetAuthUser(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	pair, err := IssueTokens(cfg, &model.User{ID: "u1", Roles: model.NewRoleSet(model.RoleBuyer)})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"refresh token", "Bearer " + pair.RefreshToken, http.StatusUnauthorized},
		{"valid", "Bearer " + pair.AccessToken, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest("GET", "/api/v1/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.JSONEq(t, `{"message":"Unauthenticated."}`, rec.Body.String())
				assert.Nil(t, seen)
			} else {
				require.NotNil(t, seen)
				assert.Equal(t, "u1", seen.ID)
			}
		})
	}
}

// mockUserLoader 按 ID 返回预置用户
type mockUserLoader map[string]*model.User

func (m mockUserLoader) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return m[id], nil
}

func TestRequireRole(t *testing.T) {
	store := mockUserLoader{
		"admin":  {ID: "admin", Roles: model.NewRoleSet(model.RoleAdmin)},
		"buyer":  {ID: "buyer", Roles: model.NewRoleSet(model.RoleBuyer)},
		"helper": {ID: "helper", Roles: model.NewRoleSet(model.RoleVerifier)},
	}
	var loaded *model.User
	h := RequireRole(store, model.RoleAdmin, model.RoleVerifier)(func(w http.ResponseWriter, r *http.Request) {
		loaded = GetUser(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		user   *AuthUser
		status int
		body   string
	}{
		{"unauthenticated", nil, http.StatusUnauthorized, `{"message":"Unauthenticated."}`},
		{"deleted user", &AuthUser{ID: "ghost"}, http.StatusUnauthorized, `{"message":"Unauthenticated."}`},
		{"wrong role", &AuthUser{ID: "buyer"}, http.StatusForbidden, `{"message":"This action is unauthorized."}`},
		{"admin", &AuthUser{ID: "admin"}, http.StatusOK, ""},
		{"verifier", &AuthUser{ID: "helper"}, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loaded = nil
			req := httptest.NewRequest("GET", "/api/v1/admin/artisans", nil)
			if tt.user != nil {
				req = req.WithContext(WithAuthUser(req.Context(), tt.user))
			}
			rec := httptest.NewRecorder()
			h(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.JSONEq(t, tt.body, rec.Body.String())
			} else {
				require.NotNil(t, loaded)
				assert.Equal(t, tt.user.ID, loaded.ID)
			}
		})
	}
}
