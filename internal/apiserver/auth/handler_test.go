package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftbid/internal/shared/model"
	"craftbid/internal/shared/storage"
	"craftbid/internal/shared/storage/dbutil"
)

func newTestStore(t *testing.T) storage.PersistentStore {
	t.Helper()
	store, err := storage.NewPersistentStore(dbutil.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// newTestServer 注册认证路由并套上 JWT 中间件
func newTestServer(t *testing.T, h *Handler) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return Middleware(h.cfg)(mux)
}

func doJSON(t *testing.T, srv http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, srv http.Handler, email, role string) authResponse {
	t.Helper()
	rec := doJSON(t, srv, "POST", "/api/v1/auth/register", "", map[string]string{
		"name":                  "Maker",
		"email":                 email,
		"password":              "secret123",
		"password_confirmation": "secret123",
		"role":                  role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRegister_Artisan(t *testing.T) {
	store := newTestStore(t)
	srv := newTestServer(t, NewHandler(store, testConfig()))

	resp := register(t, srv, "Maker@CraftBid.test", "artisan")
	require.NotNil(t, resp.User)
	assert.Equal(t, "maker@craftbid.test", resp.User.Email)
	assert.True(t, resp.User.Roles.Has(model.RoleArtisan))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	profile, err := store.GetArtisanByUserID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, model.ArtisanStatusPending, profile.Status)
	assert.Equal(t, model.IDVerificationNotStarted, profile.IDVerificationStatus)

	user, err := store.GetUserByID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, user.VerificationEmailSentAt)
}

func TestRegister_BuyerHasNoProfile(t *testing.T) {
	store := newTestStore(t)
	srv := newTestServer(t, NewHandler(store, testConfig()))

	resp := register(t, srv, "buyer@craftbid.test", "buyer")
	profile, err := store.GetArtisanByUserID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestRegister_Validation(t *testing.T) {
	srv := newTestServer(t, NewHandler(newTestStore(t), testConfig()))
	register(t, srv, "taken@craftbid.test", "buyer")

	tests := []struct {
		name  string
		body  map[string]string
		field string
	}{
		{"missing name", map[string]string{"email": "a@craftbid.test", "password": "secret123", "password_confirmation": "secret123", "role": "buyer"}, "name"},
		{"bad email", map[string]string{"name": "A", "email": "nope", "password": "secret123", "password_confirmation": "secret123", "role": "buyer"}, "email"},
		{"bad role", map[string]string{"name": "A", "email": "a@craftbid.test", "password": "secret123", "password_confirmation": "secret123", "role": "admin"}, "role"},
		{"short password", map[string]string{"name": "A", "email": "a@craftbid.test", "password": "short", "password_confirmation": "short", "role": "buyer"}, "password"},
		{"password over bcrypt limit", map[string]string{"name": "A", "email": "a@craftbid.test", "password": strings.Repeat("p", MaxPasswordLength+1), "password_confirmation": strings.Repeat("p", MaxPasswordLength+1), "role": "buyer"}, "password"},
		{"confirmation mismatch", map[string]string{"name": "A", "email": "a@craftbid.test", "password": "secret123", "password_confirmation": "secret124", "role": "buyer"}, "password"},
		{"duplicate email", map[string]string{"name": "A", "email": "taken@craftbid.test", "password": "secret123", "password_confirmation": "secret123", "role": "buyer"}, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, "POST", "/api/v1/auth/register", "", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

			var body struct {
				Message string              `json:"message"`
				Errors  map[string][]string `json:"errors"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Errors[tt.field], rec.Body.String())
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestLoginRefreshMe(t *testing.T) {
	srv := newTestServer(t, NewHandler(newTestStore(t), testConfig()))
	register(t, srv, "maker@craftbid.test", "artisan")

	rec := doJSON(t, srv, "POST", "/api/v1/auth/login", "", map[string]string{"email": "maker@craftbid.test", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, srv, "POST", "/api/v1/auth/login", "", map[string]string{"email": "MAKER@craftbid.test", "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	rec = doJSON(t, srv, "POST", "/api/v1/auth/refresh", "", map[string]string{"refresh_token": login.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv, "POST", "/api/v1/auth/refresh", "", map[string]string{"refresh_token": login.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, "GET", "/api/v1/auth/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		User    model.User            `json:"user"`
		Artisan *model.ArtisanProfile `json:"artisan"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "maker@craftbid.test", me.User.Email)
	require.NotNil(t, me.Artisan)
	assert.Equal(t, model.IDVerificationNotStarted, me.Artisan.IDVerificationStatus)

	rec = doJSON(t, srv, "GET", "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyEmail(t *testing.T) {
	store := newTestStore(t)
	srv := newTestServer(t, NewHandler(store, testConfig()))
	resp := register(t, srv, "maker@craftbid.test", "artisan")
	id := resp.User.ID
	hash := EmailVerificationHash("maker@craftbid.test")

	rec := doJSON(t, srv, "GET", "/api/v1/auth/email/verify/missing/"+hash, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"User not found"}`, rec.Body.String())

	rec = doJSON(t, srv, "GET", "/api/v1/auth/email/verify/"+id+"/deadbeef", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Invalid verification link"}`, rec.Body.String())

	rec = doJSON(t, srv, "GET", "/api/v1/auth/email/verify/"+id+"/"+hash, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Email has been verified successfully"}`, rec.Body.String())

	rec = doJSON(t, srv, "GET", "/api/v1/auth/email/verify/"+id+"/"+hash, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Email already verified"}`, rec.Body.String())

	user, err := store.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, user.HasVerifiedEmail())

	rec = doJSON(t, srv, "POST", "/api/v1/auth/email/resend", resp.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Email already verified"}`, rec.Body.String())
}

func TestResendVerificationEmail(t *testing.T) {
	srv := newTestServer(t, NewHandler(newTestStore(t), testConfig()))
	resp := register(t, srv, "maker@craftbid.test", "buyer")

	rec := doJSON(t, srv, "POST", "/api/v1/auth/email/resend", resp.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Verification link sent"}`, rec.Body.String())
}

func TestVerificationStatus(t *testing.T) {
	store := newTestStore(t)
	srv := newTestServer(t, NewHandler(store, testConfig()))

	artisan := register(t, srv, "maker@craftbid.test", "artisan")
	rec := doJSON(t, srv, "GET", "/api/v1/auth/verification-status", artisan.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"role":"artisan","emailStatus":"sent","idStatus":"not_started","hasArtisanProfile":true}`, rec.Body.String())

	buyer := register(t, srv, "buyer@craftbid.test", "buyer")
	_, err := store.MarkEmailVerified(context.Background(), buyer.User.ID, buyer.User.CreatedAt)
	require.NoError(t, err)
	rec = doJSON(t, srv, "GET", "/api/v1/auth/verification-status", buyer.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"role":"buyer","emailStatus":"completed","idStatus":null,"hasArtisanProfile":null}`, rec.Body.String())
}

func TestEnsureAdminUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, EnsureAdminUser(ctx, store, "", ""))
	require.NoError(t, EnsureAdminUser(ctx, store, "Admin@CraftBid.test", "secret123"))

	admin, err := store.GetUserByEmail(ctx, "admin@craftbid.test")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.True(t, admin.Roles.Has(model.RoleAdmin))
	assert.True(t, admin.HasVerifiedEmail())

	// 幂等
	require.NoError(t, EnsureAdminUser(ctx, store, "admin@craftbid.test", "secret123"))

	// 已存在的普通用户升级为管理员
	srv := newTestServer(t, NewHandler(store, testConfig()))
	buyer := register(t, srv, "boss@craftbid.test", "buyer")
	require.NoError(t, EnsureAdminUser(ctx, store, "boss@craftbid.test", "secret123"))
	upgraded, err := store.GetUserByID(ctx, buyer.User.ID)
	require.NoError(t, err)
	assert.True(t, upgraded.Roles.HasAny(model.RoleAdmin))
	assert.True(t, upgraded.Roles.Has(model.RoleBuyer))
}
