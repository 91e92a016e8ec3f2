package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"craftbid/internal/config"
	"craftbid/internal/shared/cache"
	"craftbid/internal/shared/model"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleUser Google 账号信息
type GoogleUser struct {
	ID      string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// GoogleProvider Google OAuth 交互
type GoogleProvider interface {
	AuthCodeURL(state string) string
	// Exchange 用授权码换取用户信息
	Exchange(ctx context.Context, code string) (*GoogleUser, error)
}

// googleOAuth 基于 golang.org/x/oauth2 的实现
type googleOAuth struct {
	cfg *oauth2.Config
}

// NewGoogleProvider 从配置创建 Google 登录，未配置时返回 nil
func NewGoogleProvider(c config.GoogleConfig) GoogleProvider {
	if !c.Enabled() {
		return nil
	}
	return &googleOAuth{cfg: &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Endpoint:     endpoints.Google,
		Scopes:       []string{"openid", "profile", "email"},
	}}
}

func (g *googleOAuth) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

func (g *googleOAuth) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	token, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.cfg.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch userinfo: status %d: %s", resp.StatusCode, body)
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if user.ID == "" || user.Email == "" {
		return nil, fmt.Errorf("userinfo is missing sub or email")
	}
	return &user, nil
}

// GoogleRedirect 跳转 Google 授权页
// GET /api/v1/auth/google/redirect?role=buyer|artisan
//
// 注册角色按 state 暂存在缓存中，回调时取回。
func (h *Handler) GoogleRedirect(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, http.StatusNotFound, "google sign-in is not configured")
		return
	}

	role := model.Role(r.URL.Query().Get("role"))
	if role != model.RoleBuyer && role != model.RoleArtisan {
		role = model.RoleBuyer
	}

	state, err := newStateToken()
	if err != nil {
		log.Printf("[auth.google.redirect.failed] step=state error=%v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.states.PutOAuthState(r.Context(), state, role, cache.OAuthStateTTL); err != nil {
		log.Printf("[auth.google.redirect.failed] step=cache error=%v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.Redirect(w, r, h.google.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback Google 授权回调
// GET /api/v1/auth/google/callback?state=...&code=...
//
// 查找顺序：google_id → email（绑定并补验证邮箱）→ 新建（邮箱视为已验证）。
// 成功后携带令牌跳回前端，失败跳到登录页。
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, http.StatusNotFound, "google sign-in is not configured")
		return
	}
	failure := h.frontendURL + "/login?error=google_failed"

	// state 过期或不存在时按 buyer 处理
	role := model.RoleBuyer
	if state := r.URL.Query().Get("state"); state != "" {
		cached, ok, err := h.states.TakeOAuthState(r.Context(), state)
		if err != nil {
			log.Printf("[auth.google.state.failed] error=%v", err)
		} else if ok && (cached == model.RoleBuyer || cached == model.RoleArtisan) {
			role = cached
		}
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		log.Printf("[auth.google.callback.failed] reason=missing_code")
		http.Redirect(w, r, failure, http.StatusFound)
		return
	}

	gu, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		log.Printf("[auth.google.callback.failed] step=exchange error=%v", err)
		http.Redirect(w, r, failure, http.StatusFound)
		return
	}

	user, err := h.findOrCreateGoogleUser(r.Context(), gu, role)
	if err != nil {
		log.Printf("[auth.google.callback.failed] step=user google_id=%s error=%v", gu.ID, err)
		http.Redirect(w, r, failure, http.StatusFound)
		return
	}

	tokens, err := IssueTokens(h.cfg, user)
	if err != nil {
		log.Printf("[auth.google.callback.failed] step=token user_id=%s error=%v", user.ID, err)
		http.Redirect(w, r, failure, http.StatusFound)
		return
	}

	target := h.frontendURL + "/dashboard"
	if user.Roles.Has(model.RoleAdmin) {
		target = h.frontendURL + "/admin"
	}
	fragment := url.Values{
		"access_token":  {tokens.AccessToken},
		"refresh_token": {tokens.RefreshToken},
	}
	log.Printf("[auth.google.callback.success] user_id=%s role=%s", user.ID, user.Roles.Primary())
	http.Redirect(w, r, target+"#"+fragment.Encode(), http.StatusFound)
}

func (h *Handler) findOrCreateGoogleUser(ctx context.Context, gu *GoogleUser, role model.Role) (*model.User, error) {
	user, err := h.store.GetUserByGoogleID(ctx, gu.ID)
	if err != nil || user != nil {
		return user, err
	}

	var avatar *string
	if gu.Picture != "" {
		avatar = &gu.Picture
	}
	now := h.now()

	email := normalizeEmail(gu.Email)
	user, err = h.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if err := h.store.LinkGoogleAccount(ctx, user.ID, gu.ID, avatar); err != nil {
			return nil, err
		}
		if _, err := h.store.MarkEmailVerified(ctx, user.ID, now); err != nil {
			return nil, err
		}
		log.Printf("[auth.google.linked] user_id=%s", user.ID)
		return h.store.GetUserByID(ctx, user.ID)
	}

	googleID := gu.ID
	user = &model.User{
		ID:              uuid.New().String(),
		Name:            gu.Name,
		Email:           email,
		GoogleID:        &googleID,
		Avatar:          avatar,
		EmailVerifiedAt: &now,
		Roles:           model.NewRoleSet(role),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if user.Name == "" {
		user.Name = email
	}
	if err := h.createUser(ctx, user); err != nil {
		return nil, err
	}
	log.Printf("[auth.google.registered] user_id=%s role=%s", user.ID, role)
	return user, nil
}

// newStateToken 16 字节随机数的十六进制
func newStateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
