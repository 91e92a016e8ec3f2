package auth

import (
	"context"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"craftbid/internal/shared/cache"
	"craftbid/internal/shared/model"
	"craftbid/internal/shared/storage"
)

// Store 认证处理器需要的存储接口
type Store interface {
	storage.UserStore
	GetArtisanByUserID(ctx context.Context, userID string) (*model.ArtisanProfile, error)
}

// Handler 认证 HTTP 处理器
type Handler struct {
	store  Store
	cfg    Config
	google GoogleProvider // nil 表示未启用 Google 登录
	states cache.OAuthStateCache
	// frontendURL Google 登录完成后的回跳地址
	frontendURL string
	now         func() time.Time
}

// NewHandler 创建认证处理器
func NewHandler(store Store, cfg Config) *Handler {
	return &Handler{
		store: store,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithGoogle 启用 Google 登录
func (h *Handler) WithGoogle(provider GoogleProvider, states cache.OAuthStateCache, frontendURL string) *Handler {
	h.google = provider
	h.states = states
	h.frontendURL = strings.TrimRight(frontendURL, "/")
	return h
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/register", h.Register)
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Refresh)
	mux.HandleFunc("GET /api/v1/auth/me", h.Me)
	mux.HandleFunc("GET /api/v1/auth/email/verify/{id}/{hash}", h.VerifyEmail)
	mux.HandleFunc("POST /api/v1/auth/email/resend", h.ResendVerificationEmail)
	mux.HandleFunc("GET /api/v1/auth/verification-status", h.VerificationStatus)
	mux.HandleFunc("GET /api/v1/auth/google/redirect", h.GoogleRedirect)
	mux.HandleFunc("GET /api/v1/auth/google/callback", h.GoogleCallback)
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type registerRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	Role                 string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type authResponse struct {
	Message string      `json:"message,omitempty"`
	User    *model.User `json:"user"`
	TokenPair
}

type verificationStatusResponse struct {
	Role              model.Role                  `json:"role"`
	EmailStatus       string                      `json:"emailStatus"`
	IDStatus          *model.IDVerificationStatus `json:"idStatus"`
	HasArtisanProfile *bool                       `json:"hasArtisanProfile"`
}

// validationErrors 字段 → 错误列表，响应 422
type validationErrors map[string][]string

func (v validationErrors) add(field, msg string) {
	v[field] = append(v[field], msg)
}

func (v validationErrors) write(w http.ResponseWriter, order ...string) {
	message := "The given data was invalid."
	for _, f := range order {
		if msgs := v[f]; len(msgs) > 0 {
			message = msgs[0]
			break
		}
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"message": message,
		"errors":  v,
	})
}

// ============================================================================
// Handlers
// ============================================================================

// Register 用户注册
//
// role 为 artisan 时在同一事务中创建手艺人档案（pending / not_started）。
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)

	errs := validationErrors{}
	switch {
	case req.Name == "":
		errs.add("name", "The name field is required.")
	case len(req.Name) > 255:
		errs.add("name", "The name may not be greater than 255 characters.")
	}
	switch {
	case req.Email == "":
		errs.add("email", "The email field is required.")
	case !isValidEmail(req.Email) || len(req.Email) > 255:
		errs.add("email", "The email must be a valid email address.")
	}
	role := model.Role(req.Role)
	if role != model.RoleBuyer && role != model.RoleArtisan {
		errs.add("role", "The selected role is invalid.")
	}
	switch {
	case len(req.Password) < 8:
		errs.add("password", "The password must be at least 8 characters.")
	case len(req.Password) > MaxPasswordLength:
		errs.add("password", fmt.Sprintf("The password may not be greater than %d bytes.", MaxPasswordLength))
	case req.Password != req.PasswordConfirmation:
		errs.add("password", "The password confirmation does not match.")
	}
	if len(errs) > 0 {
		errs.write(w, "name", "email", "role", "password")
		return
	}

	existing, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		log.Printf("[auth.register.failed] step=lookup email=%s error=%v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		errs.add("email", "The email has already been taken.")
		errs.write(w, "email")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		log.Printf("[auth.register.failed] step=hash error=%v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := h.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Roles:        model.NewRoleSet(role),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.createUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			errs.add("email", "The email has already been taken.")
			errs.write(w, "email")
			return
		}
		log.Printf("[auth.register.failed] step=create email=%s error=%v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "Registration failed.")
		return
	}

	h.sendVerificationEmail(r.Context(), user)

	tokens, err := IssueTokens(h.cfg, user)
	if err != nil {
		log.Printf("[auth.register.failed] step=token user_id=%s error=%v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[auth.register.success] user_id=%s role=%s", user.ID, role)
	writeJSON(w, http.StatusCreated, authResponse{
		Message:   "Registration successful. Please check your email for a verification link.",
		User:      user,
		TokenPair: *tokens,
	})
}

// createUser 创建用户；手艺人同时建档
func (h *Handler) createUser(ctx context.Context, user *model.User) error {
	if !user.Roles.Has(model.RoleArtisan) {
		return h.store.CreateUser(ctx, user)
	}
	profile := model.NewArtisanProfile(uuid.New().String(), user.ID, user.CreatedAt)
	return h.store.CreateArtisanUser(ctx, user, profile)
}

// Login 用户登录
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = normalizeEmail(req.Email)

	errs := validationErrors{}
	if req.Email == "" {
		errs.add("email", "The email field is required.")
	}
	if req.Password == "" {
		errs.add("password", "The password field is required.")
	}
	if len(errs) > 0 {
		errs.write(w, "email", "password")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		log.Printf("[auth.login.failed] step=lookup error=%v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || !CheckPassword(req.Password, user.PasswordHash) {
		errs.add("email", "These credentials do not match our records.")
		errs.write(w, "email")
		return
	}

	tokens, err := IssueTokens(h.cfg, user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[auth.login.success] user_id=%s", user.ID)
	writeJSON(w, http.StatusOK, authResponse{
		Message:   "Login successful",
		User:      user,
		TokenPair: *tokens,
	})
}

// Refresh 刷新访问令牌
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	claims, err := ParseToken(h.cfg, req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if claims.Type != tokenTypeRefresh {
		writeError(w, http.StatusUnauthorized, "invalid token type")
		return
	}

	// 查询用户确保仍然存在，同时带上最新角色
	user, err := h.store.GetUserByID(r.Context(), claims.Subject)
	if err != nil || user == nil {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	accessToken, err := GenerateAccessToken(h.cfg, user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": accessToken,
	})
}

// Me 获取当前用户信息（含手艺人档案）
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var profile *model.ArtisanProfile
	if user.Roles.Has(model.RoleArtisan) {
		p, err := h.store.GetArtisanByUserID(r.Context(), user.ID)
		if err != nil {
			log.Printf("[auth.me.failed] user_id=%s error=%v", user.ID, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		profile = p
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":    user,
		"artisan": profile,
	})
}

// VerifyEmail 邮箱验证链接
// GET /api/v1/auth/email/verify/{id}/{hash}，hash = sha1(email)
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUserByID(r.Context(), r.PathValue("id"))
	if err != nil {
		log.Printf("[auth.email.verify.failed] user_id=%s error=%v", r.PathValue("id"), err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
		return
	}

	expected := EmailVerificationHash(user.Email)
	if subtle.ConstantTimeCompare([]byte(r.PathValue("hash")), []byte(expected)) != 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid verification link"})
		return
	}

	if user.HasVerifiedEmail() {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Email already verified"})
		return
	}

	changed, err := h.store.MarkEmailVerified(r.Context(), user.ID, h.now())
	if err != nil {
		log.Printf("[auth.email.verify.failed] user_id=%s error=%v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if changed {
		log.Printf("[auth.email.verified] user_id=%s", user.ID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email has been verified successfully"})
}

// ResendVerificationEmail 重新发送验证邮件
func (h *Handler) ResendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if user.HasVerifiedEmail() {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Email already verified"})
		return
	}

	h.sendVerificationEmail(r.Context(), user)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Verification link sent"})
}

// VerificationStatus 注册引导进度
//
// idStatus / hasArtisanProfile 只对手艺人有值，其余角色为 null。
func (h *Handler) VerificationStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	resp := verificationStatusResponse{
		Role:        user.Roles.Primary(),
		EmailStatus: "not_started",
	}
	switch {
	case user.HasVerifiedEmail():
		resp.EmailStatus = "completed"
	case user.VerificationEmailSentAt != nil:
		resp.EmailStatus = "sent"
	}

	if resp.Role == model.RoleArtisan {
		profile, err := h.store.GetArtisanByUserID(r.Context(), user.ID)
		if err != nil {
			log.Printf("[auth.verification_status.failed] user_id=%s error=%v", user.ID, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		has := profile != nil
		resp.HasArtisanProfile = &has
		if profile != nil {
			status := profile.IDVerificationStatus
			resp.IDStatus = &status
		}
	}

	log.Printf("[auth.verification_status] user_id=%s role=%s email_status=%s", user.ID, resp.Role, resp.EmailStatus)
	writeJSON(w, http.StatusOK, resp)
}

// currentUser 从存储加载当前认证用户，失败时已写响应
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	authUser := GetAuthUser(r.Context())
	if authUser == nil {
		writeUnauthenticated(w)
		return nil, false
	}
	user, err := h.store.GetUserByID(r.Context(), authUser.ID)
	if err != nil {
		log.Printf("[auth.user.load.failed] user_id=%s error=%v", authUser.ID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if user == nil {
		writeUnauthenticated(w)
		return nil, false
	}
	return user, true
}

// sendVerificationEmail 记录发送时间；邮件投递不在本服务内，只输出验证链接
func (h *Handler) sendVerificationEmail(ctx context.Context, user *model.User) {
	now := h.now()
	if err := h.store.MarkVerificationEmailSent(ctx, user.ID, now); err != nil {
		log.Printf("[auth.email.send.failed] user_id=%s error=%v", user.ID, err)
		return
	}
	user.VerificationEmailSentAt = &now
	log.Printf("[auth.email.send] user_id=%s link=/api/v1/auth/email/verify/%s/%s",
		user.ID, user.ID, EmailVerificationHash(user.Email))
}

// EmailVerificationHash 邮箱验证链接中的 hash
func EmailVerificationHash(email string) string {
	sum := sha1.Sum([]byte(email))
	return hex.EncodeToString(sum[:])
}

// ============================================================================
// Admin Bootstrap
// ============================================================================

// EnsureAdminUser 确保管理员用户存在（启动时调用）
// 已存在但不是管理员时补充 admin 角色
func EnsureAdminUser(ctx context.Context, store storage.UserStore, adminEmail, adminPassword string) error {
	if adminEmail == "" || adminPassword == "" {
		return nil
	}
	adminEmail = normalizeEmail(adminEmail)

	existing, err := store.GetUserByEmail(ctx, adminEmail)
	if err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if existing != nil {
		if !existing.Roles.Has(model.RoleAdmin) {
			log.Printf("[auth.admin.upgrade] email=%s user_id=%s", adminEmail, existing.ID)
			return store.AssignRole(ctx, existing.ID, model.RoleAdmin)
		}
		log.Printf("[auth.admin.exists] email=%s user_id=%s", adminEmail, existing.ID)
		return nil
	}

	hash, err := HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:              uuid.New().String(),
		Name:            "Admin",
		Email:           adminEmail,
		PasswordHash:    hash,
		EmailVerifiedAt: &now,
		Roles:           model.NewRoleSet(model.RoleAdmin),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Printf("[auth.admin.created] email=%s user_id=%s", adminEmail, user.ID)
	return nil
}

// ============================================================================
// 工具函数
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
