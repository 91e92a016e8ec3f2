// Package artisan 手艺人领域 - HTTP 处理
//
// 手艺人自助接口（档案、提交审核、工作台）与管理员审核接口。
package artisan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"craftbid/internal/apiserver/auth"
	"craftbid/internal/apiserver/gate"
	"craftbid/internal/apiserver/sweeper"
	"craftbid/internal/apiserver/verification"
	"craftbid/internal/shared/model"
	"craftbid/internal/shared/objstore"
	"craftbid/internal/shared/storage"
)

// Store 手艺人处理器需要的存储接口
type Store interface {
	auth.UserLoader
	storage.ArtisanStore
	storage.VerificationAuditStore
}

// SweepRunner 手动触发一次自动审核
type SweepRunner interface {
	RunOnce(ctx context.Context, now time.Time) (sweeper.Result, error)
}

// Handler 手艺人领域 HTTP 处理器
type Handler struct {
	store   Store
	service *verification.Service
	gate    *gate.Gate
	// documents 为 nil 表示未启用对象存储
	documents objstore.DocumentStore
	sweeper   SweepRunner
	now       func() time.Time
}

// NewHandler 创建手艺人处理器
func NewHandler(store Store, service *verification.Service, g *gate.Gate) *Handler {
	return &Handler{
		store:   store,
		service: service,
		gate:    g,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithDocuments 启用证件照上传与查看
func (h *Handler) WithDocuments(documents objstore.DocumentStore) *Handler {
	h.documents = documents
	return h
}

// WithSweeper 启用手动触发自动审核
func (h *Handler) WithSweeper(s SweepRunner) *Handler {
	h.sweeper = s
	return h
}

// RegisterRoutes 注册手艺人与管理员路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	artisanOnly := auth.RequireRole(h.store, model.RoleArtisan)
	reviewers := auth.RequireRole(h.store, model.RoleAdmin, model.RoleVerifier)
	adminOnly := auth.RequireRole(h.store, model.RoleAdmin)

	mux.HandleFunc("GET /api/v1/artisan/profile", artisanOnly(h.GetProfile))
	mux.HandleFunc("PUT /api/v1/artisan/profile", artisanOnly(h.SaveProfile))
	mux.HandleFunc("POST /api/v1/artisan/verification", artisanOnly(h.SubmitVerification))
	mux.HandleFunc("GET /api/v1/artisan/dashboard", h.gate.Middleware(h.Dashboard))

	mux.HandleFunc("GET /api/v1/admin/artisans", reviewers(h.List))
	mux.HandleFunc("GET /api/v1/admin/artisans/{id}", reviewers(h.Get))
	mux.HandleFunc("POST /api/v1/admin/artisans/{id}/confirm", reviewers(h.Confirm))
	mux.HandleFunc("POST /api/v1/admin/artisans/{id}/reject", reviewers(h.Reject))
	mux.HandleFunc("GET /api/v1/admin/artisans/{id}/audit", reviewers(h.Audit))
	mux.HandleFunc("GET /api/v1/admin/artisans/{id}/documents", reviewers(h.Documents))
	mux.HandleFunc("POST /api/v1/admin/artisans/{id}/suspend", adminOnly(h.Suspend))
	mux.HandleFunc("POST /api/v1/admin/artisans/{id}/reactivate", adminOnly(h.Reactivate))
	mux.HandleFunc("DELETE /api/v1/admin/artisans/{id}", adminOnly(h.Delete))
	mux.HandleFunc("POST /api/v1/admin/sweeper/run", adminOnly(h.RunSweeper))
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type profileRequest struct {
	BusinessName string `json:"business_name"`
	Speciality   string `json:"speciality"`
	Location     string `json:"location"`
	Bio          string `json:"bio"`
}

type artisanResponse struct {
	Message string                `json:"message,omitempty"`
	Artisan *model.ArtisanProfile `json:"artisan"`
}

// ============================================================================
// 手艺人接口
// ============================================================================

// GetProfile 获取自己的档案
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	profile, err := h.store.GetArtisanByUserID(r.Context(), user.ID)
	if err != nil {
		log.Printf("[artisan.profile.get.failed] user_id=%s error=%v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to get artisan profile")
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "artisan profile not found")
		return
	}
	writeJSON(w, http.StatusOK, artisanResponse{Artisan: profile})
}

// SaveProfile 创建或更新档案的描述性字段
//
// 新建的档案处于 pending / not_started，审核状态只能通过提交审核改变。
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.BusinessName = strings.TrimSpace(req.BusinessName)
	if req.BusinessName == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"message": "The business name field is required.",
			"errors":  map[string][]string{"business_name": {"The business name field is required."}},
		})
		return
	}

	ctx := r.Context()
	profile, err := h.store.GetArtisanByUserID(ctx, user.ID)
	if err != nil {
		log.Printf("[artisan.profile.get.failed] user_id=%s error=%v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to get artisan profile")
		return
	}

	now := h.now()
	status := http.StatusOK
	if profile == nil {
		profile = model.NewArtisanProfile(uuid.New().String(), user.ID, now)
		applyProfileRequest(profile, req)
		if err := h.store.CreateArtisan(ctx, profile); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				writeError(w, http.StatusConflict, "artisan profile already exists")
				return
			}
			log.Printf("[artisan.profile.create.failed] user_id=%s error=%v", user.ID, err)
			writeError(w, http.StatusInternalServerError, "failed to create artisan profile")
			return
		}
		log.Printf("[artisan.profile.created] user_id=%s profile_id=%s", user.ID, profile.ID)
		status = http.StatusCreated
	} else {
		applyProfileRequest(profile, req)
		profile.UpdatedAt = now
		if err := h.store.UpdateArtisanDetails(ctx, profile); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "artisan profile not found")
				return
			}
			log.Printf("[artisan.profile.update.failed] profile_id=%s error=%v", profile.ID, err)
			writeError(w, http.StatusInternalServerError, "failed to update artisan profile")
			return
		}
	}

	writeJSON(w, status, artisanResponse{Message: "Profile saved.", Artisan: profile})
}

func applyProfileRequest(p *model.ArtisanProfile, req profileRequest) {
	p.BusinessName = req.BusinessName
	p.Speciality = strings.TrimSpace(req.Speciality)
	p.Location = strings.TrimSpace(req.Location)
	p.Bio = strings.TrimSpace(req.Bio)
}

// SubmitVerification 提交身份审核
//
// 支持 multipart 上传 id_front / id_back，也可以不带文件直接提交。
// 上传前先在状态机上试算，避免为非法状态的提交保存文件。
func (h *Handler) SubmitVerification(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	ctx := r.Context()

	profile, err := h.store.GetArtisanByUserID(ctx, user.ID)
	if err != nil {
		log.Printf("[artisan.profile.get.failed] user_id=%s error=%v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to get artisan profile")
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "artisan profile not found")
		return
	}
	if _, err := h.service.Machine().Submit(profile, h.now()); err != nil {
		writeServiceError(w, err, profile.ID)
		return
	}

	var docs verification.Documents
	var uploaded []string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, 2*objstore.MaxDocumentSize+(1<<20))
		if err := r.ParseMultipartForm(objstore.MaxDocumentSize); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		for _, side := range []objstore.DocumentSide{objstore.SideFront, objstore.SideBack} {
			key, status, err := h.uploadDocument(ctx, r, profile.ID, side)
			if err != nil {
				h.discard(uploaded)
				writeError(w, status, err.Error())
				return
			}
			if key == "" {
				continue
			}
			uploaded = append(uploaded, key)
			k := key
			if side == objstore.SideFront {
				docs.Front = &k
			} else {
				docs.Back = &k
			}
		}
	}

	updated, err := h.service.Submit(ctx, profile.ID, docs)
	if err != nil {
		h.discard(uploaded)
		writeServiceError(w, err, profile.ID)
		return
	}
	writeJSON(w, http.StatusOK, artisanResponse{
		Message: "Verification submitted. An administrator will review your documents.",
		Artisan: updated,
	})
}

// uploadDocument 上传一面证件照，表单中没有该字段时返回空 key
func (h *Handler) uploadDocument(ctx context.Context, r *http.Request, profileID string, side objstore.DocumentSide) (string, int, error) {
	field := "id_" + string(side)
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", 0, nil
	}
	if err != nil {
		return "", http.StatusBadRequest, fmt.Errorf("invalid %s upload", field)
	}
	defer file.Close()

	if h.documents == nil {
		return "", http.StatusBadRequest, fmt.Errorf("document upload is not enabled")
	}
	if header.Size > objstore.MaxDocumentSize {
		return "", http.StatusUnprocessableEntity, fmt.Errorf("%s must not be larger than 5MB", field)
	}
	contentType := header.Header.Get("Content-Type")
	ext, ok := objstore.DocumentExtension(contentType)
	if !ok {
		return "", http.StatusUnprocessableEntity, fmt.Errorf("%s must be a jpg, png or pdf file", field)
	}

	key := objstore.DocumentKey(profileID, side, uuid.New().String(), ext)
	if err := h.documents.Upload(ctx, key, file, header.Size, contentType); err != nil {
		log.Printf("[artisan.document.upload.failed] profile_id=%s side=%s error=%v", profileID, side, err)
		return "", http.StatusBadGateway, fmt.Errorf("failed to store %s", field)
	}
	log.Printf("[artisan.document.uploaded] profile_id=%s side=%s key=%s", profileID, side, key)
	return key, 0, nil
}

// discard 提交失败时删除本次已上传的文件
func (h *Handler) discard(keys []string) {
	if h.documents == nil {
		return
	}
	for _, key := range keys {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := h.documents.Delete(ctx, key); err != nil {
			log.Printf("[artisan.document.discard.failed] key=%s error=%v", key, err)
		}
		cancel()
	}
}

// Dashboard 手艺人工作台，只有通过门禁的手艺人可以访问
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	subject := gate.SubjectFrom(r.Context())
	if subject == nil || subject.Artisan == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Artisan not found."})
		return
	}
	p := subject.Artisan
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"artisan": map[string]interface{}{
			"id":                     p.ID,
			"business_name":          p.BusinessName,
			"speciality":             p.Speciality,
			"location":               p.Location,
			"status":                 p.Status,
			"id_verification_status": p.IDVerificationStatus,
			"id_verified_at":         p.IDVerifiedAt,
		},
	})
}

// ============================================================================
// 工具函数
// ============================================================================

// writeServiceError 把审核服务的错误映射为 HTTP 响应
func writeServiceError(w http.ResponseWriter, err error, profileID string) {
	var stateErr *verification.InvalidStateError
	switch {
	case errors.Is(err, verification.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "artisan profile not found")
	case errors.As(err, &stateErr):
		body := map[string]interface{}{
			"error":                  stateErr.Error(),
			"id_verification_status": stateErr.Current,
		}
		if stateErr.Status != "" {
			body["status"] = stateErr.Status
		}
		writeJSON(w, http.StatusConflict, body)
	case errors.Is(err, verification.ErrPersistenceConflict):
		writeError(w, http.StatusConflict, "artisan profile was modified concurrently, please retry")
	case errors.Is(err, verification.ErrReasonRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[artisan.verification.failed] profile_id=%s error=%v", profileID, err)
		writeError(w, http.StatusInternalServerError, "verification update failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
