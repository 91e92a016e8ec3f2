package artisan

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"craftbid/internal/apiserver/auth"
	"craftbid/internal/shared/model"
	"craftbid/internal/shared/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// documentURLExpiry 证件照下载地址有效期
	documentURLExpiry = 15 * time.Minute
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

// List 档案列表，支持 verification_status / status / limit / offset
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.ArtisanFilter{Limit: defaultListLimit}

	if v := q.Get("verification_status"); v != "" {
		filter.IDVerificationStatus = model.IDVerificationStatus(v)
		if !filter.IDVerificationStatus.Valid() {
			writeError(w, http.StatusUnprocessableEntity, "invalid verification_status")
			return
		}
	}
	if v := q.Get("status"); v != "" {
		filter.Status = model.ArtisanStatus(v)
		if !filter.Status.Valid() {
			writeError(w, http.StatusUnprocessableEntity, "invalid status")
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusUnprocessableEntity, "invalid limit")
			return
		}
		filter.Limit = min(n, maxListLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusUnprocessableEntity, "invalid offset")
			return
		}
		filter.Offset = n
	}

	profiles, err := h.store.ListArtisans(r.Context(), filter)
	if err != nil {
		log.Printf("[artisan.list.failed] error=%v", err)
		writeError(w, http.StatusInternalServerError, "failed to list artisans")
		return
	}
	if profiles == nil {
		profiles = []*model.ArtisanProfile{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":   profiles,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// Get 获取单个档案
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.loadProfile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, artisanResponse{Artisan: profile})
}

// Confirm 确认身份审核
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	admin := auth.GetUser(r.Context())

	profile, err := h.service.Confirm(r.Context(), id, admin.ID)
	if err != nil {
		writeServiceError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, artisanResponse{Message: "Artisan verified.", Artisan: profile})
}

// Reject 拒绝身份审核，必须填写原因
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	admin := auth.GetUser(r.Context())

	req, ok := decodeReason(w, r)
	if !ok {
		return
	}
	profile, err := h.service.Reject(r.Context(), id, admin.ID, req.Reason)
	if err != nil {
		writeServiceError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, artisanResponse{Message: "Artisan verification rejected.", Artisan: profile})
}

// Suspend 停用已启用的账户
func (h *Handler) Suspend(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	admin := auth.GetUser(r.Context())

	req, ok := decodeReason(w, r)
	if !ok {
		return
	}
	profile, err := h.service.Suspend(r.Context(), id, admin.ID, req.Reason)
	if err != nil {
		writeServiceError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, artisanResponse{Message: "Artisan suspended.", Artisan: profile})
}

// Reactivate 恢复被停用的账户
func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	admin := auth.GetUser(r.Context())

	profile, err := h.service.Reactivate(r.Context(), id, admin.ID)
	if err != nil {
		writeServiceError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, artisanResponse{Message: "Artisan reactivated.", Artisan: profile})
}

// Delete 软删除档案
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	admin := auth.GetUser(r.Context())

	if err := h.store.SoftDeleteArtisan(r.Context(), id, h.now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "artisan profile not found")
			return
		}
		log.Printf("[artisan.delete.failed] profile_id=%s error=%v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to delete artisan")
		return
	}
	log.Printf("[artisan.deleted] profile_id=%s admin_id=%s", id, admin.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Artisan deleted."})
}

// Audit 审核审计记录，按时间升序
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.loadProfile(w, r)
	if !ok {
		return
	}
	events, err := h.store.ListVerificationEvents(r.Context(), profile.ID)
	if err != nil {
		log.Printf("[artisan.audit.list.failed] profile_id=%s error=%v", profile.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to list audit events")
		return
	}
	if events == nil {
		events = []*model.VerificationEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": events})
}

// Documents 生成证件照的限时下载地址
func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	if h.documents == nil {
		writeError(w, http.StatusNotFound, "document storage is not enabled")
		return
	}
	profile, ok := h.loadProfile(w, r)
	if !ok {
		return
	}
	if profile.IDDocumentFrontPath == nil && profile.IDDocumentBackPath == nil {
		writeError(w, http.StatusNotFound, "no documents uploaded")
		return
	}

	resp := map[string]interface{}{"expires_in": int(documentURLExpiry.Seconds())}
	for name, key := range map[string]*string{"front": profile.IDDocumentFrontPath, "back": profile.IDDocumentBackPath} {
		if key == nil {
			continue
		}
		url, err := h.documents.PresignedURL(r.Context(), *key, documentURLExpiry)
		if err != nil {
			log.Printf("[artisan.document.presign.failed] profile_id=%s key=%s error=%v", profile.ID, *key, err)
			writeError(w, http.StatusBadGateway, "failed to generate document url")
			return
		}
		resp[name] = url
	}
	writeJSON(w, http.StatusOK, resp)
}

// RunSweeper 立即执行一次自动审核
func (h *Handler) RunSweeper(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		writeError(w, http.StatusServiceUnavailable, "sweeper is not configured")
		return
	}
	result, err := h.sweeper.RunOnce(r.Context(), h.now())
	if err != nil {
		log.Printf("[artisan.sweeper.run.failed] error=%v", err)
		writeError(w, http.StatusInternalServerError, "sweeper run failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) loadProfile(w http.ResponseWriter, r *http.Request) (*model.ArtisanProfile, bool) {
	id := r.PathValue("id")
	profile, err := h.store.GetArtisan(r.Context(), id)
	if err != nil {
		log.Printf("[artisan.get.failed] profile_id=%s error=%v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to get artisan")
		return nil, false
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "artisan profile not found")
		return nil, false
	}
	return profile, true
}

// decodeReason 解析可选的 {reason}，空 body 视为未填写
func decodeReason(w http.ResponseWriter, r *http.Request) (reasonRequest, bool) {
	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	return req, true
}
