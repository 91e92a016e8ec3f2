package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"craftbid/internal/apiserver/auth"
	"craftbid/internal/shared/metrics"
	"craftbid/internal/shared/model"
)

type contextKey string

const ctxKeySubject contextKey = "gate_subject"

// SubjectStore 加载门禁所需的用户与档案
type SubjectStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetArtisanByUserID(ctx context.Context, userID string) (*model.ArtisanProfile, error)
}

// Gate 访问门禁
type Gate struct {
	store   SubjectStore
	metrics *metrics.Metrics
}

// New 创建门禁，metrics 可为 nil
func New(store SubjectStore, m *metrics.Metrics) *Gate {
	return &Gate{store: store, metrics: m}
}

// LoadSubject 从存储加载最新的用户与档案
//
// 未登录或用户已不存在时返回 nil Subject。
func (g *Gate) LoadSubject(ctx context.Context, authUser *auth.AuthUser) (*Subject, error) {
	if authUser == nil {
		return nil, nil
	}
	user, err := g.store.GetUserByID(ctx, authUser.ID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", authUser.ID, err)
	}
	if user == nil {
		return nil, nil
	}

	var profile *model.ArtisanProfile
	if user.Roles.Has(model.RoleArtisan) {
		profile, err = g.store.GetArtisanByUserID(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("load artisan of %s: %w", user.ID, err)
		}
	}
	return SubjectFor(user, profile), nil
}

// Middleware 只放行完成全部入驻步骤的手艺人
//
// 每次请求都重新加载用户和档案，审核结果即时生效。
// 放行时 Subject 通过 SubjectFrom 提供给后续处理器。
func (g *Gate) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, err := g.LoadSubject(r.Context(), auth.GetAuthUser(r.Context()))
		if err != nil {
			log.Printf("[gate.load.failed] path=%s error=%v", r.URL.Path, err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
			return
		}

		decision := Authorize(subject)
		g.metrics.RecordGateDecision(string(decision.Reason))
		if !decision.Allowed() {
			if subject != nil {
				log.Printf("[gate.denied] user_id=%s reason=%s path=%s", subject.UserID, decision.Reason, r.URL.Path)
			}
			WriteDecision(w, decision)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), ctxKeySubject, subject)))
	}
}

// WriteDecision 输出拒绝响应
func WriteDecision(w http.ResponseWriter, d Decision) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(d.HTTPStatus)
	json.NewEncoder(w).Encode(d.Body)
}

// SubjectFrom 获取通过门禁的 Subject
func SubjectFrom(ctx context.Context) *Subject {
	s, _ := ctx.Value(ctxKeySubject).(*Subject)
	return s
}
