package verification

import (
	"context"
	"fmt"
	"log"

	"craftbid/internal/shared/eventbus"
	"craftbid/internal/shared/metrics"
	"craftbid/internal/shared/model"
	"craftbid/internal/shared/storage"
	"craftbid/pkg/logging"
)

// AuditSink 审核事件接收方
type AuditSink interface {
	Record(ctx context.Context, event *model.VerificationEvent) error
}

// RecordingSink 默认审计实现
//
// 依次：写入 verification_audit 表、输出结构化日志、推送到事件总线。
// 只有落表失败会返回错误；推送失败仅记录日志。
type RecordingSink struct {
	store   storage.VerificationAuditStore
	bus     eventbus.VerificationEventBus
	logger  *logging.Logger
	metrics *metrics.Metrics
}

var _ AuditSink = (*RecordingSink)(nil)

// NewRecordingSink 创建审计接收方，bus/metrics 可为 nil
func NewRecordingSink(store storage.VerificationAuditStore, bus eventbus.VerificationEventBus, logger *logging.Logger, m *metrics.Metrics) *RecordingSink {
	if logger == nil {
		logger = logging.Default("verification")
	}
	return &RecordingSink{store: store, bus: bus, logger: logger, metrics: m}
}

// Record 记录一条审核事件
func (s *RecordingSink) Record(ctx context.Context, event *model.VerificationEvent) error {
	if err := s.store.RecordVerificationEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to record %s event for %s: %w", event.Event, event.ProfileID, err)
	}

	var actor string
	if event.ActorID != nil {
		actor = *event.ActorID
	}
	extra := []any{"from", string(event.FromStatus), "to", string(event.ToStatus)}
	if event.Reason != nil {
		extra = append(extra, "reason", *event.Reason)
	}
	s.logger.WithContext(ctx).VerificationLog(string(event.Event), event.ProfileID, event.UserID, actor, extra...)
	s.metrics.RecordTransition(string(event.Event))

	if s.bus != nil {
		if err := s.bus.PublishVerificationEvent(ctx, event); err != nil {
			log.Printf("[verification.event.publish.failed] profile_id=%s event=%s error=%v", event.ProfileID, event.Event, err)
		}
	}
	return nil
}
