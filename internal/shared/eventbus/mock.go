// Package eventbus 事件总线 mock 实现
package eventbus

import (
	"context"

	"craftbid/internal/shared/model"
)

// ============================================================================
// NoOpEventBus - 空操作的 EventBus 实现（用于测试和 auto-approve 单次任务）
// ============================================================================

// NoOpEventBus 是一个不做任何操作的 EventBus 实现
type NoOpEventBus struct{}

// NewNoOpEventBus 创建 NoOpEventBus 实例
func NewNoOpEventBus() *NoOpEventBus {
	return &NoOpEventBus{}
}

// Close 关闭事件总线
func (e *NoOpEventBus) Close() error {
	return nil
}

func (e *NoOpEventBus) PublishVerificationEvent(ctx context.Context, event *model.VerificationEvent) error {
	return nil
}

func (e *NoOpEventBus) SubscribeVerificationEvents(ctx context.Context, userID string) (<-chan *model.VerificationEvent, error) {
	ch := make(chan *model.VerificationEvent)
	close(ch)
	return ch, nil
}

var _ EventBus = (*NoOpEventBus)(nil)
