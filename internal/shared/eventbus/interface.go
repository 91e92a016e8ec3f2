// Package eventbus 事件总线抽象接口
//
// 提供审核事件的发布/订阅能力，由 Redis Streams 或进程内实现。
package eventbus

import (
	"context"

	"craftbid/internal/shared/model"
)

// VerificationEventBus 审核事件总线接口
//
// 事件按档案所属用户分流，订阅方只收到订阅之后发布的事件。
// ctx 取消时订阅通道关闭。
type VerificationEventBus interface {
	PublishVerificationEvent(ctx context.Context, event *model.VerificationEvent) error
	SubscribeVerificationEvents(ctx context.Context, userID string) (<-chan *model.VerificationEvent, error)
}

// EventBus 事件总线组合接口
type EventBus interface {
	VerificationEventBus
	Close() error
}
