package eventbus

import (
	"context"
	"log"
	"sync"

	"craftbid/internal/shared/model"
)

// ============================================================================
// MemoryEventBus - 进程内事件总线（未配置 Redis 时使用，仅适用于单实例部署）
// ============================================================================

// MemoryEventBus 按用户分发事件的进程内总线
type MemoryEventBus struct {
	mu     sync.RWMutex
	subs   map[string]map[chan *model.VerificationEvent]struct{}
	closed bool
}

// NewMemoryEventBus 创建进程内事件总线
func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{
		subs: make(map[string]map[chan *model.VerificationEvent]struct{}),
	}
}

// PublishVerificationEvent 投递给该用户的所有订阅者；订阅者缓冲区满时丢弃
func (b *MemoryEventBus) PublishVerificationEvent(ctx context.Context, event *model.VerificationEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[event.UserID] {
		select {
		case ch <- event:
		default:
			log.Printf("[eventbus.memory.drop] user_id=%s event=%s", event.UserID, event.Event)
		}
	}
	return nil
}

// SubscribeVerificationEvents 订阅用户事件，ctx 结束时自动退订并关闭通道
func (b *MemoryEventBus) SubscribeVerificationEvents(ctx context.Context, userID string) (<-chan *model.VerificationEvent, error) {
	ch := make(chan *model.VerificationEvent, SubscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan *model.VerificationEvent]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(userID, ch)
	}()
	return ch, nil
}

func (b *MemoryEventBus) unsubscribe(userID string, ch chan *model.VerificationEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[userID][ch]; !ok {
		return
	}
	delete(b.subs[userID], ch)
	if len(b.subs[userID]) == 0 {
		delete(b.subs, userID)
	}
	close(ch)
}

// Close 关闭所有订阅
func (b *MemoryEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for userID, chans := range b.subs {
		for ch := range chans {
			close(ch)
		}
		delete(b.subs, userID)
	}
	b.closed = true
	return nil
}

var _ EventBus = (*MemoryEventBus)(nil)
