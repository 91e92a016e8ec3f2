package eventbus

import (
	"context"
	"testing"
	"time"

	"craftbid/internal/shared/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEventBus_DeliversToUser(t *testing.T) {
	bus := NewMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine, err := bus.SubscribeVerificationEvents(ctx, "u1")
	require.NoError(t, err)
	other, err := bus.SubscribeVerificationEvents(ctx, "u2")
	require.NoError(t, err)

	ev := &model.VerificationEvent{ID: "e1", Event: model.VerificationEventVerified, ProfileID: "a1", UserID: "u1"}
	require.NoError(t, bus.PublishVerificationEvent(ctx, ev))

	select {
	case got := <-mine:
		assert.Equal(t, "e1", got.ID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case got := <-other:
		t.Fatalf("unexpected event for other user: %+v", got)
	default:
	}
}

func TestMemoryEventBus_UnsubscribeOnCancel(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.SubscribeVerificationEvents(ctx, "u1")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// 退订后发布不应阻塞或 panic
	require.NoError(t, bus.PublishVerificationEvent(context.Background(), &model.VerificationEvent{UserID: "u1"}))
	require.NoError(t, bus.Close())
}

func TestNoOpEventBus(t *testing.T) {
	bus := NewNoOpEventBus()
	require.NoError(t, bus.PublishVerificationEvent(context.Background(), &model.VerificationEvent{}))
	ch, err := bus.SubscribeVerificationEvents(context.Background(), "u1")
	require.NoError(t, err)
	_, ok := <-ch
	assert.False(t, ok)
}
