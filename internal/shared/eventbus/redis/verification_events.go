package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"craftbid/internal/shared/eventbus"
	"craftbid/internal/shared/model"
)

// PublishVerificationEvent 写入用户审核事件流
func (s *Store) PublishVerificationEvent(ctx context.Context, event *model.VerificationEvent) error {
	key := eventbus.KeyVerificationEvents + event.UserID

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal verification event: %w", err)
	}

	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: eventbus.MaxStreamLength,
		Approx: true,
		Values: map[string]interface{}{
			"event":   string(event.Event),
			"payload": string(payload),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish verification event: %w", err)
	}

	log.Printf("[Redis/EventBus] Published verification event: user=%s seq=%s event=%s", event.UserID, id, event.Event)
	return nil
}

// SubscribeVerificationEvents 订阅用户审核事件流（从订阅时刻开始）
func (s *Store) SubscribeVerificationEvents(ctx context.Context, userID string) (<-chan *model.VerificationEvent, error) {
	key := eventbus.KeyVerificationEvents + userID
	ch := make(chan *model.VerificationEvent, eventbus.SubscriberBuffer)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			streams, err := s.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, lastID},
				Count:   10,
				Block:   5 * time.Second,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() == nil {
					log.Printf("[Redis/EventBus] Verification subscription error: %v", err)
				}
				return
			}

			for _, stream := range streams {
				for _, msg := range stream.Messages {
					lastID = msg.ID
					raw, ok := msg.Values["payload"].(string)
					if !ok {
						continue
					}
					var event model.VerificationEvent
					if err := json.Unmarshal([]byte(raw), &event); err != nil {
						log.Printf("[Redis/EventBus] Bad verification payload id=%s: %v", msg.ID, err)
						continue
					}
					select {
					case ch <- &event:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

var _ eventbus.EventBus = (*Store)(nil)
