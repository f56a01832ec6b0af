// Package notifications publishes recorded moderation events to Redis so
// dashboards can follow moderation live.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"chatwarden/internal/models"
	"chatwarden/internal/observability"

	"github.com/redis/go-redis/v9"
)

// BroadcastChannel receives every event; ChatChannel only one chat's.
const BroadcastChannel = "moderation:events"

// ChatChannel is the per-chat event channel.
func ChatChannel(chatID int64) string {
	return fmt.Sprintf("moderation:events:chat:%d", chatID)
}

// Notifier provides helpers to publish moderation events into Redis channels.
// A Notifier without a client publishes nothing.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishEvent sends ev to the chat channel and the broadcast channel.
func (n *Notifier) PublishEvent(ctx context.Context, ev models.ModerationEvent) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := n.rdb.Pipeline()
	pipe.Publish(ctx, ChatChannel(ev.ChatID), payload)
	pipe.Publish(ctx, BroadcastChannel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe delivers events published for chatID, or for every chat when
// chatID is nil, until ctx is done. onEvent runs on a single goroutine;
// a panic in it is logged and the subscription continues.
func (n *Notifier) Subscribe(ctx context.Context, chatID *int64, onEvent func(models.ModerationEvent)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	channel := BroadcastChannel
	if chatID != nil {
		channel = ChatChannel(*chatID)
	}

	sub := n.rdb.Subscribe(ctx, channel)
	// Wait for the confirmation so no publish after Subscribe returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev models.ModerationEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					observability.Logger.WarnContext(ctx, "Dropping malformed event payload",
						slog.String("channel", msg.Channel), slog.String("error", err.Error()))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.Logger.ErrorContext(ctx, "PANIC in event subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onEvent(ev)
				}()
			}
		}
	}()

	return nil
}
