// Package notifications publishes workflow notifications into Redis channels
// consumed by the delivery service.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"reviewdesk/internal/models"
	"reviewdesk/internal/observability"

	"github.com/redis/go-redis/v9"
)

// ReviewersChannel carries new-submission events for the reviewer dashboard.
const ReviewersChannel = "notifications:reviewers"

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID string, payload string) (err error) {
	if n == nil || n.rdb == nil {
		return nil
	}
	ctx, span := observability.StartRedisSpan(ctx, "PUBLISH")
	defer func() { observability.EndSpan(span, err) }()
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishReviewers sends a payload to every connected reviewer.
func (n *Notifier) PublishReviewers(ctx context.Context, payload string) (err error) {
	if n == nil || n.rdb == nil {
		return nil
	}
	ctx, span := observability.StartRedisSpan(ctx, "PUBLISH")
	defer func() { observability.EndSpan(span, err) }()
	return n.rdb.Publish(ctx, ReviewersChannel, payload).Err()
}

// Send publishes intent as JSON on the recipient's channel.
func (n *Notifier) Send(ctx context.Context, intent models.NotificationIntent) error {
	b, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return n.PublishUser(ctx, intent.RecipientID, string(b))
}

// Broadcast publishes intent as JSON to all reviewers.
func (n *Notifier) Broadcast(ctx context.Context, intent models.NotificationIntent) error {
	b, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return n.PublishReviewers(ctx, string(b))
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID string) string {
	return "notifications:user:" + userID
}
