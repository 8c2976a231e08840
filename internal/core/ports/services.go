package ports

import (
	"context"

	"github.com/digsentry/digsentry/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishSample(ctx context.Context, event *domain.SampleEvent) error
	PublishPose(ctx context.Context, event *domain.PoseEvent) error
	PublishTick(ctx context.Context, event *domain.TickEvent) error
	PublishCommand(ctx context.Context, event *domain.CommandEvent) error
	PublishBroadcast(ctx context.Context, subject string, data []byte) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeSamples(ctx context.Context, handler func(ctx context.Context, event *domain.SampleEvent) error) error
	SubscribeCommands(ctx context.Context, handler func(ctx context.Context, event *domain.CommandEvent) error) error
	SubscribeTicks(ctx context.Context, handler func(ctx context.Context, event *domain.TickEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// NotificationService sends notifications (push, email, etc.).
type NotificationService interface {
	SendPush(ctx context.Context, recipient, title, body string) error
}
