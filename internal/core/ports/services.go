package ports

import (
	"context"
	"time"

	"github.com/samirrijal/huarazguide/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishMarkerMoved(ctx context.Context, ev *domain.MarkerMoved) error
	PublishSponsorshipChanged(ctx context.Context, sp *domain.Sponsorship) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeMarkerMoved(ctx context.Context, handler func(ctx context.Context, ev *domain.MarkerMoved) error) error
	SubscribeSponsorshipChanged(ctx context.Context, handler func(ctx context.Context, sp *domain.Sponsorship) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// ChatModel generates assistant replies from a large language model.
type ChatModel interface {
	Generate(ctx context.Context, systemInstruction, prompt string) (string, error)
	Model() string
}

// QREncoder renders text as a QR code PNG.
type QREncoder interface {
	PNG(content string, size int) ([]byte, error)
}

// ImageProber reads the intrinsic size of a remote image.
type ImageProber interface {
	Probe(ctx context.Context, url string) (domain.ImageDimensions, error)
}

// SponsorshipScheduler arranges for a sponsorship to lapse at its end date.
type SponsorshipScheduler interface {
	ScheduleExpiry(ctx context.Context, businessID string, end time.Time) error
}
