package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/huarazguide/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
// Each process gets its own ephemeral consumer so every API instance sees
// every event.
type Subscriber struct {
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber on conn.
func NewSubscriber(conn *nats.Conn) (*Subscriber, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{js: js}, nil
}

func subscribe[T any](ctx context.Context, s *Subscriber, subject string, handler func(ctx context.Context, v *T) error) error {
	sub, err := s.js.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			// Poison message; redelivery cannot fix it.
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &v); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *Subscriber) SubscribeMarkerMoved(ctx context.Context, handler func(ctx context.Context, ev *domain.MarkerMoved) error) error {
	return subscribe(ctx, s, SubjectMarkerMoved, handler)
}

func (s *Subscriber) SubscribeSponsorshipChanged(ctx context.Context, handler func(ctx context.Context, sp *domain.Sponsorship) error) error {
	return subscribe(ctx, s, SubjectSponsorshipChanged, handler)
}

// Close removes the subscriptions. The connection is owned by the caller.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
}
