package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harborline/be-procurement-requests/internal/events"
)

// NotificationPublisher forwards lifecycle events to NATS for consumption by
// the notifications platform.
//
// Subject convention: notifications.procurement.<event_kind>
// Kinds: submitted, approved, rejected, queried, resubmitted, split,
// completed, comment_posted
//
// All publish operations are non-fatal: errors are logged but never
// propagated, so notification failures never interrupt lifecycle operations.
type NotificationPublisher struct {
	nats *NATSClient
	log  zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType   string         `json:"event_type"`
	RequestID   string         `json:"request_id"`
	ActorID     string         `json:"actor_id"`
	ActorRole   string         `json:"actor_role,omitempty"`
	RequesterID string         `json:"requester_id,omitempty"`
	FromState   string         `json:"from_state,omitempty"`
	ToState     string         `json:"to_state,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// client. A nil client disables publishing.
func NewNotificationPublisher(nats *NATSClient, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{nats: nats, log: log}
}

// HandleEvent publishes one lifecycle event. Wire it to the dispatcher with
// Subscribe.
func (p *NotificationPublisher) HandleEvent(ev events.Event) {
	if p.nats == nil {
		return
	}

	msg := &NotificationEvent{
		EventType:   string(ev.Kind),
		RequestID:   ev.RequestID,
		ActorID:     ev.ActorID,
		ActorRole:   string(ev.ActorRole),
		RequesterID: ev.RequesterID,
		FromState:   string(ev.From),
		ToState:     string(ev.To),
		OccurredAt:  ev.At,
		Payload:     ev.Payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", msg.EventType).Msg("notification: failed to marshal event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	subject := fmt.Sprintf("notifications.procurement.%s", ev.Kind)
	if err := p.nats.Publish(ctx, subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("request_id", ev.RequestID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("request_id", ev.RequestID).
		Msg("notification: event published")
}
