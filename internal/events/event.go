package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the matrix engine.
const (
	TypeDonationCreated   = "donation.created"
	TypeDonationConfirmed = "donation.confirmed"
	TypeDonationUpdated   = "donation.status_changed"
	TypeLevelCompleted    = "matrix.level_completed"
	TypeParticipantPlaced = "matrix.participant_placed"
	TypeParticipantMoved  = "matrix.participant_advanced"
	TypeReentryEligible   = "matrix.reentry_eligible"
	TypeCascadeSkipped    = "matrix.cascade_skipped"
	TypePackageTriggered  = "matrix.package_triggered"
	TypeCycleBootstrapped = "matrix.cycle_bootstrapped"
)

// Event is a domain fact published after the transaction that produced it commits.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// New stamps an event with an id and time.
func New(eventType, key string, payload interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, ...Event) error { return nil }
