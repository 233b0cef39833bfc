package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// QueueSlot is one position in one level's matrix.
type QueueSlot struct {
	ID                   string          `db:"id" json:"id"`
	Level                int             `db:"level" json:"level"`
	Position             int             `db:"position" json:"position"`
	ParticipantID        *string         `db:"participant_id" json:"participant_id,omitempty"`
	IsReceiver           bool            `db:"is_receiver" json:"is_receiver"`
	DonationsReceived    int             `db:"donations_received" json:"donations_received"`
	TotalReceived        decimal.Decimal `db:"total_received" json:"total_received"`
	DonationsRequired    int             `db:"donations_required" json:"donations_required"`
	LevelCompleted       bool            `db:"level_completed" json:"level_completed"`
	LevelCompletedAt     *time.Time      `db:"level_completed_at" json:"level_completed_at,omitempty"`
	PassedParticipantIDs pq.StringArray  `db:"passed_participant_ids" json:"passed_participant_ids"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// Occupied reports whether a participant holds the slot.
func (s *QueueSlot) Occupied() bool {
	return s != nil && s.ParticipantID != nil && *s.ParticipantID != ""
}

// HeldBy reports whether participantID holds the slot.
func (s *QueueSlot) HeldBy(participantID string) bool {
	return s.Occupied() && *s.ParticipantID == participantID
}

// QuotaMet reports whether the slot has received its required donations.
func (s *QueueSlot) QuotaMet() bool {
	return s.DonationsReceived >= s.DonationsRequired
}

// QueueStats summarises one level queue.
type QueueStats struct {
	Level          int     `json:"level"`
	TotalSlots     int     `db:"total_slots" json:"total_slots"`
	FilledSlots    int     `db:"filled_slots" json:"filled_slots"`
	CompletedSlots int     `db:"completed_slots" json:"completed_slots"`
	NextReceiverID *string `json:"next_receiver_id,omitempty"`
	NextPosition   *int    `json:"next_position,omitempty"`
}

// SlotPosition assigns a new position to a slot during reorder.
type SlotPosition struct {
	SlotID   string `json:"slot_id" validate:"required"`
	Position int    `json:"position" validate:"min=1"`
}
