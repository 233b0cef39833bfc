package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LevelProgress is the read-only projection of one slot.
type LevelProgress struct {
	Level       int             `json:"level"`
	Position    int             `json:"position"`
	Received    int             `json:"received"`
	Required    int             `json:"required"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Completed   bool            `json:"completed"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// ParticipantProgress aggregates a participant's standing across levels.
type ParticipantProgress struct {
	ParticipantID string          `json:"participant_id"`
	CurrentLevel  int             `json:"current_level"`
	CanReenter    bool            `json:"can_reenter"`
	Levels        []LevelProgress `json:"levels"`
}
