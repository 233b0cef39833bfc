package dto

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/donation-matrix-api/internal/models"
)

// AcceptUpgradeRequest asks to move a participant one level up.
type AcceptUpgradeRequest struct {
	ParticipantID string `json:"participant_id" validate:"required"`
	FromLevel     int    `json:"from_level" validate:"required,min=1,max=2"`
	ToLevel       int    `json:"to_level" validate:"required,min=2,max=3"`
}

// BootstrapCycleRequest seeds the first wave of donations of a full level queue.
// Zero values select the defaults: three donors per receiver, the level unit amount and PULL.
type BootstrapCycleRequest struct {
	Level             int                 `json:"level" validate:"required,min=1,max=3"`
	DonorsPerReceiver int                 `json:"donors_per_receiver" validate:"omitempty,min=1,max=10"`
	Amount            decimal.Decimal     `json:"amount"`
	Type              models.DonationType `json:"type"`
	DeadlineDays      int                 `json:"deadline_days" validate:"omitempty,min=0,max=365"`
}

// BootstrapCycleResult reports what a bootstrap run did.
type BootstrapCycleResult struct {
	Level              int `json:"level"`
	Created            int `json:"created"`
	SkippedExisting    int `json:"skipped_existing"`
	ReceiversProcessed int `json:"receivers_processed"`
}

// AcceptUpgradeResult reports where the participant landed.
type AcceptUpgradeResult struct {
	ParticipantID string `json:"participant_id"`
	FromLevel     int    `json:"from_level"`
	ToLevel       int    `json:"to_level"`
	Position      int    `json:"position"`
}
