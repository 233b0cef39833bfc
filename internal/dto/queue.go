package dto

import "github.com/noah-isme/donation-matrix-api/internal/models"

// JoinQueueRequest places a participant at an exact position of a level.
type JoinQueueRequest struct {
	ParticipantID string `json:"participant_id" validate:"required"`
	Position      int    `json:"position" validate:"required,min=1"`
}

// ReorderQueueRequest assigns every slot of a level a new position.
type ReorderQueueRequest struct {
	Slots []models.SlotPosition `json:"slots" validate:"required,min=1,dive"`
}

// SwapPositionsRequest exchanges the positions of two participants in every level both hold.
type SwapPositionsRequest struct {
	FirstParticipantID  string `json:"first_participant_id" validate:"required"`
	SecondParticipantID string `json:"second_participant_id" validate:"required,nefield=FirstParticipantID"`
}
