package models

import "time"

// Participant holds the matrix-relevant state of a user.
type Participant struct {
	ID            string     `db:"id" json:"id"`
	CurrentLevel  int        `db:"current_level" json:"current_level"`
	CanReenter    bool       `db:"can_reenter" json:"can_reenter"`
	N3CompletedAt *time.Time `db:"n3_completed_at" json:"n3_completed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
