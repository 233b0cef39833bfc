package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/donation-matrix-api/internal/models"
)

// ParticipantRepository reads and advances the matrix state of users.
type ParticipantRepository struct {
	db sqlx.ExtContext
}

// NewParticipantRepository constructs the repository over a database handle or an open transaction.
func NewParticipantRepository(db sqlx.ExtContext) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// GetParticipant returns a participant or sql.ErrNoRows.
func (r *ParticipantRepository) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	const query = `SELECT id, current_level, can_reenter, n3_completed_at, created_at, updated_at FROM participants WHERE id = $1`
	var participant models.Participant
	if err := sqlx.GetContext(ctx, r.db, &participant, query, id); err != nil {
		return nil, err
	}
	return &participant, nil
}

// ParticipantsByIDs returns the participants found among ids.
func (r *ParticipantRepository) ParticipantsByIDs(ctx context.Context, ids []string) ([]models.Participant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, current_level, can_reenter, n3_completed_at, created_at, updated_at FROM participants WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build participants query: %w", err)
	}
	var participants []models.Participant
	if err := sqlx.SelectContext(ctx, r.db, &participants, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return participants, nil
}

// GetCurrentLevel returns the recorded level of a participant or sql.ErrNoRows.
func (r *ParticipantRepository) GetCurrentLevel(ctx context.Context, id string) (int, error) {
	const query = `SELECT current_level FROM participants WHERE id = $1`
	var level int
	if err := sqlx.GetContext(ctx, r.db, &level, query, id); err != nil {
		return 0, err
	}
	return level, nil
}

// SetCurrentLevel raises the recorded level. Lower values are ignored so levels never decrease.
func (r *ParticipantRepository) SetCurrentLevel(ctx context.Context, id string, level int) error {
	const query = `UPDATE participants SET current_level = $2, updated_at = $3 WHERE id = $1 AND current_level < $2`
	if _, err := r.db.ExecContext(ctx, query, id, level, time.Now().UTC()); err != nil {
		return fmt.Errorf("set participant level: %w", err)
	}
	return nil
}

// MarkReentryEligible flags a participant that finished the last level.
func (r *ParticipantRepository) MarkReentryEligible(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE participants SET can_reenter = TRUE, n3_completed_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark participant reentry: %w", err)
	}
	return nil
}

// EnsureParticipant creates a level-1 participant row if it does not exist yet.
func (r *ParticipantRepository) EnsureParticipant(ctx context.Context, id string) error {
	const query = `
INSERT INTO participants (id, current_level, can_reenter, created_at, updated_at)
VALUES ($1, 1, FALSE, $2, $2)
ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("ensure participant: %w", err)
	}
	return nil
}
