package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/donation-matrix-api/internal/models"
)

// ErrSlotTaken is returned when a slot expected to be empty is held by someone.
var ErrSlotTaken = errors.New("queue slot already occupied")

const slotColumns = `id, level, position, participant_id, is_receiver, donations_received, total_received,
donations_required, level_completed, level_completed_at, passed_participant_ids, created_at, updated_at`

// QueueSlotRepository persists positional queue slots.
type QueueSlotRepository struct {
	db sqlx.ExtContext
}

// NewQueueSlotRepository constructs the repository over a database handle or an open transaction.
func NewQueueSlotRepository(db sqlx.ExtContext) *QueueSlotRepository {
	return &QueueSlotRepository{db: db}
}

// SlotsByLevel returns every slot of a level ordered by position.
func (r *QueueSlotRepository) SlotsByLevel(ctx context.Context, level int) ([]models.QueueSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM queue_slots WHERE level = $1 ORDER BY position ASC`
	var slots []models.QueueSlot
	if err := sqlx.SelectContext(ctx, r.db, &slots, query, level); err != nil {
		return nil, fmt.Errorf("list queue slots for level %d: %w", level, err)
	}
	return slots, nil
}

// SlotsByParticipant returns the slots a participant holds across levels.
func (r *QueueSlotRepository) SlotsByParticipant(ctx context.Context, participantID string) ([]models.QueueSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM queue_slots WHERE participant_id = $1 ORDER BY level ASC`
	var slots []models.QueueSlot
	if err := sqlx.SelectContext(ctx, r.db, &slots, query, participantID); err != nil {
		return nil, fmt.Errorf("list queue slots for participant: %w", err)
	}
	return slots, nil
}

// SlotByParticipant returns the participant's slot in a level or sql.ErrNoRows.
func (r *QueueSlotRepository) SlotByParticipant(ctx context.Context, participantID string, level int) (*models.QueueSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM queue_slots WHERE participant_id = $1 AND level = $2`
	var slot models.QueueSlot
	if err := sqlx.GetContext(ctx, r.db, &slot, query, participantID, level); err != nil {
		return nil, err
	}
	return &slot, nil
}

// SlotByPosition returns the slot at a position or sql.ErrNoRows.
func (r *QueueSlotRepository) SlotByPosition(ctx context.Context, level, position int) (*models.QueueSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM queue_slots WHERE level = $1 AND position = $2`
	var slot models.QueueSlot
	if err := sqlx.GetContext(ctx, r.db, &slot, query, level, position); err != nil {
		return nil, err
	}
	return &slot, nil
}

// SlotByID returns a slot or sql.ErrNoRows.
func (r *QueueSlotRepository) SlotByID(ctx context.Context, id string) (*models.QueueSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM queue_slots WHERE id = $1`
	var slot models.QueueSlot
	if err := sqlx.GetContext(ctx, r.db, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// InsertSlot creates a new slot row. Position collisions surface as unique violations.
func (r *QueueSlotRepository) InsertSlot(ctx context.Context, slot *models.QueueSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	slot.CreatedAt = now
	slot.UpdatedAt = now
	if slot.PassedParticipantIDs == nil {
		slot.PassedParticipantIDs = pq.StringArray{}
	}

	const query = `
INSERT INTO queue_slots (id, level, position, participant_id, is_receiver, donations_received, total_received,
	donations_required, level_completed, level_completed_at, passed_participant_ids, created_at, updated_at)
VALUES (:id, :level, :position, :participant_id, :is_receiver, :donations_received, :total_received,
	:donations_required, :level_completed, :level_completed_at, :passed_participant_ids, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, slot); err != nil {
		return fmt.Errorf("insert queue slot: %w", err)
	}
	return nil
}

// AssignParticipant binds a participant to an empty slot and resets its counters.
func (r *QueueSlotRepository) AssignParticipant(ctx context.Context, slotID, participantID string, required int) error {
	const query = `
UPDATE queue_slots
SET participant_id = $2, donations_received = 0, total_received = 0, donations_required = $3,
	level_completed = FALSE, level_completed_at = NULL, updated_at = $4
WHERE id = $1 AND participant_id IS NULL`
	res, err := r.db.ExecContext(ctx, query, slotID, participantID, required, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("assign queue slot: %w", err)
	}
	return expectOneRow(res, ErrSlotTaken)
}

// UpdateSlotCounters overwrites the received count and total.
func (r *QueueSlotRepository) UpdateSlotCounters(ctx context.Context, slotID string, received int, total decimal.Decimal) error {
	const query = `UPDATE queue_slots SET donations_received = $2, total_received = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, slotID, received, total, time.Now().UTC()); err != nil {
		return fmt.Errorf("update queue slot counters: %w", err)
	}
	return nil
}

// MarkLevelCompleted flags the slot completed once. It reports whether this call made the transition.
func (r *QueueSlotRepository) MarkLevelCompleted(ctx context.Context, slotID string, at time.Time) (bool, error) {
	const query = `
UPDATE queue_slots SET level_completed = TRUE, level_completed_at = $2, updated_at = $2
WHERE id = $1 AND level_completed = FALSE`
	res, err := r.db.ExecContext(ctx, query, slotID, at)
	if err != nil {
		return false, fmt.Errorf("mark queue slot completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark queue slot completed: %w", err)
	}
	return affected == 1, nil
}

// ClearParticipant vacates a slot, keeping the row and appending the leaver to the passed list.
func (r *QueueSlotRepository) ClearParticipant(ctx context.Context, slotID string) error {
	const query = `
UPDATE queue_slots
SET passed_participant_ids = array_append(passed_participant_ids, participant_id),
	participant_id = NULL, updated_at = $2
WHERE id = $1 AND participant_id IS NOT NULL`
	if _, err := r.db.ExecContext(ctx, query, slotID, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear queue slot: %w", err)
	}
	return nil
}

// SetPositions moves slots of one level to new positions. Targets are parked on negative
// positions first so intermediate states never violate the (level, position) constraint.
func (r *QueueSlotRepository) SetPositions(ctx context.Context, level int, moves []models.SlotPosition) error {
	if len(moves) == 0 {
		return nil
	}
	ids := make([]string, len(moves))
	for i, m := range moves {
		ids[i] = m.SlotID
	}

	const park = `UPDATE queue_slots SET position = -position - 1 WHERE level = $1 AND id = ANY($2)`
	if _, err := r.db.ExecContext(ctx, park, level, pq.Array(ids)); err != nil {
		return fmt.Errorf("park queue slot positions: %w", err)
	}

	const move = `UPDATE queue_slots SET position = $3, updated_at = $4 WHERE level = $1 AND id = $2`
	now := time.Now().UTC()
	for _, m := range moves {
		res, err := r.db.ExecContext(ctx, move, level, m.SlotID, m.Position, now)
		if err != nil {
			return fmt.Errorf("move queue slot %s: %w", m.SlotID, err)
		}
		if err := expectOneRow(res, fmt.Errorf("queue slot %s not in level %d", m.SlotID, level)); err != nil {
			return err
		}
	}
	return nil
}

// QueueStats counts slots of one level.
func (r *QueueSlotRepository) QueueStats(ctx context.Context, level int) (*models.QueueStats, error) {
	const query = `
SELECT
	COUNT(*) AS total_slots,
	COUNT(participant_id) AS filled_slots,
	COUNT(*) FILTER (WHERE level_completed) AS completed_slots
FROM queue_slots WHERE level = $1`
	var stats models.QueueStats
	if err := sqlx.GetContext(ctx, r.db, &stats, query, level); err != nil {
		return nil, fmt.Errorf("queue stats for level %d: %w", level, err)
	}
	stats.Level = level
	return &stats, nil
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func expectOneRow(res rowsAffected, none error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return none
	}
	return nil
}
