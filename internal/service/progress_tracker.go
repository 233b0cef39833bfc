package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/donation-matrix-api/internal/models"
)

// ProgressTracker maintains slot counters and detects level completion.
type ProgressTracker struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewProgressTracker constructs a tracker.
func NewProgressTracker(logger *zap.Logger) *ProgressTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressTracker{logger: logger, now: utcNow}
}

// RecordReceipt adds one received donation of amount to the participant's slot in level.
// A participant without a slot in that level is not tracked there and yields a nil slot.
// Callers must apply it exactly once per confirmed donation.
func (t *ProgressTracker) RecordReceipt(ctx context.Context, slots slotStore, participantID string, level int, amount decimal.Decimal) (*models.QueueSlot, error) {
	slot, err := slots.SlotByParticipant(ctx, participantID, level)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			t.logger.Info("receipt for untracked participant",
				zap.String("participant_id", participantID),
				zap.Int("level", level),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("load receiver slot: %w", err)
	}

	slot.DonationsReceived++
	slot.TotalReceived = slot.TotalReceived.Add(amount)
	if err := slots.UpdateSlotCounters(ctx, slot.ID, slot.DonationsReceived, slot.TotalReceived); err != nil {
		return nil, err
	}
	return slot, nil
}

// levelCompletion is the outcome of a completion check. At is the persisted completion time.
type levelCompletion struct {
	Completed    bool
	Transitioned bool
	At           *time.Time
}

// CheckCompletion reports whether the participant's slot in level met its quota. The first
// positive answer stamps the slot completed; Transitioned is true only for that call.
func (t *ProgressTracker) CheckCompletion(ctx context.Context, slots slotStore, participantID string, level int) (levelCompletion, error) {
	slot, err := slots.SlotByParticipant(ctx, participantID, level)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return levelCompletion{}, nil
		}
		return levelCompletion{}, fmt.Errorf("load slot for completion: %w", err)
	}
	if slot.LevelCompleted {
		return levelCompletion{Completed: true, At: slot.LevelCompletedAt}, nil
	}
	if !slot.QuotaMet() {
		return levelCompletion{}, nil
	}

	at := t.now()
	changed, err := slots.MarkLevelCompleted(ctx, slot.ID, at)
	if err != nil {
		return levelCompletion{}, err
	}
	if !changed {
		return levelCompletion{Completed: true}, nil
	}
	return levelCompletion{Completed: true, Transitioned: true, At: &at}, nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}
