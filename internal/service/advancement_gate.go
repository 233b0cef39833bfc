package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/donation-matrix-api/internal/events"
	"github.com/noah-isme/donation-matrix-api/internal/models"
	appErrors "github.com/noah-isme/donation-matrix-api/pkg/errors"
)

const (
	mechanismObligationsSettled = "obligations_settled"
	mechanismAcceptedUpgrade    = "accepted_upgrade"
)

// AdvancementGate decides when a participant's recorded level may move up.
type AdvancementGate struct {
	logger *zap.Logger
}

// NewAdvancementGate constructs a gate.
func NewAdvancementGate(logger *zap.Logger) *AdvancementGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdvancementGate{logger: logger}
}

// AdvanceDonor moves the donor up exactly one level once none of their upgrade,
// cascade or reinjection obligations is still pending. The donor never passes one level
// above the highest level they completed. It reports whether the level changed.
func (g *AdvancementGate) AdvanceDonor(ctx context.Context, tx MatrixTx, donorID string, fx *effects) (bool, error) {
	pending, err := tx.FindPending(ctx, donorID, models.ObligationTypes)
	if err != nil {
		return false, err
	}
	if len(pending) > 0 {
		g.logger.Debug("donor still owes obligations",
			zap.String("participant_id", donorID),
			zap.Int("pending", len(pending)),
		)
		return false, nil
	}

	level, err := tx.GetCurrentLevel(ctx, donorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			g.logger.Warn("donor has no participant record", zap.String("participant_id", donorID))
			return false, nil
		}
		return false, fmt.Errorf("load donor level: %w", err)
	}
	if level >= models.MaxLevel {
		return false, nil
	}

	ceiling, err := g.advancementCeiling(ctx, tx, donorID)
	if err != nil {
		return false, err
	}
	if level >= ceiling {
		g.logger.Debug("donor already at the level their completions allow",
			zap.String("participant_id", donorID),
			zap.Int("level", level),
		)
		return false, nil
	}

	next := level + 1
	if err := tx.SetCurrentLevel(ctx, donorID, next); err != nil {
		return false, err
	}
	g.logger.Info("participant advanced",
		zap.String("participant_id", donorID),
		zap.Int("from_level", level),
		zap.Int("to_level", next),
		zap.String("mechanism", mechanismObligationsSettled),
	)
	fx.advanced = append(fx.advanced, next)
	fx.touch(donorID)
	fx.emit(events.New(events.TypeParticipantMoved, donorID, advancementPayload{
		ParticipantID: donorID,
		FromLevel:     level,
		ToLevel:       next,
		Mechanism:     mechanismObligationsSettled,
	}))
	return true, nil
}

// advancementCeiling is one above the highest level the participant completed, capped at MaxLevel.
// Zero means nothing was completed yet.
func (g *AdvancementGate) advancementCeiling(ctx context.Context, tx MatrixTx, participantID string) (int, error) {
	slots, err := tx.SlotsByParticipant(ctx, participantID)
	if err != nil {
		return 0, fmt.Errorf("load donor slots: %w", err)
	}
	highest := 0
	for _, s := range slots {
		if s.LevelCompleted && s.Level > highest {
			highest = s.Level
		}
	}
	if highest == 0 {
		return 0, nil
	}
	if highest >= models.MaxLevel {
		return models.MaxLevel, nil
	}
	return highest + 1, nil
}

// ValidateUpgrade checks an opt-in advancement from one level to the next. Among those who
// completed fromLevel, advancement happens in position order: every completer at an
// earlier position must already have moved past fromLevel.
func (g *AdvancementGate) ValidateUpgrade(ctx context.Context, tx MatrixTx, participantID string, fromLevel, toLevel int) (*models.Participant, *models.QueueSlot, error) {
	if !models.ValidLevel(fromLevel) || toLevel != fromLevel+1 || toLevel > models.MaxLevel {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidUpgrade, fmt.Sprintf("upgrade must move exactly one level up, got %d -> %d", fromLevel, toLevel))
	}

	participant, err := tx.GetParticipant(ctx, participantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}

	slot, err := tx.SlotByParticipant(ctx, participantID, fromLevel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrLevelNotCompleted, fmt.Sprintf("participant holds no slot in level %d", fromLevel))
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant slot")
	}
	if !slot.LevelCompleted {
		return nil, nil, appErrors.Clone(appErrors.ErrLevelNotCompleted, fmt.Sprintf("level %d is not completed", fromLevel))
	}
	if participant.CurrentLevel >= toLevel {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidUpgrade, fmt.Sprintf("participant is already at level %d", participant.CurrentLevel))
	}

	if err := g.checkOrder(ctx, tx, slot, participantID); err != nil {
		return nil, nil, err
	}
	return participant, slot, nil
}

func (g *AdvancementGate) checkOrder(ctx context.Context, tx MatrixTx, slot *models.QueueSlot, participantID string) error {
	levelSlots, err := tx.SlotsByLevel(ctx, slot.Level)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load level queue")
	}

	var earlier []models.QueueSlot
	for _, s := range levelSlots {
		if s.Position < slot.Position && s.LevelCompleted && s.Occupied() && !s.HeldBy(participantID) {
			earlier = append(earlier, s)
		}
	}
	if len(earlier) == 0 {
		return nil
	}
	sort.Slice(earlier, func(i, j int) bool { return earlier[i].Position < earlier[j].Position })

	ids := make([]string, len(earlier))
	for i, s := range earlier {
		ids[i] = *s.ParticipantID
	}
	peers, err := tx.ParticipantsByIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load earlier participants")
	}
	levels := make(map[string]int, len(peers))
	for _, p := range peers {
		levels[p.ID] = p.CurrentLevel
	}

	for _, s := range earlier {
		if levels[*s.ParticipantID] <= slot.Level {
			return appErrors.Clone(appErrors.ErrUpgradeOutOfOrder, fmt.Sprintf(
				"participant at position %d completed level %d earlier and has not advanced yet", s.Position, slot.Level))
		}
	}
	return nil
}
