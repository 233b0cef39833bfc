package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/donation-matrix-api/internal/dto"
	"github.com/noah-isme/donation-matrix-api/internal/events"
	"github.com/noah-isme/donation-matrix-api/internal/models"
	appErrors "github.com/noah-isme/donation-matrix-api/pkg/errors"
)

type queueReader interface {
	SlotsByLevel(ctx context.Context, level int) ([]models.QueueSlot, error)
	SlotsByParticipant(ctx context.Context, participantID string) ([]models.QueueSlot, error)
	SlotByParticipant(ctx context.Context, participantID string, level int) (*models.QueueSlot, error)
	SlotByID(ctx context.Context, id string) (*models.QueueSlot, error)
	QueueStats(ctx context.Context, level int) (*models.QueueStats, error)
}

// QueueService administers level queues.
type QueueService struct {
	reads     queueReader
	store     TxRunner
	cache     *CacheService
	publisher events.Publisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewQueueService constructs a queue service.
func NewQueueService(reads queueReader, store TxRunner, cache *CacheService, publisher events.Publisher, validate *validator.Validate, logger *zap.Logger) *QueueService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &QueueService{reads: reads, store: store, cache: cache, publisher: publisher, validator: validate, logger: logger}
}

// List returns a level's slots ordered by position.
func (s *QueueService) List(ctx context.Context, level int) ([]models.QueueSlot, error) {
	if err := checkLevel(level); err != nil {
		return nil, err
	}
	slots, err := s.reads.SlotsByLevel(ctx, level)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list queue")
	}
	return slots, nil
}

// Stats summarises a level including its current next receiver.
func (s *QueueService) Stats(ctx context.Context, level int) (*models.QueueStats, error) {
	if err := checkLevel(level); err != nil {
		return nil, err
	}
	stats, err := s.reads.QueueStats(ctx, level)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load queue stats")
	}
	slots, err := s.reads.SlotsByLevel(ctx, level)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list queue")
	}
	if next, ok := NewReceiverIndex(level, slots).Peek(); ok {
		stats.NextReceiverID = next.ParticipantID
		position := next.Position
		stats.NextPosition = &position
	}
	return stats, nil
}

// ListByParticipant returns every slot a participant holds.
func (s *QueueService) ListByParticipant(ctx context.Context, participantID string) ([]models.QueueSlot, error) {
	slots, err := s.reads.SlotsByParticipant(ctx, participantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list participant slots")
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Level < slots[j].Level })
	return slots, nil
}

// Position returns the participant's position in level.
func (s *QueueService) Position(ctx context.Context, participantID string, level int) (int, error) {
	if err := checkLevel(level); err != nil {
		return 0, err
	}
	slot, err := s.reads.SlotByParticipant(ctx, participantID, level)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "participant not found in level queue")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant slot")
	}
	return slot.Position, nil
}

// Join places a participant at an exact position of level.
func (s *QueueService) Join(ctx context.Context, level int, req dto.JoinQueueRequest) (*models.QueueSlot, error) {
	if err := checkLevel(level); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid join payload")
	}

	var placed *placement
	err := s.mutate(ctx, []int{level}, func(ctx context.Context, tx MatrixTx, fx *effects) error {
		if err := tx.EnsureParticipant(ctx, req.ParticipantID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register participant")
		}
		p, err := placeParticipant(ctx, tx, req.ParticipantID, level, req.Position, true)
		if err != nil {
			return err
		}
		fx.touch(req.ParticipantID)
		fx.emit(events.New(events.TypeParticipantPlaced, req.ParticipantID, placementPayload{
			ParticipantID:     req.ParticipantID,
			Level:             level,
			Position:          p.slot.Position,
			RequestedPosition: req.Position,
		}))
		placed = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed.slot, nil
}

// Leave vacates the participant's slot in level.
func (s *QueueService) Leave(ctx context.Context, participantID string, level int) error {
	if err := checkLevel(level); err != nil {
		return err
	}
	return s.mutate(ctx, []int{level}, func(ctx context.Context, tx MatrixTx, fx *effects) error {
		slot, err := tx.SlotByParticipant(ctx, participantID, level)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "participant not found in level queue")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant slot")
		}
		return s.clear(ctx, tx, fx, slot)
	})
}

// Remove vacates a slot by id.
func (s *QueueService) Remove(ctx context.Context, slotID string) error {
	slot, err := s.reads.SlotByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "queue slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load queue slot")
	}
	return s.mutate(ctx, []int{slot.Level}, func(ctx context.Context, tx MatrixTx, fx *effects) error {
		locked, err := tx.SlotByID(ctx, slotID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "queue slot not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load queue slot")
		}
		if !locked.Occupied() {
			return appErrors.Clone(appErrors.ErrNotFound, "queue slot has no participant to remove")
		}
		return s.clear(ctx, tx, fx, locked)
	})
}

// Reorder assigns every slot of level a new position. The positions must be exactly 1..n.
func (s *QueueService) Reorder(ctx context.Context, level int, req dto.ReorderQueueRequest) ([]models.QueueSlot, error) {
	if err := checkLevel(level); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reorder payload")
	}
	if err := sequentialPositions(req.Slots); err != nil {
		return nil, err
	}

	var reordered []models.QueueSlot
	err := s.mutate(ctx, []int{level}, func(ctx context.Context, tx MatrixTx, fx *effects) error {
		current, err := tx.SlotsByLevel(ctx, level)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list queue")
		}
		known := make(map[string]struct{}, len(current))
		for _, slot := range current {
			known[slot.ID] = struct{}{}
		}
		if len(req.Slots) != len(current) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("reorder must cover all %d slots of level %d", len(current), level))
		}
		seen := make(map[string]struct{}, len(req.Slots))
		for _, move := range req.Slots {
			if _, ok := known[move.SlotID]; !ok {
				return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("queue slot %s not in level %d", move.SlotID, level))
			}
			if _, dup := seen[move.SlotID]; dup {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("queue slot %s listed twice", move.SlotID))
			}
			seen[move.SlotID] = struct{}{}
		}

		if err := tx.SetPositions(ctx, level, req.Slots); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reorder queue")
		}
		reordered, err = tx.SlotsByLevel(ctx, level)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list queue")
		}
		for _, slot := range reordered {
			if slot.Occupied() {
				fx.touch(*slot.ParticipantID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reordered, nil
}

// Swap exchanges the positions of two participants in every level both occupy.
func (s *QueueService) Swap(ctx context.Context, req dto.SwapPositionsRequest) ([]models.QueueSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap payload")
	}

	var updated []models.QueueSlot
	err := s.mutate(ctx, []int{1, 2, 3}, func(ctx context.Context, tx MatrixTx, fx *effects) error {
		first, err := tx.SlotsByParticipant(ctx, req.FirstParticipantID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant slots")
		}
		if len(first) == 0 {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("participant %s not found in any queue", req.FirstParticipantID))
		}
		second, err := tx.SlotsByParticipant(ctx, req.SecondParticipantID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant slots")
		}
		if len(second) == 0 {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("participant %s not found in any queue", req.SecondParticipantID))
		}

		byLevel := make(map[int]models.QueueSlot, len(second))
		for _, slot := range second {
			byLevel[slot.Level] = slot
		}
		sort.Slice(first, func(i, j int) bool { return first[i].Level < first[j].Level })

		for _, a := range first {
			b, ok := byLevel[a.Level]
			if !ok {
				continue
			}
			moves := []models.SlotPosition{
				{SlotID: a.ID, Position: b.Position},
				{SlotID: b.ID, Position: a.Position},
			}
			if err := tx.SetPositions(ctx, a.Level, moves); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to swap positions")
			}
			a.Position, b.Position = b.Position, a.Position
			updated = append(updated, a, b)
		}
		if len(updated) == 0 {
			return appErrors.Clone(appErrors.ErrValidation, "participants do not share a level queue")
		}
		fx.touch(req.FirstParticipantID, req.SecondParticipantID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *QueueService) clear(ctx context.Context, tx MatrixTx, fx *effects, slot *models.QueueSlot) error {
	if err := tx.ClearParticipant(ctx, slot.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear queue slot")
	}
	participantID := *slot.ParticipantID
	s.logger.Info("participant left queue",
		zap.String("participant_id", participantID),
		zap.Int("level", slot.Level),
		zap.Int("position", slot.Position),
	)
	fx.touch(participantID)
	return nil
}

func (s *QueueService) mutate(ctx context.Context, levels []int, fn func(ctx context.Context, tx MatrixTx, fx *effects) error) error {
	fx := newEffects()
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx MatrixTx) error {
		if err := tx.LockLevels(ctx, levels...); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock levels")
		}
		return fn(ctx, tx, fx)
	})
	if err != nil {
		return normalizeError(err, "queue transaction failed")
	}
	s.afterCommit(ctx, fx)
	return nil
}

func (s *QueueService) afterCommit(ctx context.Context, fx *effects) {
	s.cache.InvalidateProgress(ctx, fx.touchedIDs()...)
	if len(fx.events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, fx.events...); err != nil {
		s.logger.Warn("publish queue events failed", zap.Int("events", len(fx.events)), zap.Error(err))
	}
}

func sequentialPositions(moves []models.SlotPosition) error {
	positions := make([]int, len(moves))
	for i, m := range moves {
		positions[i] = m.Position
	}
	sort.Ints(positions)
	for i, p := range positions {
		if p != i+1 {
			return appErrors.Clone(appErrors.ErrValidation, "positions must be sequential starting from 1")
		}
	}
	return nil
}

func checkLevel(level int) error {
	if !models.ValidLevel(level) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("level must be between %d and %d", models.MinLevel, models.MaxLevel))
	}
	return nil
}

func normalizeError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
