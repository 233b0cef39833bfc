package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/donation-matrix-api/internal/dto"
	"github.com/noah-isme/donation-matrix-api/internal/events"
	"github.com/noah-isme/donation-matrix-api/internal/models"
	"github.com/noah-isme/donation-matrix-api/internal/repository"
	"github.com/noah-isme/donation-matrix-api/pkg/config"
	appErrors "github.com/noah-isme/donation-matrix-api/pkg/errors"
)

const (
	opConfirmDonation = "confirm_donation"
	opAcceptUpgrade   = "accept_upgrade"
	opBootstrapCycle  = "bootstrap_cycle"
)

// ProgressSource serves the read-only progress projection.
type ProgressSource interface {
	GetParticipant(ctx context.Context, id string) (*models.Participant, error)
	SlotsByParticipant(ctx context.Context, participantID string) ([]models.QueueSlot, error)
}

type progressReader struct {
	*repository.QueueSlotRepository
	*repository.ParticipantRepository
}

// NewProgressReader combines the slot and participant repositories for read-only projections.
func NewProgressReader(slots *repository.QueueSlotRepository, participants *repository.ParticipantRepository) ProgressSource {
	return progressReader{QueueSlotRepository: slots, ParticipantRepository: participants}
}

// MatrixEngine runs the level progression rules. Every mutating operation is one
// transaction holding the locks of the levels it may touch; events, metrics and cache
// invalidation follow only after commit.
type MatrixEngine struct {
	store     TxRunner
	reads     ProgressSource
	tracker   *ProgressTracker
	generator *CascadeGenerator
	gate      *AdvancementGate
	bootstrap *CycleBootstrap
	cache     *CacheService
	metrics   *MetricsService
	publisher events.Publisher
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMatrixEngine wires the engine components.
func NewMatrixEngine(
	store TxRunner,
	reads ProgressSource,
	cfg config.MatrixConfig,
	cache *CacheService,
	metrics *MetricsService,
	publisher events.Publisher,
	validate *validator.Validate,
	logger *zap.Logger,
) *MatrixEngine {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &MatrixEngine{
		store:     store,
		reads:     reads,
		tracker:   NewProgressTracker(logger),
		generator: NewCascadeGenerator(cfg, logger),
		gate:      NewAdvancementGate(logger),
		bootstrap: NewCycleBootstrap(cfg.BootstrapSlotCount, logger),
		cache:     cache,
		metrics:   metrics,
		publisher: publisher,
		validator: validate,
		logger:    logger,
		now:       utcNow,
	}
}

func (e *MatrixEngine) setClock(now func() time.Time) {
	e.now = now
	e.tracker.now = now
	e.generator.now = now
	e.bootstrap.now = now
}

// ConfirmDonation flips a donation from PENDING_CONFIRMATION to CONFIRMED and applies its
// progress effects in the same transaction. An empty confirmerID skips the receiver check.
func (e *MatrixEngine) ConfirmDonation(ctx context.Context, donationID, confirmerID string) (*models.Donation, error) {
	var confirmed *models.Donation
	err := e.run(ctx, opConfirmDonation, func(ctx context.Context, tx MatrixTx, fx *effects) error {
		donation, err := tx.GetDonationForUpdate(ctx, donationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "donation not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load donation")
		}
		if confirmerID != "" && donation.ReceiverID != confirmerID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the receiver can confirm a donation")
		}
		if donation.Status != models.DonationStatusPendingConfirmation {
			return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("donation is %s, not awaiting confirmation", donation.Status))
		}

		if err := tx.LockLevels(ctx, confirmationLevels(donation)...); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock levels")
		}

		at := e.now()
		changed, err := tx.TransitionStatus(ctx, donation.ID, models.DonationStatusPendingConfirmation, models.DonationStatusConfirmed, at)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm donation")
		}
		if !changed {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "donation was already processed")
		}
		donation.Status = models.DonationStatusConfirmed
		donation.CompletedAt = &at
		donation.UpdatedAt = at

		fx.confirmed++
		fx.touch(donation.DonorID, donation.ReceiverID)
		fx.emit(events.New(events.TypeDonationConfirmed, donation.ID, donation))

		if err := e.applyConfirmation(ctx, tx, donation, fx); err != nil {
			return err
		}
		confirmed = donation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// OnDonationConfirmed applies the progress effects of a donation the caller already
// moved to CONFIRMED. The caller guarantees it is invoked once per donation.
func (e *MatrixEngine) OnDonationConfirmed(ctx context.Context, donation *models.Donation) error {
	if donation == nil {
		return appErrors.Clone(appErrors.ErrValidation, "donation is required")
	}
	if donation.Status != models.DonationStatusConfirmed {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("donation is %s, not confirmed", donation.Status))
	}
	return e.run(ctx, opConfirmDonation, func(ctx context.Context, tx MatrixTx, fx *effects) error {
		if err := tx.LockLevels(ctx, confirmationLevels(donation)...); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock levels")
		}
		fx.confirmed++
		fx.touch(donation.DonorID, donation.ReceiverID)
		return e.applyConfirmation(ctx, tx, donation, fx)
	})
}

func (e *MatrixEngine) applyConfirmation(ctx context.Context, tx MatrixTx, donation *models.Donation, fx *effects) error {
	level := models.LevelByAmount(donation.Amount)

	slot, err := e.tracker.RecordReceipt(ctx, tx, donation.ReceiverID, level, donation.Amount)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record receipt")
	}
	if slot != nil {
		completion, err := e.tracker.CheckCompletion(ctx, tx, donation.ReceiverID, level)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate completion")
		}
		if completion.Transitioned {
			slot.LevelCompleted = true
			slot.LevelCompletedAt = completion.At

			e.logger.Info("level completed",
				zap.String("participant_id", donation.ReceiverID),
				zap.Int("level", level),
				zap.Int("position", slot.Position),
			)
			fx.completed = append(fx.completed, level)
			fx.emit(events.New(events.TypeLevelCompleted, donation.ReceiverID, levelCompletedPayload{
				ParticipantID: donation.ReceiverID,
				Level:         level,
				Position:      slot.Position,
			}))
			if err := e.generator.OnLevelCompleted(ctx, tx, slot, fx); err != nil {
				e.logger.Error("level completion aborted",
					zap.String("participant_id", donation.ReceiverID),
					zap.Int("level", level),
					zap.Error(err),
				)
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to process level completion")
			}
		}
	}

	if donation.Type == models.DonationTypeUpgradeN3 {
		e.generator.OnUpgradeConfirmed(ctx, tx, donation, fx)
	}

	if donation.Type.IsObligation() {
		if _, err := e.gate.AdvanceDonor(ctx, tx, donation.DonorID, fx); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance donor")
		}
	}
	return nil
}

// AcceptUpgrade moves a participant one level up on request, honouring position order
// among the participants who completed the same level.
func (e *MatrixEngine) AcceptUpgrade(ctx context.Context, req dto.AcceptUpgradeRequest) (*dto.AcceptUpgradeResult, error) {
	if err := e.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upgrade payload")
	}

	var result *dto.AcceptUpgradeResult
	err := e.run(ctx, opAcceptUpgrade, func(ctx context.Context, tx MatrixTx, fx *effects) error {
		if err := tx.LockLevels(ctx, req.FromLevel, req.ToLevel); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock levels")
		}
		participant, slot, err := e.gate.ValidateUpgrade(ctx, tx, req.ParticipantID, req.FromLevel, req.ToLevel)
		if err != nil {
			return err
		}

		if err := tx.SetCurrentLevel(ctx, participant.ID, req.ToLevel); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update participant level")
		}
		placed, err := placeParticipant(ctx, tx, participant.ID, req.ToLevel, slot.Position, false)
		if err != nil {
			return normalizeError(err, "failed to place participant")
		}
		if placed.reassigned() {
			e.logger.Warn("position conflict resolved",
				zap.String("participant_id", participant.ID),
				zap.Int("level", req.ToLevel),
				zap.Int("requested_position", slot.Position),
				zap.Int("position", placed.slot.Position),
			)
		}

		fx.advanced = append(fx.advanced, req.ToLevel)
		fx.touch(participant.ID)
		fx.emit(events.New(events.TypeParticipantMoved, participant.ID, advancementPayload{
			ParticipantID: participant.ID,
			FromLevel:     req.FromLevel,
			ToLevel:       req.ToLevel,
			Mechanism:     mechanismAcceptedUpgrade,
		}))
		if !placed.existing {
			fx.emit(events.New(events.TypeParticipantPlaced, participant.ID, placementPayload{
				ParticipantID:     participant.ID,
				Level:             req.ToLevel,
				Position:          placed.slot.Position,
				RequestedPosition: slot.Position,
			}))
		}

		result = &dto.AcceptUpgradeResult{
			ParticipantID: participant.ID,
			FromLevel:     req.FromLevel,
			ToLevel:       req.ToLevel,
			Position:      placed.slot.Position,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BootstrapCycle seeds the first donations of a full level queue.
func (e *MatrixEngine) BootstrapCycle(ctx context.Context, req dto.BootstrapCycleRequest) (*dto.BootstrapCycleResult, error) {
	if err := e.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bootstrap payload")
	}
	if req.Amount.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must not be negative")
	}

	var result *dto.BootstrapCycleResult
	err := e.run(ctx, opBootstrapCycle, func(ctx context.Context, tx MatrixTx, fx *effects) error {
		if err := tx.LockLevels(ctx, req.Level); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock level")
		}
		res, err := e.bootstrap.Generate(ctx, tx, req, fx)
		if err != nil {
			return err
		}
		fx.emit(events.New(events.TypeCycleBootstrapped, fmt.Sprintf("level-%d", req.Level), res))
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.RecordBootstrap(result.Created, result.SkippedExisting)
	return result, nil
}

// GetParticipantProgress projects a participant's slots into per-level progress.
func (e *MatrixEngine) GetParticipantProgress(ctx context.Context, participantID string) (*models.ParticipantProgress, error) {
	if participantID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "participant id is required")
	}
	if cached, ok := e.cache.GetProgress(ctx, participantID); ok {
		return cached, nil
	}

	participant, err := e.reads.GetParticipant(ctx, participantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}
	slots, err := e.reads.SlotsByParticipant(ctx, participantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant slots")
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Level < slots[j].Level })

	progress := &models.ParticipantProgress{
		ParticipantID: participant.ID,
		CurrentLevel:  participant.CurrentLevel,
		CanReenter:    participant.CanReenter,
		Levels:        make([]models.LevelProgress, 0, len(slots)),
	}
	for _, s := range slots {
		progress.Levels = append(progress.Levels, models.LevelProgress{
			Level:       s.Level,
			Position:    s.Position,
			Received:    s.DonationsReceived,
			Required:    s.DonationsRequired,
			TotalAmount: s.TotalReceived,
			Completed:   s.LevelCompleted,
			CompletedAt: s.LevelCompletedAt,
		})
	}
	e.cache.SetProgress(ctx, progress)
	return progress, nil
}

func (e *MatrixEngine) run(ctx context.Context, operation string, fn func(ctx context.Context, tx MatrixTx, fx *effects) error) error {
	start := time.Now()
	fx := newEffects()
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx MatrixTx) error {
		return fn(ctx, tx, fx)
	})
	e.metrics.ObserveMatrixOperation(operation, err, time.Since(start))
	if err != nil {
		return normalizeError(err, "matrix transaction failed")
	}
	e.afterCommit(ctx, fx)
	return nil
}

func (e *MatrixEngine) afterCommit(ctx context.Context, fx *effects) {
	e.metrics.RecordMatrixEffects(fx.confirmed, fx.completed, fx.generated, fx.skipped, fx.advanced)
	e.cache.InvalidateProgress(ctx, fx.touchedIDs()...)
	if len(fx.events) == 0 {
		return
	}
	if err := e.publisher.Publish(ctx, fx.events...); err != nil {
		e.metrics.RecordEventsDropped(len(fx.events))
		e.logger.Warn("publish matrix events failed", zap.Int("events", len(fx.events)), zap.Error(err))
	}
}
