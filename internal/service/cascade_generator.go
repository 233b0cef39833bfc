package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/donation-matrix-api/internal/events"
	"github.com/noah-isme/donation-matrix-api/internal/models"
	"github.com/noah-isme/donation-matrix-api/pkg/config"
)

var (
	errNoReceiver    = errors.New("no eligible receiver")
	errNoCascadeSlot = errors.New("no participant at cascade position")
)

const (
	stepUpgrade      = "upgrade"
	stepPlacement    = "placement"
	stepCascade      = "cascade"
	stepReinjection  = "reinjection"
	stepPackage      = "package"
	stepFinalPayment = "final_payment"
)

// CascadeGenerator creates the donations a participant owes after completing a level.
// Every step runs in its own savepoint: a failing step is logged and skipped without
// undoing the other steps or the confirmation that triggered it. Skipped steps are not
// retried and are logged with reconcile=true.
type CascadeGenerator struct {
	packageWindow time.Duration
	packageEvery  int
	logger        *zap.Logger
	now           func() time.Time
}

// NewCascadeGenerator constructs a generator.
func NewCascadeGenerator(cfg config.MatrixConfig, logger *zap.Logger) *CascadeGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PackageWindow <= 0 {
		cfg.PackageWindow = 24 * time.Hour
	}
	if cfg.PackageEvery <= 0 {
		cfg.PackageEvery = 5
	}
	return &CascadeGenerator{
		packageWindow: cfg.PackageWindow,
		packageEvery:  cfg.PackageEvery,
		logger:        logger,
		now:           utcNow,
	}
}

// OnLevelCompleted runs once per (participant, level), right after the slot was first marked completed.
func (g *CascadeGenerator) OnLevelCompleted(ctx context.Context, tx MatrixTx, slot *models.QueueSlot, fx *effects) error {
	if !slot.Occupied() {
		return fmt.Errorf("completed slot %s has no participant", slot.ID)
	}
	rule, ok := models.RuleFor(slot.Level)
	if !ok {
		return fmt.Errorf("no rule for level %d", slot.Level)
	}
	participantID := *slot.ParticipantID

	switch slot.Level {
	case 1:
		g.step(ctx, tx, fx, slot, stepUpgrade, func() error {
			return g.upgrade(ctx, tx, fx, participantID, rule)
		})
		g.step(ctx, tx, fx, slot, stepPlacement, func() error {
			return g.promote(ctx, tx, fx, participantID, slot.Level+1, slot.Position)
		})
		g.step(ctx, tx, fx, slot, stepCascade, func() error {
			return g.cascadeByPosition(ctx, tx, fx, participantID, slot.Position, rule)
		})
	case 2:
		g.step(ctx, tx, fx, slot, stepUpgrade, func() error {
			return g.upgrade(ctx, tx, fx, participantID, rule)
		})
		g.step(ctx, tx, fx, slot, stepPlacement, func() error {
			return g.promote(ctx, tx, fx, participantID, slot.Level+1, slot.Position)
		})
		g.step(ctx, tx, fx, slot, stepReinjection, func() error {
			return g.spread(ctx, tx, fx, participantID, slot.Level, rule.SpilloverTotal, rule.SpilloverUnit, rule.SpilloverType, "reinjection")
		})
	case 3:
		at := g.now()
		if err := tx.MarkReentryEligible(ctx, participantID, at); err != nil {
			return err
		}
		fx.touch(participantID)
		fx.emit(events.New(events.TypeReentryEligible, participantID, map[string]interface{}{
			"participant_id":  participantID,
			"n3_completed_at": at,
		}))
		g.step(ctx, tx, fx, slot, stepFinalPayment, func() error {
			return g.spread(ctx, tx, fx, participantID, slot.Level, rule.SpilloverTotal, rule.SpilloverUnit, rule.SpilloverType, "final payment")
		})
	}
	return nil
}

func (g *CascadeGenerator) step(ctx context.Context, tx MatrixTx, fx *effects, slot *models.QueueSlot, name string, fn func() error) {
	g.run(ctx, tx, fx, *slot.ParticipantID, slot.Level, slot.Position, name, fn)
}

func (g *CascadeGenerator) run(ctx context.Context, tx MatrixTx, fx *effects, participantID string, level, position int, name string, fn func() error) {
	mark := fx.mark()
	err := tx.Savepoint(ctx, fn)
	if err == nil {
		return
	}
	fx.rewind(mark)

	fields := []zap.Field{
		zap.String("participant_id", participantID),
		zap.Int("level", level),
		zap.Int("position", position),
		zap.String("step", name),
		zap.Bool("reconcile", true),
		zap.Error(err),
	}
	if errors.Is(err, errNoReceiver) || errors.Is(err, errNoCascadeSlot) {
		g.logger.Warn("matrix side effect skipped", fields...)
	} else {
		g.logger.Error("matrix side effect failed", fields...)
	}

	fx.skipped = append(fx.skipped, name)
	fx.emit(events.New(events.TypeCascadeSkipped, participantID, skippedPayload{
		ParticipantID: participantID,
		Level:         level,
		Position:      position,
		Step:          name,
		Reason:        err.Error(),
	}))
}

// upgrade pays the next level's unit to that level's next receiver. It runs before the
// participant is placed in the next level so they can never be their own receiver.
func (g *CascadeGenerator) upgrade(ctx context.Context, tx MatrixTx, fx *effects, participantID string, rule models.LevelRule) error {
	next := rule.Level + 1
	slots, err := tx.SlotsByLevel(ctx, next)
	if err != nil {
		return err
	}
	receiver, ok := NewReceiverIndex(next, slots, participantID).Next()
	if !ok {
		return fmt.Errorf("level %d: %w", next, errNoReceiver)
	}
	return g.create(ctx, tx, fx, models.NewDonation{
		DonorID:    participantID,
		ReceiverID: *receiver.ParticipantID,
		Amount:     rule.UpgradeAmount,
		Type:       rule.UpgradeType,
		Notes:      fmt.Sprintf("upgrade to level %d", next),
	})
}

func (g *CascadeGenerator) promote(ctx context.Context, tx MatrixTx, fx *effects, participantID string, level, position int) error {
	placed, err := placeParticipant(ctx, tx, participantID, level, position, false)
	if err != nil {
		return err
	}
	if placed.existing {
		g.logger.Info("participant already placed in level",
			zap.String("participant_id", participantID),
			zap.Int("level", level),
			zap.Int("position", placed.slot.Position),
		)
		return nil
	}
	if placed.reassigned() {
		g.logger.Warn("position conflict resolved",
			zap.String("participant_id", participantID),
			zap.Int("level", level),
			zap.Int("requested_position", position),
			zap.Int("position", placed.slot.Position),
		)
	}
	fx.touch(participantID)
	fx.emit(events.New(events.TypeParticipantPlaced, participantID, placementPayload{
		ParticipantID:     participantID,
		Level:             level,
		Position:          placed.slot.Position,
		RequestedPosition: position,
	}))
	return nil
}

// cascadeByPosition pays the level-1 cascade to the slot computed from the donor's position.
func (g *CascadeGenerator) cascadeByPosition(ctx context.Context, tx MatrixTx, fx *effects, participantID string, position int, rule models.LevelRule) error {
	target := models.CascadeReceiverPosition(position)
	slot, err := tx.SlotByPosition(ctx, rule.Level, target)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("position %d: %w", target, errNoCascadeSlot)
		}
		return err
	}
	if !slot.Occupied() {
		return fmt.Errorf("position %d is empty: %w", target, errNoCascadeSlot)
	}
	if slot.HeldBy(participantID) {
		return fmt.Errorf("position %d is the donor's own slot: %w", target, errNoCascadeSlot)
	}
	return g.create(ctx, tx, fx, models.NewDonation{
		DonorID:    participantID,
		ReceiverID: *slot.ParticipantID,
		Amount:     rule.SpilloverTotal,
		Type:       rule.SpilloverType,
		Notes:      fmt.Sprintf("cascade to position %d", target),
	})
}

// spread splits total into unit-sized donations paid to successive next receivers of level.
func (g *CascadeGenerator) spread(ctx context.Context, tx MatrixTx, fx *effects, participantID string, level int, total, unit decimal.Decimal, donationType models.DonationType, note string) error {
	slots, err := tx.SlotsByLevel(ctx, level)
	if err != nil {
		return err
	}
	index := NewReceiverIndex(level, slots, participantID)
	if index.Len() == 0 {
		return fmt.Errorf("level %d: %w", level, errNoReceiver)
	}
	for _, amount := range models.SplitAmount(total, unit) {
		receiver, _ := index.Next()
		if err := g.create(ctx, tx, fx, models.NewDonation{
			DonorID:    participantID,
			ReceiverID: *receiver.ParticipantID,
			Amount:     amount,
			Type:       donationType,
			Notes:      note,
		}); err != nil {
			return err
		}
	}
	return nil
}

// OnUpgradeConfirmed runs the package check for a level-3 upgrade that was just confirmed.
// The donor of that upgrade pays the package. A failure is skipped like any other step.
func (g *CascadeGenerator) OnUpgradeConfirmed(ctx context.Context, tx MatrixTx, donation *models.Donation, fx *effects) {
	g.run(ctx, tx, fx, donation.DonorID, 2, 0, stepPackage, func() error {
		return g.packageCheck(ctx, tx, fx, donation.DonorID)
	})
}

// packageCheck emits the package reinjection when the confirmed level-3 upgrades of the
// trailing window, the one just confirmed included, are a positive multiple of packageEvery.
// It runs once per confirmed upgrade, so each multiple fires once. The count is always
// recomputed from the ledger.
func (g *CascadeGenerator) packageCheck(ctx context.Context, tx MatrixTx, fx *effects, participantID string) error {
	count, err := tx.CountConfirmed(ctx, models.DonationTypeUpgradeN3, g.now().Add(-g.packageWindow))
	if err != nil {
		return err
	}
	if count == 0 || count%g.packageEvery != 0 {
		return nil
	}

	g.logger.Info("package reinjection triggered",
		zap.String("participant_id", participantID),
		zap.Int("confirmed_upgrades", count),
	)
	fx.emit(events.New(events.TypePackageTriggered, participantID, packagePayload{DonorID: participantID, ConfirmedCount: count}))

	rule, _ := models.RuleFor(2)
	return g.spread(ctx, tx, fx, participantID, rule.Level, models.PackageAmount, rule.UnitAmount, models.DonationTypeReinjectionN2, "package reinjection")
}

func (g *CascadeGenerator) create(ctx context.Context, tx MatrixTx, fx *effects, in models.NewDonation) error {
	donation, err := tx.CreateDonation(ctx, in)
	if err != nil {
		return err
	}
	fx.donationCreated(donation)
	return nil
}
