package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/donation-matrix-api/internal/dto"
	"github.com/noah-isme/donation-matrix-api/internal/models"
	appErrors "github.com/noah-isme/donation-matrix-api/pkg/errors"
)

const defaultDonorsPerReceiver = 3

// CycleBootstrap seeds the first wave of donations of a full level queue.
type CycleBootstrap struct {
	slotCount int
	logger    *zap.Logger
	now       func() time.Time
}

// NewCycleBootstrap constructs a bootstrap that requires exactly slotCount slots.
func NewCycleBootstrap(slotCount int, logger *zap.Logger) *CycleBootstrap {
	if slotCount <= 0 {
		slotCount = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CycleBootstrap{slotCount: slotCount, logger: logger, now: utcNow}
}

// Generate maps each receiver r to donorsPerReceiver consecutive donors: 3r-1..3r+1 with
// 1-based positions and 3r+1..3r+3 with 0-based positions (for three donors). A pair that
// already has an open donation is skipped, so re-running is harmless.
func (b *CycleBootstrap) Generate(ctx context.Context, tx MatrixTx, req dto.BootstrapCycleRequest, fx *effects) (*dto.BootstrapCycleResult, error) {
	rule, ok := models.RuleFor(req.Level)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown level %d", req.Level))
	}
	perReceiver := req.DonorsPerReceiver
	if perReceiver <= 0 {
		perReceiver = defaultDonorsPerReceiver
	}
	amount := req.Amount
	if !amount.IsPositive() {
		amount = rule.UnitAmount
	}
	donationType := req.Type
	if donationType == "" {
		donationType = models.DonationTypePull
	}
	if !donationType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown donation type %s", donationType))
	}
	var deadline *time.Time
	if req.DeadlineDays > 0 {
		d := b.now().AddDate(0, 0, req.DeadlineDays)
		deadline = &d
	}

	slots, err := tx.SlotsByLevel(ctx, req.Level)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load level queue")
	}
	if len(slots) != b.slotCount {
		return nil, appErrors.Clone(appErrors.ErrQueueNotFull, fmt.Sprintf("level %d has %d slots, exactly %d are required", req.Level, len(slots), b.slotCount))
	}

	byPosition := make(map[int]models.QueueSlot, len(slots))
	minPosition := slots[0].Position
	for _, s := range slots {
		byPosition[s.Position] = s
		if s.Position < minPosition {
			minPosition = s.Position
		}
	}
	zeroBased := minPosition == 0
	firstReceiver := 1
	if zeroBased {
		firstReceiver = 0
	}
	receivers := (len(slots) - 1) / perReceiver

	result := &dto.BootstrapCycleResult{Level: req.Level}
	for r := firstReceiver; r < firstReceiver+receivers; r++ {
		receiver, ok := byPosition[r]
		if !ok || !receiver.Occupied() {
			continue
		}
		result.ReceiversProcessed++

		for _, pos := range donorPositions(r, perReceiver, zeroBased) {
			donor, ok := byPosition[pos]
			if !ok || !donor.Occupied() {
				continue
			}
			donorID, receiverID := *donor.ParticipantID, *receiver.ParticipantID

			exists, err := tx.HasOpenDonation(ctx, donorID, receiverID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing donation")
			}
			if exists {
				result.SkippedExisting++
				continue
			}

			donation, err := tx.CreateDonation(ctx, models.NewDonation{
				DonorID:    donorID,
				ReceiverID: receiverID,
				Amount:     amount,
				Type:       donationType,
				Deadline:   deadline,
				Notes:      fmt.Sprintf("cycle bootstrap level %d", req.Level),
			})
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create bootstrap donation")
			}
			fx.donationCreated(donation)
			result.Created++
		}
	}

	b.logger.Info("cycle bootstrapped",
		zap.Int("level", req.Level),
		zap.Bool("zero_based", zeroBased),
		zap.Int("created", result.Created),
		zap.Int("skipped_existing", result.SkippedExisting),
		zap.Int("receivers_processed", result.ReceiversProcessed),
	)
	return result, nil
}

func donorPositions(receiver, perReceiver int, zeroBased bool) []int {
	start := perReceiver*receiver - 1
	if zeroBased {
		start = perReceiver*receiver + 1
	}
	positions := make([]int, perReceiver)
	for i := range positions {
		positions[i] = start + i
	}
	return positions
}
