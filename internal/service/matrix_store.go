package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/donation-matrix-api/internal/models"
	"github.com/noah-isme/donation-matrix-api/internal/repository"
)

type slotStore interface {
	SlotsByLevel(ctx context.Context, level int) ([]models.QueueSlot, error)
	SlotsByParticipant(ctx context.Context, participantID string) ([]models.QueueSlot, error)
	SlotByParticipant(ctx context.Context, participantID string, level int) (*models.QueueSlot, error)
	SlotByPosition(ctx context.Context, level, position int) (*models.QueueSlot, error)
	SlotByID(ctx context.Context, id string) (*models.QueueSlot, error)
	InsertSlot(ctx context.Context, slot *models.QueueSlot) error
	AssignParticipant(ctx context.Context, slotID, participantID string, required int) error
	UpdateSlotCounters(ctx context.Context, slotID string, received int, total decimal.Decimal) error
	MarkLevelCompleted(ctx context.Context, slotID string, at time.Time) (bool, error)
	ClearParticipant(ctx context.Context, slotID string) error
	SetPositions(ctx context.Context, level int, moves []models.SlotPosition) error
	QueueStats(ctx context.Context, level int) (*models.QueueStats, error)
}

type donationLedger interface {
	CreateDonation(ctx context.Context, in models.NewDonation) (*models.Donation, error)
	GetDonation(ctx context.Context, id string) (*models.Donation, error)
	GetDonationForUpdate(ctx context.Context, id string) (*models.Donation, error)
	TransitionStatus(ctx context.Context, id string, from, to models.DonationStatus, at time.Time) (bool, error)
	AttachReceipt(ctx context.Context, id, receiptRef string, at time.Time) (bool, error)
	FindPending(ctx context.Context, donorID string, types []models.DonationType) ([]models.Donation, error)
	CountConfirmed(ctx context.Context, donationType models.DonationType, since time.Time) (int, error)
	HasOpenDonation(ctx context.Context, donorID, receiverID string) (bool, error)
}

type participantDirectory interface {
	GetParticipant(ctx context.Context, id string) (*models.Participant, error)
	ParticipantsByIDs(ctx context.Context, ids []string) ([]models.Participant, error)
	GetCurrentLevel(ctx context.Context, id string) (int, error)
	SetCurrentLevel(ctx context.Context, id string, level int) error
	MarkReentryEligible(ctx context.Context, id string, at time.Time) error
	EnsureParticipant(ctx context.Context, id string) error
}

// MatrixTx is the transactional view every mutating matrix operation works against.
type MatrixTx interface {
	slotStore
	donationLedger
	participantDirectory

	// LockLevels serialises writers per level; levels are always locked in ascending order.
	LockLevels(ctx context.Context, levels ...int) error
	// Savepoint undoes only fn's writes when fn fails.
	Savepoint(ctx context.Context, fn func() error) error
}

// TxRunner opens matrix transactions.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx MatrixTx) error) error
}

type sqlTxRunner struct {
	store *repository.MatrixStore
}

// NewSQLTxRunner adapts the Postgres-backed store to TxRunner.
func NewSQLTxRunner(store *repository.MatrixStore) TxRunner {
	return sqlTxRunner{store: store}
}

func (r sqlTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, tx MatrixTx) error) error {
	return r.store.RunInTx(ctx, func(ctx context.Context, tx *repository.MatrixTx) error {
		return fn(ctx, tx)
	})
}

// confirmationLevels lists the levels a confirmation may write to. A confirmed level-3
// upgrade can trigger the package reinjection into level 2.
func confirmationLevels(donation *models.Donation) []int {
	level := models.LevelByAmount(donation.Amount)
	if donation.Type == models.DonationTypeUpgradeN3 && level > 2 {
		return append([]int{2}, levelsFrom(level)...)
	}
	return levelsFrom(level)
}

func levelsFrom(level int) []int {
	if level >= models.MaxLevel {
		return []int{level}
	}
	return []int{level, level + 1}
}
