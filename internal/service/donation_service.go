package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/donation-matrix-api/internal/dto"
	"github.com/noah-isme/donation-matrix-api/internal/events"
	"github.com/noah-isme/donation-matrix-api/internal/models"
	appErrors "github.com/noah-isme/donation-matrix-api/pkg/errors"
)

type donationRepository interface {
	GetDonation(ctx context.Context, id string) (*models.Donation, error)
	AttachReceipt(ctx context.Context, id, receiptRef string, at time.Time) (bool, error)
	TransitionStatus(ctx context.Context, id string, from, to models.DonationStatus, at time.Time) (bool, error)
	ListDonations(ctx context.Context, filter models.DonationFilter) ([]models.Donation, int, error)
	DonationStats(ctx context.Context, participantID string) (*models.DonationStats, error)
}

type donationConfirmer interface {
	ConfirmDonation(ctx context.Context, donationID, confirmerID string) (*models.Donation, error)
}

// DonationService drives the donation lifecycle around the matrix engine.
type DonationService struct {
	repo      donationRepository
	engine    donationConfirmer
	publisher events.Publisher
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewDonationService constructs a donation service.
func NewDonationService(repo donationRepository, engine donationConfirmer, publisher events.Publisher, validate *validator.Validate, logger *zap.Logger) *DonationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &DonationService{repo: repo, engine: engine, publisher: publisher, validator: validate, logger: logger, now: utcNow}
}

// SubmitReceipt attaches the donor's payment receipt and hands the donation to the receiver.
func (s *DonationService) SubmitReceipt(ctx context.Context, donationID, donorID string, req dto.SubmitReceiptRequest) (*models.Donation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid receipt payload")
	}
	donation, err := s.load(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if donation.DonorID != donorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the donor can submit a receipt")
	}
	if donation.Status != models.DonationStatusPendingPayment {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("donation is %s, not awaiting payment", donation.Status))
	}

	at := s.now()
	changed, err := s.repo.AttachReceipt(ctx, donation.ID, req.ReceiptRef, at)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach receipt")
	}
	if !changed {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "donation was already processed")
	}
	ref := req.ReceiptRef
	donation.ReceiptRef = &ref
	donation.Status = models.DonationStatusPendingConfirmation
	donation.UpdatedAt = at
	s.publish(ctx, donation)
	return donation, nil
}

// Confirm lets the receiver confirm payment. Admins confirm on anyone's behalf.
func (s *DonationService) Confirm(ctx context.Context, donationID string, actor *models.JWTClaims) (*models.Donation, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	confirmer := actor.UserID
	if actor.IsAdmin() {
		confirmer = ""
	}
	return s.engine.ConfirmDonation(ctx, donationID, confirmer)
}

// Cancel withdraws a pending donation.
func (s *DonationService) Cancel(ctx context.Context, donationID string) (*models.Donation, error) {
	return s.close(ctx, donationID, models.DonationStatusCancelled)
}

// Expire marks a pending donation as expired.
func (s *DonationService) Expire(ctx context.Context, donationID string) (*models.Donation, error) {
	return s.close(ctx, donationID, models.DonationStatusExpired)
}

// ToSend lists the participant's open donations as donor.
func (s *DonationService) ToSend(ctx context.Context, participantID string, query dto.DonationListQuery) ([]models.Donation, *models.Pagination, error) {
	return s.list(ctx, models.DonationFilter{DonorID: participantID, Statuses: models.PendingStatuses}, query)
}

// ToReceive lists the participant's open donations as receiver.
func (s *DonationService) ToReceive(ctx context.Context, participantID string, query dto.DonationListQuery) ([]models.Donation, *models.Pagination, error) {
	return s.list(ctx, models.DonationFilter{ReceiverID: participantID, Statuses: models.PendingStatuses}, query)
}

// History lists every donation the participant sent or received, in any status.
func (s *DonationService) History(ctx context.Context, participantID string, query dto.DonationListQuery) ([]models.Donation, *models.Pagination, error) {
	return s.list(ctx, models.DonationFilter{ParticipantID: participantID}, query)
}

// Stats summarises the participant's ledger position.
func (s *DonationService) Stats(ctx context.Context, participantID string) (*models.DonationStats, error) {
	stats, err := s.repo.DonationStats(ctx, participantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load donation stats")
	}
	return stats, nil
}

func (s *DonationService) close(ctx context.Context, donationID string, to models.DonationStatus) (*models.Donation, error) {
	donation, err := s.load(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if !donation.Status.CanTransitionTo(to) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("donation is %s and cannot become %s", donation.Status, to))
	}

	at := s.now()
	changed, err := s.repo.TransitionStatus(ctx, donation.ID, donation.Status, to, at)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update donation")
	}
	if !changed {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "donation was already processed")
	}
	s.logger.Info("donation closed",
		zap.String("donation_id", donation.ID),
		zap.String("from", string(donation.Status)),
		zap.String("to", string(to)),
	)
	donation.Status = to
	donation.UpdatedAt = at
	s.publish(ctx, donation)
	return donation, nil
}

func (s *DonationService) list(ctx context.Context, filter models.DonationFilter, query dto.DonationListQuery) ([]models.Donation, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid pagination")
	}
	page, size := query.Page, query.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	filter.Page, filter.PageSize = page, size

	donations, total, err := s.repo.ListDonations(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list donations")
	}
	return donations, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *DonationService) load(ctx context.Context, donationID string) (*models.Donation, error) {
	donation, err := s.repo.GetDonation(ctx, donationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "donation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load donation")
	}
	return donation, nil
}

func (s *DonationService) publish(ctx context.Context, donation *models.Donation) {
	if err := s.publisher.Publish(ctx, events.New(events.TypeDonationUpdated, donation.ID, donation)); err != nil {
		s.logger.Warn("publish donation event failed", zap.String("donation_id", donation.ID), zap.Error(err))
	}
}
