package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/donation-matrix-api/internal/dto"
	"github.com/noah-isme/donation-matrix-api/internal/events"
	"github.com/noah-isme/donation-matrix-api/internal/models"
	appErrors "github.com/noah-isme/donation-matrix-api/pkg/errors"
)

type donationStoreStub struct {
	*fakeMatrixStore
	lastFilter models.DonationFilter
	stats      *models.DonationStats
}

func (s *donationStoreStub) ListDonations(_ context.Context, filter models.DonationFilter) ([]models.Donation, int, error) {
	s.lastFilter = filter
	var out []models.Donation
	for _, d := range s.donations {
		if filter.DonorID != "" && d.DonorID != filter.DonorID {
			continue
		}
		if filter.ReceiverID != "" && d.ReceiverID != filter.ReceiverID {
			continue
		}
		if filter.ParticipantID != "" && d.DonorID != filter.ParticipantID && d.ReceiverID != filter.ParticipantID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, d.Status) {
			continue
		}
		out = append(out, d)
	}
	return out, len(out), nil
}

func hasStatus(statuses []models.DonationStatus, status models.DonationStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s *donationStoreStub) DonationStats(context.Context, string) (*models.DonationStats, error) {
	return s.stats, nil
}

type confirmerStub struct {
	donationID string
	confirmer  string
}

func (c *confirmerStub) ConfirmDonation(_ context.Context, donationID, confirmerID string) (*models.Donation, error) {
	c.donationID, c.confirmer = donationID, confirmerID
	return &models.Donation{ID: donationID, Status: models.DonationStatusConfirmed}, nil
}

func newTestDonationService() (*DonationService, *donationStoreStub, *confirmerStub, *recordingPublisher) {
	store := &donationStoreStub{fakeMatrixStore: newFakeMatrixStore(engineNow), stats: &models.DonationStats{PendingToSend: 2}}
	confirmer := &confirmerStub{}
	publisher := &recordingPublisher{}
	svc := NewDonationService(store, confirmer, publisher, nil, zap.NewNop())
	svc.now = func() time.Time { return engineNow }
	return svc, store, confirmer, publisher
}

func TestSubmitReceipt(t *testing.T) {
	svc, store, _, publisher := newTestDonationService()
	d := store.seedDonation("donor", "receiver", 100, models.DonationTypePull, models.DonationStatusPendingPayment)
	ctx := context.Background()

	_, err := svc.SubmitReceipt(ctx, d.ID, "receiver", dto.SubmitReceiptRequest{ReceiptRef: "r-1"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.Code(err))

	_, err = svc.SubmitReceipt(ctx, d.ID, "donor", dto.SubmitReceiptRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.Code(err))

	updated, err := svc.SubmitReceipt(ctx, d.ID, "donor", dto.SubmitReceiptRequest{ReceiptRef: "r-1"})
	require.NoError(t, err)
	assert.Equal(t, models.DonationStatusPendingConfirmation, updated.Status)
	assert.Equal(t, "r-1", *store.donations[d.ID].ReceiptRef)
	assert.Len(t, publisher.ofType(events.TypeDonationUpdated), 1)

	_, err = svc.SubmitReceipt(ctx, d.ID, "donor", dto.SubmitReceiptRequest{ReceiptRef: "r-2"})
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.Code(err))

	_, err = svc.SubmitReceipt(ctx, "missing", "donor", dto.SubmitReceiptRequest{ReceiptRef: "r-2"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.Code(err))
}

func TestConfirmDelegatesWithReceiverCheck(t *testing.T) {
	svc, _, confirmer, _ := newTestDonationService()
	ctx := context.Background()

	_, err := svc.Confirm(ctx, "don-1", &models.JWTClaims{UserID: "receiver", Role: models.RoleParticipant})
	require.NoError(t, err)
	assert.Equal(t, "receiver", confirmer.confirmer)

	_, err = svc.Confirm(ctx, "don-1", &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Empty(t, confirmer.confirmer)

	_, err = svc.Confirm(ctx, "don-1", nil)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.Code(err))
}

func TestCancelAndExpire(t *testing.T) {
	svc, store, _, _ := newTestDonationService()
	ctx := context.Background()
	pending := store.seedDonation("donor", "receiver", 100, models.DonationTypePull, models.DonationStatusPendingConfirmation)
	unpaid := store.seedDonation("donor", "receiver", 100, models.DonationTypePull, models.DonationStatusPendingPayment)
	done := store.seedDonation("donor", "receiver", 100, models.DonationTypePull, models.DonationStatusConfirmed)

	cancelled, err := svc.Cancel(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DonationStatusCancelled, cancelled.Status)
	assert.Equal(t, models.DonationStatusCancelled, store.donations[pending.ID].Status)

	expired, err := svc.Expire(ctx, unpaid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DonationStatusExpired, expired.Status)

	_, err = svc.Cancel(ctx, done.ID)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.Code(err))
	_, err = svc.Expire(ctx, pending.ID)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.Code(err))
}

func TestDonationListings(t *testing.T) {
	svc, store, _, _ := newTestDonationService()
	ctx := context.Background()
	store.seedDonation("me", "x", 100, models.DonationTypePull, models.DonationStatusPendingPayment)
	store.seedDonation("y", "me", 100, models.DonationTypePull, models.DonationStatusPendingConfirmation)
	store.seedDonation("me", "z", 100, models.DonationTypePull, models.DonationStatusConfirmed)

	toSend, page, err := svc.ToSend(ctx, "me", dto.DonationListQuery{})
	require.NoError(t, err)
	assert.Len(t, toSend, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, models.PendingStatuses, store.lastFilter.Statuses)

	toReceive, _, err := svc.ToReceive(ctx, "me", dto.DonationListQuery{Page: 2, PageSize: 5})
	require.NoError(t, err)
	assert.Len(t, toReceive, 1)
	assert.Equal(t, 2, store.lastFilter.Page)
	assert.Equal(t, "me", store.lastFilter.ReceiverID)

	_, _, err = svc.ToSend(ctx, "me", dto.DonationListQuery{PageSize: 500})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.Code(err))

	stats, err := svc.Stats(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PendingToSend)
}

func TestDonationHistoryCoversBothSidesInAnyStatus(t *testing.T) {
	svc, store, _, _ := newTestDonationService()
	ctx := context.Background()
	store.seedDonation("me", "x", 100, models.DonationTypePull, models.DonationStatusConfirmed)
	store.seedDonation("y", "me", 200, models.DonationTypeUpgradeN2, models.DonationStatusCancelled)
	store.seedDonation("me", "z", 100, models.DonationTypePull, models.DonationStatusPendingPayment)
	store.seedDonation("y", "x", 100, models.DonationTypePull, models.DonationStatusConfirmed)

	history, page, err := svc.History(ctx, "me", dto.DonationListQuery{PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, history, 3)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 10, page.PageSize)
	assert.Equal(t, "me", store.lastFilter.ParticipantID)
	assert.Empty(t, store.lastFilter.Statuses)
	assert.Empty(t, store.lastFilter.DonorID)
	assert.Empty(t, store.lastFilter.ReceiverID)

	_, _, err = svc.History(ctx, "me", dto.DonationListQuery{Page: -1})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.Code(err))
}
