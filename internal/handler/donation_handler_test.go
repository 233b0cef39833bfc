package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/donation-matrix-api/internal/dto"
	"github.com/noah-isme/donation-matrix-api/internal/models"
	appErrors "github.com/noah-isme/donation-matrix-api/pkg/errors"
)

type donationServiceMock struct {
	donation    *models.Donation
	items       []models.Donation
	stats       *models.DonationStats
	err         error
	lastID      string
	lastDonor   string
	lastUser    string
	lastQuery   dto.DonationListQuery
	lastReceipt dto.SubmitReceiptRequest
	lastActor   *models.JWTClaims
	called      string
}

func (m *donationServiceMock) SubmitReceipt(ctx context.Context, donationID, donorID string, req dto.SubmitReceiptRequest) (*models.Donation, error) {
	m.called, m.lastID, m.lastDonor, m.lastReceipt = "SubmitReceipt", donationID, donorID, req
	return m.donation, m.err
}

func (m *donationServiceMock) Confirm(ctx context.Context, donationID string, actor *models.JWTClaims) (*models.Donation, error) {
	m.called, m.lastID, m.lastActor = "Confirm", donationID, actor
	return m.donation, m.err
}

func (m *donationServiceMock) Cancel(ctx context.Context, donationID string) (*models.Donation, error) {
	m.called, m.lastID = "Cancel", donationID
	return m.donation, m.err
}

func (m *donationServiceMock) Expire(ctx context.Context, donationID string) (*models.Donation, error) {
	m.called, m.lastID = "Expire", donationID
	return m.donation, m.err
}

func (m *donationServiceMock) ToSend(ctx context.Context, participantID string, query dto.DonationListQuery) ([]models.Donation, *models.Pagination, error) {
	m.called, m.lastUser, m.lastQuery = "ToSend", participantID, query
	return m.items, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.items)}, m.err
}

func (m *donationServiceMock) ToReceive(ctx context.Context, participantID string, query dto.DonationListQuery) ([]models.Donation, *models.Pagination, error) {
	m.called, m.lastUser, m.lastQuery = "ToReceive", participantID, query
	return m.items, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.items)}, m.err
}

func (m *donationServiceMock) History(ctx context.Context, participantID string, query dto.DonationListQuery) ([]models.Donation, *models.Pagination, error) {
	m.called, m.lastUser, m.lastQuery = "History", participantID, query
	return m.items, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.items)}, m.err
}

func (m *donationServiceMock) Stats(ctx context.Context, participantID string) (*models.DonationStats, error) {
	m.called, m.lastUser = "Stats", participantID
	return m.stats, m.err
}

var participantClaims = &models.JWTClaims{UserID: "u001", Role: models.RoleParticipant}

func TestDonationHandlerLists(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &donationServiceMock{items: []models.Donation{{ID: "don-1"}}}
	handler := NewDonationHandler(mockSvc)

	c, w := jsonContext(t, http.MethodGet, "/donations/to-send?page=2&page_size=5", nil, participantClaims)
	handler.ToSend(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ToSend", mockSvc.called)
	assert.Equal(t, "u001", mockSvc.lastUser)
	assert.Equal(t, dto.DonationListQuery{Page: 2, PageSize: 5}, mockSvc.lastQuery)
	assert.Contains(t, w.Body.String(), `"pagination"`)

	c, w = jsonContext(t, http.MethodGet, "/donations/to-receive", nil, participantClaims)
	handler.ToReceive(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ToReceive", mockSvc.called)

	c, w = jsonContext(t, http.MethodGet, "/donations/history?page=3", nil, participantClaims)
	handler.History(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "History", mockSvc.called)
	assert.Equal(t, "u001", mockSvc.lastUser)
	assert.Equal(t, dto.DonationListQuery{Page: 3}, mockSvc.lastQuery)
	assert.Contains(t, w.Body.String(), `"don-1"`)
}

func TestDonationHandlerListsRequireCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &donationServiceMock{}
	handler := NewDonationHandler(mockSvc)

	c, w := jsonContext(t, http.MethodGet, "/donations/stats", nil, nil)
	handler.Stats(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, mockSvc.called)
}

func TestDonationHandlerListsRejectBadPage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &donationServiceMock{}
	handler := NewDonationHandler(mockSvc)

	c, w := jsonContext(t, http.MethodGet, "/donations/to-send?page=first", nil, participantClaims)
	handler.ToSend(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mockSvc.called)
}

func TestDonationHandlerSubmitReceipt(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &donationServiceMock{donation: &models.Donation{ID: "don-1", Status: models.DonationStatusPendingConfirmation}}
	handler := NewDonationHandler(mockSvc)

	c, w := jsonContext(t, http.MethodPost, "/donations/don-1/receipt", dto.SubmitReceiptRequest{ReceiptRef: "rcpt-1"}, participantClaims)
	c.Params = gin.Params{{Key: "id", Value: "don-1"}}

	handler.SubmitReceipt(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "don-1", mockSvc.lastID)
	assert.Equal(t, "u001", mockSvc.lastDonor)
	assert.Equal(t, "rcpt-1", mockSvc.lastReceipt.ReceiptRef)
}

func TestDonationHandlerConfirmPassesCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &donationServiceMock{donation: &models.Donation{ID: "don-1", Status: models.DonationStatusConfirmed}}
	handler := NewDonationHandler(mockSvc)

	c, w := jsonContext(t, http.MethodPatch, "/donations/don-1/confirm", nil, participantClaims)
	c.Params = gin.Params{{Key: "id", Value: "don-1"}}

	handler.Confirm(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Same(t, participantClaims, mockSvc.lastActor)
}

func TestDonationHandlerConfirmAlreadyProcessed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDonationHandler(&donationServiceMock{err: appErrors.ErrInvalidTransition})

	c, w := jsonContext(t, http.MethodPatch, "/donations/don-1/confirm", nil, participantClaims)
	c.Params = gin.Params{{Key: "id", Value: "don-1"}}

	handler.Confirm(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestDonationHandlerCancelAndExpire(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &donationServiceMock{donation: &models.Donation{ID: "don-2"}}
	handler := NewDonationHandler(mockSvc)

	c, w := jsonContext(t, http.MethodPatch, "/donations/don-2/cancel", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "don-2"}}
	handler.Cancel(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Cancel", mockSvc.called)

	c, w = jsonContext(t, http.MethodPatch, "/donations/don-2/expire", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "don-2"}}
	handler.Expire(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Expire", mockSvc.called)
}
