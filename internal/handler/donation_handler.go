package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/donation-matrix-api/internal/dto"
	"github.com/noah-isme/donation-matrix-api/internal/models"
	appErrors "github.com/noah-isme/donation-matrix-api/pkg/errors"
	"github.com/noah-isme/donation-matrix-api/pkg/response"
)

type donationService interface {
	SubmitReceipt(ctx context.Context, donationID, donorID string, req dto.SubmitReceiptRequest) (*models.Donation, error)
	Confirm(ctx context.Context, donationID string, actor *models.JWTClaims) (*models.Donation, error)
	Cancel(ctx context.Context, donationID string) (*models.Donation, error)
	Expire(ctx context.Context, donationID string) (*models.Donation, error)
	ToSend(ctx context.Context, participantID string, query dto.DonationListQuery) ([]models.Donation, *models.Pagination, error)
	ToReceive(ctx context.Context, participantID string, query dto.DonationListQuery) ([]models.Donation, *models.Pagination, error)
	History(ctx context.Context, participantID string, query dto.DonationListQuery) ([]models.Donation, *models.Pagination, error)
	Stats(ctx context.Context, participantID string) (*models.DonationStats, error)
}

// DonationHandler exposes the donation lifecycle endpoints.
type DonationHandler struct {
	service donationService
}

// NewDonationHandler builds a new handler.
func NewDonationHandler(service donationService) *DonationHandler {
	return &DonationHandler{service: service}
}

// ToSend godoc
// @Summary Open donations the caller owes
// @Tags Donations
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /donations/to-send [get]
func (h *DonationHandler) ToSend(c *gin.Context) {
	h.list(c, h.service.ToSend)
}

// ToReceive godoc
// @Summary Open donations owed to the caller
// @Tags Donations
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /donations/to-receive [get]
func (h *DonationHandler) ToReceive(c *gin.Context) {
	h.list(c, h.service.ToReceive)
}

// History godoc
// @Summary Every donation the caller sent or received
// @Tags Donations
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /donations/history [get]
func (h *DonationHandler) History(c *gin.Context) {
	h.list(c, h.service.History)
}

func (h *DonationHandler) list(c *gin.Context, fetch func(context.Context, string, dto.DonationListQuery) ([]models.Donation, *models.Pagination, error)) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.DonationListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid pagination"))
		return
	}
	items, pagination, err := fetch(c.Request.Context(), claims.UserID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Stats godoc
// @Summary Totals and pending counts of the caller
// @Tags Donations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /donations/stats [get]
func (h *DonationHandler) Stats(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// SubmitReceipt godoc
// @Summary Attach a payment receipt
// @Tags Donations
// @Accept json
// @Produce json
// @Param id path string true "Donation ID"
// @Param payload body dto.SubmitReceiptRequest true "Receipt reference"
// @Success 200 {object} response.Envelope
// @Router /donations/{id}/receipt [post]
func (h *DonationHandler) SubmitReceipt(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid receipt payload"))
		return
	}
	donation, err := h.service.SubmitReceipt(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, donation, nil)
}

// Confirm godoc
// @Summary Confirm receipt of a donation
// @Tags Donations
// @Produce json
// @Param id path string true "Donation ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /donations/{id}/confirm [patch]
func (h *DonationHandler) Confirm(c *gin.Context) {
	donation, err := h.service.Confirm(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, donation, nil)
}

// Cancel godoc
// @Summary Cancel a pending donation
// @Tags Donations
// @Produce json
// @Param id path string true "Donation ID"
// @Success 200 {object} response.Envelope
// @Router /donations/{id}/cancel [patch]
func (h *DonationHandler) Cancel(c *gin.Context) {
	donation, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, donation, nil)
}

// Expire godoc
// @Summary Expire a pending donation
// @Tags Donations
// @Produce json
// @Param id path string true "Donation ID"
// @Success 200 {object} response.Envelope
// @Router /donations/{id}/expire [patch]
func (h *DonationHandler) Expire(c *gin.Context) {
	donation, err := h.service.Expire(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, donation, nil)
}
