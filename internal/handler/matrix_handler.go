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

type matrixService interface {
	GetParticipantProgress(ctx context.Context, participantID string) (*models.ParticipantProgress, error)
	AcceptUpgrade(ctx context.Context, req dto.AcceptUpgradeRequest) (*dto.AcceptUpgradeResult, error)
	BootstrapCycle(ctx context.Context, req dto.BootstrapCycleRequest) (*dto.BootstrapCycleResult, error)
}

// MatrixHandler exposes level progression endpoints.
type MatrixHandler struct {
	service matrixService
}

// NewMatrixHandler builds a new handler.
func NewMatrixHandler(service matrixService) *MatrixHandler {
	return &MatrixHandler{service: service}
}

// Progress godoc
// @Summary Per-level progress of a participant
// @Tags Matrix
// @Produce json
// @Param participantId path string true "Participant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /matrix/progress/{participantId} [get]
func (h *MatrixHandler) Progress(c *gin.Context) {
	progress, err := h.service.GetParticipantProgress(c.Request.Context(), c.Param("participantId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// AcceptUpgrade godoc
// @Summary Advance a participant one level in position order
// @Tags Matrix
// @Accept json
// @Produce json
// @Param payload body dto.AcceptUpgradeRequest true "Upgrade payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /matrix/upgrades [post]
func (h *MatrixHandler) AcceptUpgrade(c *gin.Context) {
	claims := claimsFromContext(c)
	var req dto.AcceptUpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upgrade payload"))
		return
	}
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if !claims.IsAdmin() && claims.UserID != req.ParticipantID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "participants may only accept their own upgrade"))
		return
	}
	result, err := h.service.AcceptUpgrade(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BootstrapCycle godoc
// @Summary Seed the first donations of a full level queue
// @Tags Matrix
// @Accept json
// @Produce json
// @Param payload body dto.BootstrapCycleRequest true "Bootstrap payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /matrix/cycles [post]
func (h *MatrixHandler) BootstrapCycle(c *gin.Context) {
	var req dto.BootstrapCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bootstrap payload"))
		return
	}
	result, err := h.service.BootstrapCycle(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
