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

type queueService interface {
	List(ctx context.Context, level int) ([]models.QueueSlot, error)
	Stats(ctx context.Context, level int) (*models.QueueStats, error)
	ListByParticipant(ctx context.Context, participantID string) ([]models.QueueSlot, error)
	Join(ctx context.Context, level int, req dto.JoinQueueRequest) (*models.QueueSlot, error)
	Leave(ctx context.Context, participantID string, level int) error
	Remove(ctx context.Context, slotID string) error
	Reorder(ctx context.Context, level int, req dto.ReorderQueueRequest) ([]models.QueueSlot, error)
	Swap(ctx context.Context, req dto.SwapPositionsRequest) ([]models.QueueSlot, error)
}

// QueueHandler exposes level queue endpoints.
type QueueHandler struct {
	service queueService
}

// NewQueueHandler builds a new handler.
func NewQueueHandler(service queueService) *QueueHandler {
	return &QueueHandler{service: service}
}

// List godoc
// @Summary List the slots of a level
// @Tags Queues
// @Produce json
// @Param level path int true "Level (1-3)"
// @Success 200 {object} response.Envelope
// @Router /queues/{level} [get]
func (h *QueueHandler) List(c *gin.Context) {
	level, err := levelParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	slots, err := h.service.List(c.Request.Context(), level)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Stats godoc
// @Summary Level queue statistics including the next receiver
// @Tags Queues
// @Produce json
// @Param level path int true "Level (1-3)"
// @Success 200 {object} response.Envelope
// @Router /queues/{level}/stats [get]
func (h *QueueHandler) Stats(c *gin.Context) {
	level, err := levelParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), level)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Mine godoc
// @Summary Slots held by the caller
// @Tags Queues
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /queues/me [get]
func (h *QueueHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	slots, err := h.service.ListByParticipant(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Join godoc
// @Summary Place a participant at a position
// @Tags Queues
// @Accept json
// @Produce json
// @Param level path int true "Level (1-3)"
// @Param payload body dto.JoinQueueRequest true "Join payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /queues/{level}/join [post]
func (h *QueueHandler) Join(c *gin.Context) {
	level, err := levelParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.JoinQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid join payload"))
		return
	}
	slot, err := h.service.Join(c.Request.Context(), level, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// Leave godoc
// @Summary Leave a level queue
// @Tags Queues
// @Param level path int true "Level (1-3)"
// @Success 204
// @Router /queues/{level}/leave [delete]
func (h *QueueHandler) Leave(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	level, err := levelParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Leave(c.Request.Context(), claims.UserID, level); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Remove godoc
// @Summary Vacate a slot
// @Tags Queues
// @Param id path string true "Slot ID"
// @Success 204
// @Router /queues/slots/{id} [delete]
func (h *QueueHandler) Remove(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reorder godoc
// @Summary Reassign every position of a level
// @Tags Queues
// @Accept json
// @Produce json
// @Param level path int true "Level (1-3)"
// @Param payload body dto.ReorderQueueRequest true "New positions"
// @Success 200 {object} response.Envelope
// @Router /queues/{level}/reorder [patch]
func (h *QueueHandler) Reorder(c *gin.Context) {
	level, err := levelParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ReorderQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reorder payload"))
		return
	}
	slots, err := h.service.Reorder(c.Request.Context(), level, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Swap godoc
// @Summary Swap two participants in every shared level
// @Tags Queues
// @Accept json
// @Produce json
// @Param payload body dto.SwapPositionsRequest true "Participants"
// @Success 200 {object} response.Envelope
// @Router /queues/swap [patch]
func (h *QueueHandler) Swap(c *gin.Context) {
	var req dto.SwapPositionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid swap payload"))
		return
	}
	slots, err := h.service.Swap(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}
