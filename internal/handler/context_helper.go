package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/donation-matrix-api/internal/middleware"
	"github.com/noah-isme/donation-matrix-api/internal/models"
	appErrors "github.com/noah-isme/donation-matrix-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func levelParam(c *gin.Context) (int, error) {
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil || !models.ValidLevel(level) {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "level must be 1, 2 or 3")
	}
	return level, nil
}
