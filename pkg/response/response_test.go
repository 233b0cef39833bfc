package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/donation-matrix-api/internal/models"
	appErrors "github.com/noah-isme/donation-matrix-api/pkg/errors"
	"github.com/noah-isme/donation-matrix-api/pkg/middleware/requestid"
)

func TestJSONWritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	JSON(c, http.StatusOK, []string{"a"}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []interface{}{"a"}, body["data"])
	assert.EqualValues(t, 1, body["pagination"].(map[string]interface{})["total_count"])
}

func TestErrorCarriesCodeAndRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, r := gin.CreateTestContext(w)
	r.Use(requestid.Middleware())
	r.GET("/", func(ctx *gin.Context) {
		Error(ctx, appErrors.Clone(appErrors.ErrUpgradeOutOfOrder, "position 5 has not advanced"))
	})
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set(requestid.Header, "req-1")
	r.HandleContext(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Error     appErrors.Error `json:"error"`
		RequestID string          `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "UPGRADE_OUT_OF_ORDER", body.Error.Code)
	assert.Equal(t, "req-1", body.RequestID)
}

func TestErrorWrapsUnknownErrorsAsInternal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}
