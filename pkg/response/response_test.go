package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nybble-vibe/backend/internal/engagement"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(engagement.KindNotFound))
	assert.Equal(t, http.StatusConflict, StatusFor(engagement.KindInvalidTransition))
	assert.Equal(t, http.StatusConflict, StatusFor(engagement.KindConflictOnWrite))
	assert.Equal(t, http.StatusPreconditionFailed, StatusFor(engagement.KindPreconditionFailed))
	assert.Equal(t, http.StatusBadRequest, StatusFor(engagement.KindInvalidInput))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(""))
}

func render(err error) (*httptest.ResponseRecorder, Body) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Error(c, err)
	var b Body
	_ = json.Unmarshal(w.Body.Bytes(), &b)
	return w, b
}

func TestErrorUsesDomainKind(t *testing.T) {
	w, b := render(fmt.Errorf("apply vote: %w", engagement.NotFound("poll")))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, b.Success)
	assert.Equal(t, "poll not found", b.Error)
	assert.Equal(t, "not_found", b.Code)
}

func TestErrorHidesInternalDetails(t *testing.T) {
	w, b := render(errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", b.Error)
	assert.Empty(t, b.Code)
}
