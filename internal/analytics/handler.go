package analytics

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/pkg/response"
)

// Handler handles GET /api/events/:id/summary.
type Handler struct {
	reader engagement.Reader
}

// NewHandler creates an analytics handler.
func NewHandler(reader engagement.Reader) *Handler {
	return &Handler{reader: reader}
}

// GetByEvent handles GET /api/events/:id/summary.
func (h *Handler) GetByEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	s, err := Summarize(c.Request.Context(), h.reader, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, s)
}
