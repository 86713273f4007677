package events

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/models"
	"github.com/nybble-vibe/backend/pkg/response"
	"github.com/nybble-vibe/backend/pkg/storage"
	"github.com/nybble-vibe/backend/pkg/utils"
)

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// AgendaItemRequest is one agenda slot of a CreateRequest.
type AgendaItemRequest struct {
	Title     string `json:"title" binding:"required"`
	Duration  int    `json:"duration" binding:"min=0"`
	Presenter string `json:"presenter"`
}

// CreateRequest is the body for POST /api/events.
type CreateRequest struct {
	Title       string                `json:"title" binding:"required"`
	Description string                `json:"description"`
	StartTime   string                `json:"start_time" binding:"required"`
	EndTime     string                `json:"end_time" binding:"required"`
	MeetingURL  string                `json:"meeting_url"`
	Settings    *models.EventSettings `json:"settings"`
	AgendaItems []AgendaItemRequest   `json:"agenda_items" binding:"dive"`
}

// PhaseRequest is the body for PATCH /api/events/:id/phase.
type PhaseRequest struct {
	Phase models.Phase `json:"phase" binding:"required,oneof=pre live post closed"`
}

// ReportLocator resolves the archived report of a closed event. Implemented by *storage.S3.
type ReportLocator interface {
	ReportURL(ctx context.Context, eventID string) (string, error)
}

// Handler handles event HTTP endpoints.
type Handler struct {
	coord   *engagement.Coordinator
	reader  engagement.Reader
	reports ReportLocator
}

// NewHandler creates an event handler. reports may be nil when S3 is not configured.
func NewHandler(coord *engagement.Coordinator, reader engagement.Reader, reports ReportLocator) *Handler {
	return &Handler{coord: coord, reader: reader, reports: reports}
}

// Create handles POST /api/events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	start, err := parseTime(req.StartTime)
	if err != nil {
		response.BadRequest(c, "invalid start_time")
		return
	}
	end, err := parseTime(req.EndTime)
	if err != nil {
		response.BadRequest(c, "invalid end_time")
		return
	}

	in := engagement.NewEvent{
		Title:       utils.CleanText(req.Title),
		Description: utils.CleanText(req.Description),
		StartTime:   start,
		EndTime:     end,
		MeetingURL:  req.MeetingURL,
		Settings:    req.Settings,
	}
	for i, item := range req.AgendaItems {
		in.Agenda = append(in.Agenda, engagement.NewAgendaItem{
			Title:     utils.CleanText(item.Title),
			Duration:  item.Duration,
			Presenter: utils.CleanText(item.Presenter),
			Position:  i,
		})
	}
	ev, err := h.coord.CreateEvent(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ev)
}

// GetByID handles GET /api/events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	ev, err := h.reader.GetEvent(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ev)
}

// Delete handles DELETE /api/events/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.coord.DeleteEvent(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdatePhase handles PATCH /api/events/:id/phase.
func (h *Handler) UpdatePhase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req PhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ev, err := h.coord.ChangePhase(c.Request.Context(), id, req.Phase)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ev)
}

// Recompute handles POST /api/events/:id/recompute.
func (h *Handler) Recompute(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	standings, err := h.coord.RecomputeRanks(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, standings)
}

// ListQuestions handles GET /api/events/:id/questions.
func (h *Handler) ListQuestions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.reader.ListQuestions(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// ReportURL handles GET /api/events/:id/report: a presigned link to the archive written after the event closed.
func (h *Handler) ReportURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if h.reports == nil {
		response.ServiceUnavailable(c, "report storage not configured")
		return
	}
	ctx := c.Request.Context()
	ev, err := h.reader.GetEvent(ctx, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if ev.Phase != models.PhaseClosed {
		response.NotFound(c, "report is available after the event closes")
		return
	}
	url, err := h.reports.ReportURL(ctx, id.String())
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			response.NotFound(c, "report not generated yet")
			return
		}
		response.Internal(c, "failed to resolve report")
		return
	}
	response.OK(c, gin.H{"url": url})
}
