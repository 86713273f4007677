package polls

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nybble-vibe/backend/internal/analytics"
	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/models"
	"github.com/nybble-vibe/backend/pkg/response"
	"github.com/nybble-vibe/backend/pkg/utils"
)

// OptionRequest is one option of a CreateRequest.
type OptionRequest struct {
	Text     string `json:"text" binding:"required"`
	Position *int   `json:"position"`
}

// CreateRequest is the body for POST /api/events/:id/polls.
type CreateRequest struct {
	Question      string          `json:"question" binding:"required"`
	ShowResultsTo string          `json:"show_results_to"`
	Options       []OptionRequest `json:"options" binding:"required,dive"`
}

// StatusRequest is the body for PATCH /api/polls/:id/status.
type StatusRequest struct {
	Status models.PollStatus `json:"status" binding:"required,oneof=draft active closed"`
}

// VoteRequest is the body for POST /api/polls/:id/vote.
type VoteRequest struct {
	ParticipantID uuid.UUID `json:"participant_id" binding:"required"`
	OptionID      uuid.UUID `json:"option_id" binding:"required"`
}

// Handler handles poll HTTP endpoints.
type Handler struct {
	coord  *engagement.Coordinator
	reader engagement.Reader
}

// NewHandler creates a polls handler.
func NewHandler(coord *engagement.Coordinator, reader engagement.Reader) *Handler {
	return &Handler{coord: coord, reader: reader}
}

// ListByEvent handles GET /api/events/:id/polls.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.reader.ListPolls(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]analytics.PollView, 0, len(list))
	for _, p := range list {
		views = append(views, analytics.NewPollView(p))
	}
	response.OK(c, views)
}

// Create handles POST /api/events/:id/polls. New polls start as drafts.
func (h *Handler) Create(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	in := engagement.NewPoll{
		Question:      utils.CleanText(req.Question),
		ShowResultsTo: req.ShowResultsTo,
		Options:       make([]engagement.NewPollOption, 0, len(req.Options)),
	}
	for i, o := range req.Options {
		pos := i
		if o.Position != nil {
			pos = *o.Position
		}
		in.Options = append(in.Options, engagement.NewPollOption{Text: utils.CleanText(o.Text), Position: pos})
	}
	p, err := h.coord.CreatePoll(c.Request.Context(), eventID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// UpdateStatus handles PATCH /api/polls/:id/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
	pollID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.coord.ChangePollStatus(c.Request.Context(), pollID, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// Vote handles POST /api/polls/:id/vote.
func (h *Handler) Vote(c *gin.Context) {
	pollID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.coord.Apply(c.Request.Context(), engagement.Action{
		Kind:          engagement.ActionVote,
		ParticipantID: req.ParticipantID,
		Vote:          engagement.VotePayload{PollID: pollID, OptionID: req.OptionID},
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Results handles GET /api/polls/:id/results.
// With ?participant_id the poll's show_results_to setting applies; without it the host view is returned.
func (h *Handler) Results(c *gin.Context) {
	pollID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	ctx := c.Request.Context()
	p, err := h.reader.GetPoll(ctx, pollID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if raw := c.Query("participant_id"); raw != "" {
		participantID, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid participant id")
			return
		}
		switch p.ShowResultsTo {
		case models.ShowResultsAdmin:
			if p.Status != models.PollClosed {
				response.Forbidden(c, "results are visible to the host until the poll closes")
				return
			}
		case models.ShowResultsVoted:
			voted, err := h.reader.HasVoted(ctx, pollID, participantID)
			if err != nil {
				response.Error(c, err)
				return
			}
			if !voted && p.Status != models.PollClosed {
				response.Forbidden(c, "vote to see the results")
				return
			}
		}
	}
	response.OK(c, analytics.NewPollView(*p))
}
