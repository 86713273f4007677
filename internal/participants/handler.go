package participants

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/leaderboard"
	"github.com/nybble-vibe/backend/internal/models"
	"github.com/nybble-vibe/backend/pkg/response"
	"github.com/nybble-vibe/backend/pkg/utils"
)

// JoinRequest is the body for POST /api/events/:id/join.
type JoinRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	Avatar      string `json:"avatar"`
	IsExternal  bool   `json:"is_external"`
}

// ReactionRequest is the body for POST /api/participants/:id/reaction.
type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// QuestionRequest is the body for POST /api/participants/:id/question.
type QuestionRequest struct {
	Text        string `json:"text" binding:"required"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// FeedbackRequest is the body for POST /api/participants/:id/feedback.
type FeedbackRequest struct {
	Rating       int    `json:"rating" binding:"required,min=1,max=5"`
	GoalAchieved string `json:"goal_achieved" binding:"omitempty,oneof=yes partially no"`
	Feedback     string `json:"feedback"`
}

// Stats is the response of GET /api/participants/:id/stats.
type Stats struct {
	ParticipantID     uuid.UUID      `json:"participant_id"`
	EventID           uuid.UUID      `json:"event_id"`
	DisplayName       string         `json:"display_name"`
	TotalPoints       int            `json:"total_points"`
	Rank              int            `json:"rank,omitempty"`
	AttendancePercent int            `json:"attendance_percent"`
	ReactionsCount    int            `json:"reactions_count"`
	QuestionsCount    int            `json:"questions_count"`
	PollsVoted        int            `json:"polls_voted"`
	Badges            []models.Badge `json:"badges"`
}

// Handler handles participant HTTP endpoints.
type Handler struct {
	coord  *engagement.Coordinator
	reader engagement.Reader
	board  *leaderboard.Cache
}

// NewHandler creates a participants handler.
func NewHandler(coord *engagement.Coordinator, reader engagement.Reader, board *leaderboard.Cache) *Handler {
	return &Handler{coord: coord, reader: reader, board: board}
}

func (h *Handler) apply(c *gin.Context, a engagement.Action) {
	res, err := h.coord.Apply(c.Request.Context(), a)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

func participantID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid participant id")
		return uuid.Nil, false
	}
	return id, true
}

// Join handles POST /api/events/:id/join.
func (h *Handler) Join(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.apply(c, engagement.Action{
		Kind:    engagement.ActionJoin,
		EventID: eventID,
		Join: engagement.JoinPayload{
			DisplayName: utils.CleanText(req.DisplayName),
			Avatar:      utils.CleanText(req.Avatar),
			IsExternal:  req.IsExternal,
		},
	})
}

// ListByEvent handles GET /api/events/:id/participants.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.reader.ListParticipants(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Leaderboard handles GET /api/events/:id/leaderboard.
func (h *Handler) Leaderboard(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	ctx := c.Request.Context()
	ev, err := h.reader.GetEvent(ctx, eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !ev.Settings.ShowLeaderboard {
		response.Forbidden(c, "leaderboard is hidden for this event")
		return
	}
	entries, err := h.board.Get(ctx, eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries)
}

// Stats handles GET /api/participants/:id/stats.
func (h *Handler) Stats(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	p, err := h.reader.GetParticipant(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, Stats{
		ParticipantID:     p.ID,
		EventID:           p.EventID,
		DisplayName:       p.DisplayName,
		TotalPoints:       p.Points,
		Rank:              p.Rank,
		AttendancePercent: p.AttendancePercent,
		ReactionsCount:    p.ReactionsCount,
		QuestionsCount:    p.QuestionsCount,
		PollsVoted:        p.PollVotesCount,
		Badges:            p.Badges,
	})
}

// React handles POST /api/participants/:id/reaction.
func (h *Handler) React(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.apply(c, engagement.Action{
		Kind:          engagement.ActionReaction,
		ParticipantID: id,
		Reaction:      engagement.ReactionPayload{Emoji: req.Emoji},
	})
}

// Ask handles POST /api/participants/:id/question.
func (h *Handler) Ask(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	var req QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.apply(c, engagement.Action{
		Kind:          engagement.ActionQuestion,
		ParticipantID: id,
		Question:      engagement.QuestionPayload{Text: utils.CleanText(req.Text), IsAnonymous: req.IsAnonymous},
	})
}

// Feedback handles POST /api/participants/:id/feedback.
func (h *Handler) Feedback(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.apply(c, engagement.Action{
		Kind:          engagement.ActionFeedback,
		ParticipantID: id,
		Feedback: engagement.FeedbackPayload{
			Rating:       req.Rating,
			GoalAchieved: req.GoalAchieved,
			Text:         utils.CleanText(req.Feedback),
		},
	})
}

// Leave handles POST /api/participants/:id/leave.
func (h *Handler) Leave(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	p, err := h.coord.Leave(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}
