package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nybble-vibe/backend/internal/analytics"
	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/events"
	"github.com/nybble-vibe/backend/internal/leaderboard"
	"github.com/nybble-vibe/backend/internal/middleware"
	"github.com/nybble-vibe/backend/internal/participants"
	"github.com/nybble-vibe/backend/internal/polls"
	"github.com/nybble-vibe/backend/pkg/response"
)

// Deps are the services the HTTP API is built from.
type Deps struct {
	Coordinator *engagement.Coordinator
	Reader      engagement.Reader
	Leaderboard *leaderboard.Cache
	// Reports is optional; without it GET /api/events/:id/report answers 503.
	Reports     events.ReportLocator
	CORSOrigins string
	Logger      *zap.Logger
}

// NewRouter builds the gin engine with every API route.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	eventHandler := events.NewHandler(d.Coordinator, d.Reader, d.Reports)
	pollHandler := polls.NewHandler(d.Coordinator, d.Reader)
	participantHandler := participants.NewHandler(d.Coordinator, d.Reader, d.Leaderboard)
	analyticsHandler := analytics.NewHandler(d.Reader)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(d.CORSOrigins))
	router.Use(middleware.Logger(d.Logger))

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

		// Events
		api.POST("/events", eventHandler.Create)
		api.GET("/events/:id", eventHandler.GetByID)
		api.DELETE("/events/:id", eventHandler.Delete)
		api.PATCH("/events/:id/phase", eventHandler.UpdatePhase)
		api.POST("/events/:id/recompute", eventHandler.Recompute)
		api.GET("/events/:id/questions", eventHandler.ListQuestions)
		api.GET("/events/:id/report", eventHandler.ReportURL)
		api.GET("/events/:id/summary", analyticsHandler.GetByEvent)

		// Polls
		api.GET("/events/:id/polls", pollHandler.ListByEvent)
		api.POST("/events/:id/polls", pollHandler.Create)
		api.PATCH("/polls/:id/status", pollHandler.UpdateStatus)
		api.POST("/polls/:id/vote", pollHandler.Vote)
		api.GET("/polls/:id/results", pollHandler.Results)

		// Participants
		api.POST("/events/:id/join", participantHandler.Join)
		api.GET("/events/:id/participants", participantHandler.ListByEvent)
		api.GET("/events/:id/leaderboard", participantHandler.Leaderboard)
		api.GET("/participants/:id/stats", participantHandler.Stats)
		api.POST("/participants/:id/reaction", participantHandler.React)
		api.POST("/participants/:id/question", participantHandler.Ask)
		api.POST("/participants/:id/feedback", participantHandler.Feedback)
		api.POST("/participants/:id/leave", participantHandler.Leave)
	}
	return router
}
