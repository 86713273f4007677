// Package main seeds a demo event with participants, polls and feedback.
package main

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nybble-vibe/backend/config"
	"github.com/nybble-vibe/backend/internal/analytics"
	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/models"
	"github.com/nybble-vibe/backend/internal/store"
	"github.com/nybble-vibe/backend/pkg/database"
)

var demoNames = []string{"Ada", "Grace", "Linus", "Margaret", "Ken", "Barbara"}

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	var st engagement.Store
	if cfg.Database.Driver == config.StoreDriverMemory {
		st = store.NewMemory()
	} else {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		st = store.NewPostgres(pool)
	}

	coord := engagement.NewCoordinator(st, logger)
	ev, err := seed(ctx, coord)
	if err != nil {
		logger.Fatal("seed", zap.Error(err))
	}

	s, err := analytics.Summarize(ctx, st, ev.ID)
	if err != nil {
		logger.Fatal("summarize", zap.Error(err))
	}
	logger.Info("demo event seeded",
		zap.String("event_id", ev.ID.String()),
		zap.Int("participants", s.ParticipantCount),
		zap.Int("votes", s.TotalVotes),
		zap.Int("points", s.TotalPoints),
	)
}

// seed walks a demo event from pre to post so every scoring action appears at least once.
func seed(ctx context.Context, coord *engagement.Coordinator) (*models.Event, error) {
	start := time.Now().UTC().Truncate(time.Hour).Add(time.Hour)
	ev, err := coord.CreateEvent(ctx, engagement.NewEvent{
		Title:       "Product Strategy Workshop",
		Description: "Quarterly planning session with live polls and Q&A",
		StartTime:   start,
		EndTime:     start.Add(90 * time.Minute),
		Agenda: []engagement.NewAgendaItem{
			{Title: "Welcome", Duration: 10, Presenter: "Host"},
			{Title: "Market review", Duration: 30, Presenter: "Strategy team"},
			{Title: "Roadmap vote", Duration: 30},
			{Title: "Open Q&A", Duration: 20},
		},
	})
	if err != nil {
		return nil, err
	}
	if _, err := coord.ChangePhase(ctx, ev.ID, models.PhaseLive); err != nil {
		return nil, err
	}

	var joined []engagement.Result
	for _, name := range demoNames {
		res, err := coord.Apply(ctx, engagement.Action{Kind: engagement.ActionJoin, EventID: ev.ID, Join: engagement.JoinPayload{DisplayName: name}})
		if err != nil {
			return nil, err
		}
		joined = append(joined, *res)
	}

	poll, err := coord.CreatePoll(ctx, ev.ID, engagement.NewPoll{
		Question:      "Which initiative should we fund first?",
		ShowResultsTo: models.ShowResultsAll,
		Options: []engagement.NewPollOption{
			{Text: "Self-serve onboarding"},
			{Text: "Enterprise SSO", Position: 1},
			{Text: "Usage analytics", Position: 2},
		},
	})
	if err != nil {
		return nil, err
	}
	if poll, err = coord.ChangePollStatus(ctx, poll.ID, models.PollActive); err != nil {
		return nil, err
	}

	emojis := engagement.AllowedEmojis()
	for i, p := range joined {
		if i%3 != 2 {
			_, err := coord.Apply(ctx, engagement.Action{
				Kind:          engagement.ActionVote,
				ParticipantID: p.ParticipantID,
				Vote:          engagement.VotePayload{PollID: poll.ID, OptionID: poll.Options[i%len(poll.Options)].ID},
			})
			if err != nil {
				return nil, err
			}
		}
		for j := 0; j <= i%4; j++ {
			_, err := coord.Apply(ctx, engagement.Action{
				Kind:          engagement.ActionReaction,
				ParticipantID: p.ParticipantID,
				Reaction:      engagement.ReactionPayload{Emoji: emojis[(i+j)%len(emojis)]},
			})
			if err != nil {
				return nil, err
			}
		}
		if i%2 == 0 {
			_, err := coord.Apply(ctx, engagement.Action{
				Kind:          engagement.ActionQuestion,
				ParticipantID: p.ParticipantID,
				Question:      engagement.QuestionPayload{Text: "How does this affect the Q3 roadmap?", IsAnonymous: i == 4},
			})
			if err != nil {
				return nil, err
			}
		}
	}
	if _, err := coord.ChangePollStatus(ctx, poll.ID, models.PollClosed); err != nil {
		return nil, err
	}

	if _, err := coord.ChangePhase(ctx, ev.ID, models.PhasePost); err != nil {
		return nil, err
	}
	goals := []string{models.GoalYes, models.GoalPartially, models.GoalYes}
	for i, p := range joined[:3] {
		_, err := coord.Apply(ctx, engagement.Action{
			Kind:          engagement.ActionFeedback,
			ParticipantID: p.ParticipantID,
			Feedback:      engagement.FeedbackPayload{Rating: 5 - i, GoalAchieved: goals[i], Text: "Useful session"},
		})
		if err != nil {
			return nil, err
		}
	}
	return ev, nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
