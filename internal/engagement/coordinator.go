package engagement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nybble-vibe/backend/internal/models"
)

// Outcome kinds for commits that are not scoring actions.
const (
	OutcomePhaseChanged = "phase_changed"
	OutcomePollStatus   = "poll_status_changed"
	OutcomePollCreated  = "poll_created"
	OutcomeRecompute    = "recompute"
	OutcomeEventDeleted = "event_deleted"
)

// Outcome describes one committed change. It is handed to post-commit hooks.
type Outcome struct {
	// Kind is an ActionKind for scoring actions, otherwise one of the Outcome* constants.
	Kind        string
	EventID     uuid.UUID
	Result      *Result
	Standings   []Standing
	Earned      map[uuid.UUID][]models.Badge
	Event       *models.Event
	Poll        *models.Poll
	Participant *models.Participant
}

// Hook runs after a change is committed. A failing hook is logged and never undoes the commit.
type Hook func(ctx context.Context, o Outcome) error

// Coordinator applies participant actions and lifecycle commands against a Store.
// Every scoring action is followed by exactly one recompute in the same transaction.
type Coordinator struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
	stages []Stage
	hooks  []Hook
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithStage appends a stage after the default ranking and badge stages.
func WithStage(s Stage) Option {
	return func(c *Coordinator) { c.stages = append(c.stages, s) }
}

// NewCoordinator creates a coordinator with the default recompute pipeline.
func NewCoordinator(store Store, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		stages: DefaultStages(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnCommit registers a post-commit hook. Register hooks before serving traffic.
func (c *Coordinator) OnCommit(h Hook) {
	c.hooks = append(c.hooks, h)
}

func (c *Coordinator) commit(ctx context.Context, o Outcome) {
	for _, h := range c.hooks {
		if err := h(ctx, o); err != nil {
			c.logger.Warn("post-commit hook failed",
				zap.String("kind", o.Kind),
				zap.String("event_id", o.EventID.String()),
				zap.Error(err),
			)
		}
	}
}

// Apply validates and executes one scoring action: the primary write, the point award,
// the leaderboard recompute and badge evaluation commit together or not at all.
func (c *Coordinator) Apply(ctx context.Context, a Action) (*Result, error) {
	op := "apply " + string(a.Kind)
	if err := a.validate(); err != nil {
		return nil, err
	}
	eventID, err := c.resolveEvent(ctx, a)
	if err != nil {
		return nil, withOp(op, err)
	}

	var (
		res *Result
		rc  *Recompute
	)
	err = c.store.Atomic(ctx, eventID, func(tx Tx) error {
		ev, err := tx.Event(ctx)
		if err != nil {
			return err
		}
		now := c.now()
		res, err = c.applyPrimary(ctx, tx, ev, a, now)
		if err != nil {
			return err
		}
		res.PointsEarned = PointsFor(a.Kind)
		if res.TotalPoints, err = tx.AddPoints(ctx, res.ParticipantID, res.PointsEarned); err != nil {
			return err
		}

		rc = &Recompute{EventID: eventID, Trigger: a.Kind, ActorID: res.ParticipantID, Now: now}
		if err := c.recompute(ctx, tx, rc); err != nil {
			return err
		}
		if p := rc.Participant(res.ParticipantID); p != nil {
			res.NewRank = p.Rank
			res.TotalPoints = p.Points
			if res.Participant != nil {
				res.Participant.Rank = p.Rank
				res.Participant.Points = p.Points
				res.Participant.Badges = p.Badges
			}
		}
		res.BadgesEarned = rc.Earned[res.ParticipantID]
		return nil
	})
	if err != nil {
		return nil, withOp(op, err)
	}

	c.logger.Debug("action applied",
		zap.String("kind", string(a.Kind)),
		zap.String("event_id", eventID.String()),
		zap.String("participant_id", res.ParticipantID.String()),
		zap.Int("points_earned", res.PointsEarned),
		zap.Int("total_points", res.TotalPoints),
		zap.Int("rank", res.NewRank),
	)
	c.commit(ctx, Outcome{
		Kind:      string(a.Kind),
		EventID:   eventID,
		Result:    res,
		Standings: rc.Standings,
		Earned:    rc.Earned,
	})
	return res, nil
}

// resolveEvent finds the event whose lock the action must hold.
func (c *Coordinator) resolveEvent(ctx context.Context, a Action) (uuid.UUID, error) {
	if a.Kind == ActionJoin {
		return a.EventID, nil
	}
	p, err := c.store.GetParticipant(ctx, a.ParticipantID)
	if err != nil {
		return uuid.Nil, err
	}
	if a.EventID != uuid.Nil && a.EventID != p.EventID {
		return uuid.Nil, NotFound("participant")
	}
	return p.EventID, nil
}

func (c *Coordinator) applyPrimary(ctx context.Context, tx Tx, ev *models.Event, a Action, now time.Time) (*Result, error) {
	op := "apply " + string(a.Kind)
	res := &Result{Kind: a.Kind, EventID: ev.ID, ParticipantID: a.ParticipantID}

	if a.Kind == ActionJoin {
		if !CanJoin(ev.Phase) {
			return nil, newErr(KindPreconditionFailed, op, "cannot join event in phase "+string(ev.Phase))
		}
		p := &models.Participant{
			ID:          uuid.New(),
			EventID:     ev.ID,
			DisplayName: a.Join.DisplayName,
			Avatar:      a.Join.Avatar,
			IsExternal:  a.Join.IsExternal,
			JoinTime:    now,
			Badges:      []models.Badge{},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.InsertParticipant(ctx, p); err != nil {
			return nil, err
		}
		res.ParticipantID = p.ID
		res.Participant = p
		return res, nil
	}

	p, err := tx.Participant(ctx, a.ParticipantID)
	if err != nil {
		return nil, err
	}

	switch a.Kind {
	case ActionVote:
		poll, err := tx.Poll(ctx, a.Vote.PollID)
		if err != nil {
			return nil, err
		}
		if poll.Status != models.PollActive {
			return nil, newErr(KindPreconditionFailed, op, "poll is not active")
		}
		if poll.Option(a.Vote.OptionID) == nil {
			return nil, NotFound("option")
		}
		voted, err := tx.HasVoted(ctx, poll.ID, p.ID)
		if err != nil {
			return nil, err
		}
		if voted {
			return nil, newErr(KindPreconditionFailed, op, "already voted on this poll")
		}
		v := &models.PollVote{
			ID:            uuid.New(),
			PollID:        poll.ID,
			OptionID:      a.Vote.OptionID,
			ParticipantID: p.ID,
			CreatedAt:     now,
		}
		if err := tx.InsertVote(ctx, v); err != nil {
			return nil, err
		}
		if err := tx.IncrementOptionVotes(ctx, v.OptionID); err != nil {
			return nil, err
		}
		if err := tx.IncrementPollVotes(ctx, p.ID); err != nil {
			return nil, err
		}
		res.Vote = v

	case ActionReaction:
		if !EmojiAllowed(a.Reaction.Emoji) {
			return nil, newErr(KindPreconditionFailed, op, "emoji is not allowed")
		}
		if p.ReactionsCount >= MaxReactions {
			return nil, newErr(KindPreconditionFailed, op, "maximum 10 reactions allowed")
		}
		r := &models.Reaction{ParticipantID: p.ID, Emoji: a.Reaction.Emoji, CreatedAt: now}
		if err := tx.InsertReaction(ctx, r); err != nil {
			return nil, err
		}
		res.Reaction = r

	case ActionQuestion:
		if a.Question.IsAnonymous && !ev.Settings.AllowAnonymousQuestions {
			return nil, newErr(KindPreconditionFailed, op, "anonymous questions are disabled for this event")
		}
		q := &models.Question{
			ID:            uuid.New(),
			ParticipantID: p.ID,
			Text:          a.Question.Text,
			IsAnonymous:   a.Question.IsAnonymous,
			CreatedAt:     now,
		}
		if err := tx.InsertQuestion(ctx, q); err != nil {
			return nil, err
		}
		res.Question = q

	case ActionFeedback:
		if !CanSubmitFeedback(ev.Phase) {
			return nil, newErr(KindPreconditionFailed, op, "feedback can only be submitted in post phase")
		}
		var goal, text *string
		if a.Feedback.GoalAchieved != "" {
			goal = &a.Feedback.GoalAchieved
		}
		if a.Feedback.Text != "" {
			text = &a.Feedback.Text
		}
		if err := tx.SetFeedback(ctx, p.ID, a.Feedback.Rating, goal, text); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// RecomputeRanks recomputes the leaderboard of an event and re-checks rank and poll badges.
// Calling it again without intervening actions changes nothing.
func (c *Coordinator) RecomputeRanks(ctx context.Context, eventID uuid.UUID) ([]Standing, error) {
	const op = "recompute ranks"
	var rc *Recompute
	err := c.store.Atomic(ctx, eventID, func(tx Tx) error {
		if _, err := tx.Event(ctx); err != nil {
			return err
		}
		rc = &Recompute{EventID: eventID, Now: c.now()}
		return c.recompute(ctx, tx, rc)
	})
	if err != nil {
		return nil, withOp(op, err)
	}
	c.commit(ctx, Outcome{Kind: OutcomeRecompute, EventID: eventID, Standings: rc.Standings, Earned: rc.Earned})
	return rc.Standings, nil
}
