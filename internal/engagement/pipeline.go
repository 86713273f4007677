package engagement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nybble-vibe/backend/internal/models"
)

// Recompute carries the state shared by the recompute stages of one action.
type Recompute struct {
	EventID uuid.UUID
	// Trigger is the scoring action that caused the recompute, empty for a standalone recompute.
	Trigger ActionKind
	// ActorID is the participant who acted, uuid.Nil for a standalone recompute.
	ActorID      uuid.UUID
	Now          time.Time
	Participants []*models.Participant
	Standings    []Standing
	Earned       map[uuid.UUID][]models.Badge
}

// Participant returns the loaded participant with id, or nil.
func (rc *Recompute) Participant(id uuid.UUID) *models.Participant {
	for _, p := range rc.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Stage is one step of the recompute pipeline, run inside the action's transaction.
type Stage func(ctx context.Context, tx Tx, rc *Recompute) error

// RankStage recomputes and persists the full leaderboard.
func RankStage(ctx context.Context, tx Tx, rc *Recompute) error {
	entries := make([]RankEntry, len(rc.Participants))
	for i, p := range rc.Participants {
		entries[i] = RankEntry{ParticipantID: p.ID, Points: p.Points, JoinedAt: p.JoinTime}
	}
	rc.Standings = Rank(entries)
	if err := tx.SetRanks(ctx, rc.Standings); err != nil {
		return err
	}
	for _, s := range rc.Standings {
		if p := rc.Participant(s.ParticipantID); p != nil {
			p.Rank = s.Rank
		}
	}
	return nil
}

// BadgeStage grants every badge a participant newly qualifies for.
func BadgeStage(ctx context.Context, tx Tx, rc *Recompute) error {
	polls, err := tx.Polls(ctx)
	if err != nil {
		return err
	}
	launched := 0
	for _, p := range polls {
		if p.Status.Launched() {
			launched++
		}
	}
	for _, p := range rc.Participants {
		agg := Aggregates{
			LaunchedPolls:    launched,
			FeedbackAccepted: rc.Trigger == ActionFeedback && p.ID == rc.ActorID,
		}
		updated, earned := EvaluateBadges(p, agg, rc.Now)
		if len(earned) == 0 {
			continue
		}
		if err := tx.GrantBadges(ctx, p.ID, earned); err != nil {
			return err
		}
		p.Badges = updated
		rc.Earned[p.ID] = earned
	}
	return nil
}

// DefaultStages is the pipeline every scoring action runs: ranking, then badges.
func DefaultStages() []Stage {
	return []Stage{RankStage, BadgeStage}
}

func (c *Coordinator) recompute(ctx context.Context, tx Tx, rc *Recompute) error {
	participants, err := tx.Participants(ctx)
	if err != nil {
		return err
	}
	rc.Participants = participants
	if rc.Earned == nil {
		rc.Earned = make(map[uuid.UUID][]models.Badge)
	}
	for _, stage := range c.stages {
		if err := stage(ctx, tx, rc); err != nil {
			return err
		}
	}
	return nil
}
