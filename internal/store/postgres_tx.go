package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/models"
)

// pgTx scopes every statement to one locked event.
type pgTx struct {
	tx      pgx.Tx
	eventID uuid.UUID
}

func (t *pgTx) Event(ctx context.Context) (*models.Event, error) {
	return getEvent(ctx, t.tx, t.eventID)
}

func (t *pgTx) SetPhase(ctx context.Context, phase models.Phase) error {
	_, err := t.tx.Exec(ctx, `UPDATE events SET phase = $1, updated_at = NOW() WHERE id = $2`, string(phase), t.eventID)
	if err != nil {
		return fmt.Errorf("update phase: %w", err)
	}
	return nil
}

func (t *pgTx) Poll(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	return getPoll(ctx, t.tx, id, &t.eventID)
}

func (t *pgTx) Polls(ctx context.Context) ([]models.Poll, error) {
	return listPolls(ctx, t.tx, t.eventID)
}

func (t *pgTx) SetPollStatus(ctx context.Context, p *models.Poll) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE polls SET status = $1, closed_at = $2 WHERE id = $3 AND event_id = $4
	`, string(p.Status), p.ClosedAt, p.ID, t.eventID)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return engagement.Conflict("another poll is already active", err)
		}
		return fmt.Errorf("update poll status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return engagement.NotFound("poll")
	}
	return nil
}

func (t *pgTx) HasVoted(ctx context.Context, pollID, participantID uuid.UUID) (bool, error) {
	return hasVoted(ctx, t.tx, pollID, participantID)
}

func (t *pgTx) InsertVote(ctx context.Context, v *models.PollVote) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO poll_votes (id, poll_id, option_id, participant_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, v.ID, v.PollID, v.OptionID, v.ParticipantID, v.CreatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return engagement.Conflict("already voted on this poll", err)
		}
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

func (t *pgTx) IncrementOptionVotes(ctx context.Context, optionID uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE poll_options o SET votes = o.votes + 1
		FROM polls p
		WHERE o.id = $1 AND p.id = o.poll_id AND p.event_id = $2
	`, optionID, t.eventID)
	if err != nil {
		return fmt.Errorf("increment option votes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return engagement.NotFound("option")
	}
	return nil
}

func (t *pgTx) Participant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	return getParticipant(ctx, t.tx, id, &t.eventID)
}

func (t *pgTx) Participants(ctx context.Context) ([]*models.Participant, error) {
	return listParticipants(ctx, t.tx, t.eventID)
}

func (t *pgTx) InsertParticipant(ctx context.Context, p *models.Participant) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO participants (id, event_id, display_name, avatar, is_external, join_time, points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, t.eventID, p.DisplayName, p.Avatar, p.IsExternal, p.JoinTime, p.Points, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return engagement.Conflict("participant already exists", err)
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (t *pgTx) AddPoints(ctx context.Context, participantID uuid.UUID, delta int) (int, error) {
	var total int
	err := t.tx.QueryRow(ctx, `
		UPDATE participants SET points = points + $1, updated_at = NOW()
		WHERE id = $2 AND event_id = $3
		RETURNING points
	`, delta, participantID, t.eventID).Scan(&total)
	if err != nil {
		return 0, mapNotFound("participant", err)
	}
	return total, nil
}

func (t *pgTx) IncrementPollVotes(ctx context.Context, participantID uuid.UUID) error {
	return t.touchParticipant(ctx, `poll_votes_count = poll_votes_count + 1`, participantID)
}

func (t *pgTx) touchParticipant(ctx context.Context, set string, participantID uuid.UUID, args ...any) error {
	n := len(args)
	sql := fmt.Sprintf(`UPDATE participants SET %s, updated_at = NOW() WHERE id = $%d AND event_id = $%d`, set, n+1, n+2)
	tag, err := t.tx.Exec(ctx, sql, append(args, participantID, t.eventID)...)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return engagement.NotFound("participant")
	}
	return nil
}

func (t *pgTx) InsertReaction(ctx context.Context, r *models.Reaction) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO reactions (participant_id, emoji, created_at) VALUES ($1, $2, $3)
	`, r.ParticipantID, r.Emoji, r.CreatedAt)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return engagement.NotFound("participant")
		}
		return fmt.Errorf("insert reaction: %w", err)
	}
	return nil
}

func (t *pgTx) InsertQuestion(ctx context.Context, q *models.Question) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO questions (id, participant_id, text, is_anonymous, created_at) VALUES ($1, $2, $3, $4, $5)
	`, q.ID, q.ParticipantID, q.Text, q.IsAnonymous, q.CreatedAt)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return engagement.NotFound("participant")
		}
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (t *pgTx) SetFeedback(ctx context.Context, participantID uuid.UUID, rating int, goal, text *string) error {
	return t.touchParticipant(ctx, `rating = $1, goal_achieved = $2, feedback = $3`, participantID, rating, goal, text)
}

func (t *pgTx) SetLeave(ctx context.Context, participantID uuid.UUID, at time.Time, attendancePercent int) error {
	return t.touchParticipant(ctx, `leave_time = $1, attendance_percent = $2`, participantID, at, attendancePercent)
}

// SetRanks overwrites every given participant's rank in one statement.
func (t *pgTx) SetRanks(ctx context.Context, standings []engagement.Standing) error {
	if len(standings) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(standings))
	ranks := make([]int32, len(standings))
	for i, s := range standings {
		ids[i] = s.ParticipantID
		ranks[i] = int32(s.Rank)
	}
	_, err := t.tx.Exec(ctx, `
		UPDATE participants p SET rank = v.rank
		FROM unnest($1::uuid[], $2::int[]) AS v(id, rank)
		WHERE p.id = v.id AND p.event_id = $3
	`, ids, ranks, t.eventID)
	if err != nil {
		return fmt.Errorf("update ranks: %w", err)
	}
	return nil
}

func (t *pgTx) GrantBadges(ctx context.Context, participantID uuid.UUID, badges []models.Badge) error {
	batch := &pgx.Batch{}
	for _, b := range badges {
		batch.Queue(`
			INSERT INTO participant_badges (participant_id, badge_id, name, icon, earned_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (participant_id, badge_id) DO NOTHING
		`, participantID, string(b.ID), b.Name, b.Icon, b.EarnedAt)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("grant badges: %w", err)
	}
	return nil
}
