package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/models"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is the engagement.Store backed by PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a store on top of an open pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// mapNotFound turns pgx.ErrNoRows into a NotFound domain error.
func mapNotFound(what string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return engagement.NotFound(what)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

func (s *Postgres) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return getEvent(ctx, s.pool, id)
}

func getEvent(ctx context.Context, q querier, id uuid.UUID) (*models.Event, error) {
	var (
		e        models.Event
		phase    string
		settings []byte
	)
	err := q.QueryRow(ctx, `
		SELECT id, title, description, start_time, end_time, phase, meeting_url, settings, created_at, updated_at
		FROM events WHERE id = $1
	`, id).Scan(&e.ID, &e.Title, &e.Description, &e.StartTime, &e.EndTime, &phase, &e.MeetingURL, &settings, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, mapNotFound("event", err)
	}
	e.Phase = models.Phase(phase)
	e.Settings = models.DefaultEventSettings()
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &e.Settings); err != nil {
			return nil, fmt.Errorf("decode event settings: %w", err)
		}
	}

	rows, err := q.Query(ctx, `
		SELECT id, event_id, title, duration, presenter, position, created_at
		FROM agenda_items WHERE event_id = $1 ORDER BY position, created_at
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list agenda items: %w", err)
	}
	defer rows.Close()
	e.AgendaItems = []models.AgendaItem{}
	for rows.Next() {
		var a models.AgendaItem
		if err := rows.Scan(&a.ID, &a.EventID, &a.Title, &a.Duration, &a.Presenter, &a.Position, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan agenda item: %w", err)
		}
		e.AgendaItems = append(e.AgendaItems, a)
	}
	return &e, rows.Err()
}

func (s *Postgres) CreateEvent(ctx context.Context, e *models.Event) error {
	settings, err := json.Marshal(e.Settings)
	if err != nil {
		return fmt.Errorf("encode event settings: %w", err)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO events (id, title, description, start_time, end_time, phase, meeting_url, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.Title, e.Description, e.StartTime, e.EndTime, string(e.Phase), e.MeetingURL, settings, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return engagement.Conflict("event already exists", err)
		}
		return fmt.Errorf("insert event: %w", err)
	}
	for _, a := range e.AgendaItems {
		_, err = tx.Exec(ctx, `
			INSERT INTO agenda_items (id, event_id, title, duration, presenter, position, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, a.ID, e.ID, a.Title, a.Duration, a.Presenter, a.Position, a.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert agenda item: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteEvent removes the event; agenda items, polls, votes and participants cascade.
func (s *Postgres) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return engagement.NotFound("event")
	}
	return nil
}

const pollColumns = `id, event_id, question, status, show_results_to, created_at, closed_at`

func scanPoll(row pgx.Row) (*models.Poll, error) {
	var (
		p      models.Poll
		status string
	)
	if err := row.Scan(&p.ID, &p.EventID, &p.Question, &status, &p.ShowResultsTo, &p.CreatedAt, &p.ClosedAt); err != nil {
		return nil, err
	}
	p.Status = models.PollStatus(status)
	p.Options = []models.PollOption{}
	return &p, nil
}

// loadOptions attaches options to polls, ordered by position.
func loadOptions(ctx context.Context, q querier, polls []*models.Poll) error {
	if len(polls) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(polls))
	byID := make(map[uuid.UUID]*models.Poll, len(polls))
	for i, p := range polls {
		ids[i] = p.ID
		byID[p.ID] = p
	}
	rows, err := q.Query(ctx, `
		SELECT id, poll_id, text, position, votes
		FROM poll_options WHERE poll_id = ANY($1::uuid[])
		ORDER BY position, id
	`, ids)
	if err != nil {
		return fmt.Errorf("list poll options: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o models.PollOption
		if err := rows.Scan(&o.ID, &o.PollID, &o.Text, &o.Position, &o.Votes); err != nil {
			return fmt.Errorf("scan poll option: %w", err)
		}
		if p, ok := byID[o.PollID]; ok {
			p.Options = append(p.Options, o)
		}
	}
	return rows.Err()
}

func getPoll(ctx context.Context, q querier, id uuid.UUID, eventID *uuid.UUID) (*models.Poll, error) {
	sql := `SELECT ` + pollColumns + ` FROM polls WHERE id = $1`
	args := []any{id}
	if eventID != nil {
		sql += ` AND event_id = $2`
		args = append(args, *eventID)
	}
	p, err := scanPoll(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapNotFound("poll", err)
	}
	if err := loadOptions(ctx, q, []*models.Poll{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func listPolls(ctx context.Context, q querier, eventID uuid.UUID) ([]models.Poll, error) {
	rows, err := q.Query(ctx, `SELECT `+pollColumns+` FROM polls WHERE event_id = $1 ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	var ptrs []*models.Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan poll: %w", err)
		}
		ptrs = append(ptrs, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadOptions(ctx, q, ptrs); err != nil {
		return nil, err
	}
	out := make([]models.Poll, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out, nil
}

func (s *Postgres) GetPoll(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	return getPoll(ctx, s.pool, id, nil)
}

func (s *Postgres) ListPolls(ctx context.Context, eventID uuid.UUID) ([]models.Poll, error) {
	if err := s.eventExists(ctx, eventID); err != nil {
		return nil, err
	}
	return listPolls(ctx, s.pool, eventID)
}

func (s *Postgres) HasVoted(ctx context.Context, pollID, participantID uuid.UUID) (bool, error) {
	return hasVoted(ctx, s.pool, pollID, participantID)
}

func hasVoted(ctx context.Context, q querier, pollID, participantID uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM poll_votes WHERE poll_id = $1 AND participant_id = $2)
	`, pollID, participantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check vote: %w", err)
	}
	return exists, nil
}

func (s *Postgres) eventExists(ctx context.Context, id uuid.UUID) error {
	var one int
	if err := s.pool.QueryRow(ctx, `SELECT 1 FROM events WHERE id = $1`, id).Scan(&one); err != nil {
		return mapNotFound("event", err)
	}
	return nil
}

func (s *Postgres) CreatePoll(ctx context.Context, p *models.Poll) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO polls (id, event_id, question, status, show_results_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.EventID, p.Question, string(p.Status), p.ShowResultsTo, p.CreatedAt)
	if err != nil {
		switch pgCode(err) {
		case pgForeignKeyViolation:
			return engagement.NotFound("event")
		case pgUniqueViolation:
			return engagement.Conflict("poll already exists", err)
		}
		return fmt.Errorf("insert poll: %w", err)
	}
	for _, o := range p.Options {
		_, err = tx.Exec(ctx, `
			INSERT INTO poll_options (id, poll_id, text, position, votes) VALUES ($1, $2, $3, $4, 0)
		`, o.ID, p.ID, o.Text, o.Position)
		if err != nil {
			return fmt.Errorf("insert poll option: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const participantColumns = `
	p.id, p.event_id, p.display_name, p.avatar, p.is_external, p.join_time, p.leave_time,
	p.attendance_percent, p.points, COALESCE(p.rank, 0), p.poll_votes_count,
	(SELECT COUNT(*) FROM reactions r WHERE r.participant_id = p.id),
	(SELECT COUNT(*) FROM questions q WHERE q.participant_id = p.id),
	p.rating, p.goal_achieved, p.feedback, p.created_at, p.updated_at`

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(&p.ID, &p.EventID, &p.DisplayName, &p.Avatar, &p.IsExternal, &p.JoinTime, &p.LeaveTime,
		&p.AttendancePercent, &p.Points, &p.Rank, &p.PollVotesCount, &p.ReactionsCount, &p.QuestionsCount,
		&p.Rating, &p.GoalAchieved, &p.Feedback, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Badges = []models.Badge{}
	return &p, nil
}

// loadBadges attaches badges to participants in the order they were earned.
func loadBadges(ctx context.Context, q querier, participants []*models.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(participants))
	byID := make(map[uuid.UUID]*models.Participant, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
		byID[p.ID] = p
	}
	rows, err := q.Query(ctx, `
		SELECT participant_id, badge_id, name, icon, earned_at
		FROM participant_badges WHERE participant_id = ANY($1::uuid[])
		ORDER BY earned_at, badge_id
	`, ids)
	if err != nil {
		return fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pid uuid.UUID
			id  string
			b   models.Badge
		)
		if err := rows.Scan(&pid, &id, &b.Name, &b.Icon, &b.EarnedAt); err != nil {
			return fmt.Errorf("scan badge: %w", err)
		}
		b.ID = models.BadgeID(id)
		if p, ok := byID[pid]; ok {
			p.Badges = append(p.Badges, b)
		}
	}
	return rows.Err()
}

func getParticipant(ctx context.Context, q querier, id uuid.UUID, eventID *uuid.UUID) (*models.Participant, error) {
	sql := `SELECT ` + participantColumns + ` FROM participants p WHERE p.id = $1`
	args := []any{id}
	if eventID != nil {
		sql += ` AND p.event_id = $2`
		args = append(args, *eventID)
	}
	p, err := scanParticipant(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapNotFound("participant", err)
	}
	if err := loadBadges(ctx, q, []*models.Participant{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func listParticipants(ctx context.Context, q querier, eventID uuid.UUID) ([]*models.Participant, error) {
	rows, err := q.Query(ctx, `
		SELECT `+participantColumns+`
		FROM participants p WHERE p.event_id = $1
		ORDER BY p.rank ASC NULLS LAST, p.join_time, p.id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	var out []*models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadBadges(ctx, q, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Postgres) GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	p, err := getParticipant(ctx, s.pool, id, nil)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT participant_id, emoji, created_at FROM reactions WHERE participant_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	for rows.Next() {
		var r models.Reaction
		if err := rows.Scan(&r.ParticipantID, &r.Emoji, &r.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		p.Reactions = append(p.Reactions, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.pool.Query(ctx, `
		SELECT id, participant_id, text, is_anonymous, created_at
		FROM questions WHERE participant_id = $1 ORDER BY created_at
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.ParticipantID, &q.Text, &q.IsAnonymous, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		p.Questions = append(p.Questions, q)
	}
	return p, rows.Err()
}

func (s *Postgres) ListParticipants(ctx context.Context, eventID uuid.UUID) ([]models.Participant, error) {
	if err := s.eventExists(ctx, eventID); err != nil {
		return nil, err
	}
	ptrs, err := listParticipants(ctx, s.pool, eventID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Participant, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out, nil
}

func (s *Postgres) ListQuestions(ctx context.Context, eventID uuid.UUID) ([]models.Question, error) {
	if err := s.eventExists(ctx, eventID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT q.id, q.participant_id, q.text, q.is_anonymous, q.created_at,
		       CASE WHEN q.is_anonymous THEN '' ELSE p.display_name END
		FROM questions q
		JOIN participants p ON p.id = q.participant_id
		WHERE p.event_id = $1
		ORDER BY q.created_at DESC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()
	out := []models.Question{}
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.ParticipantID, &q.Text, &q.IsAnonymous, &q.CreatedAt, &q.AuthorName); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Atomic locks the event row for the duration of the transaction so actions on
// the same event run one after another.
func (s *Postgres) Atomic(ctx context.Context, eventID uuid.UUID, fn func(tx engagement.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&locked); err != nil {
		return mapNotFound("event", err)
	}
	if err := fn(&pgTx{tx: tx, eventID: eventID}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if pgCode(err) == pgUniqueViolation {
			return engagement.Conflict("concurrent write", err)
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
