package engagement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nybble-vibe/backend/internal/models"
)

// Reader serves lookups outside of an action transaction.
type Reader interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	GetPoll(ctx context.Context, id uuid.UUID) (*models.Poll, error)
	ListPolls(ctx context.Context, eventID uuid.UUID) ([]models.Poll, error)
	HasVoted(ctx context.Context, pollID, participantID uuid.UUID) (bool, error)
	// GetParticipant returns the participant with reactions and questions loaded.
	GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error)
	// ListParticipants returns an event's participants in leaderboard order.
	ListParticipants(ctx context.Context, eventID uuid.UUID) ([]models.Participant, error)
	// ListQuestions returns an event's questions newest first, author names redacted for anonymous ones.
	ListQuestions(ctx context.Context, eventID uuid.UUID) ([]models.Question, error)
}

// Store is the persistence boundary the Coordinator runs against.
// Lookups of missing rows return an error of KindNotFound.
type Store interface {
	Reader
	CreateEvent(ctx context.Context, e *models.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	CreatePoll(ctx context.Context, p *models.Poll) error
	// Atomic runs fn in a single transaction that is serialized with every other
	// Atomic call for the same event. If fn returns an error nothing is persisted.
	Atomic(ctx context.Context, eventID uuid.UUID, fn func(tx Tx) error) error
}

// Tx is the view of one event inside Atomic. Rows belonging to other events are reported as not found.
type Tx interface {
	Event(ctx context.Context) (*models.Event, error)
	SetPhase(ctx context.Context, phase models.Phase) error

	Poll(ctx context.Context, id uuid.UUID) (*models.Poll, error)
	Polls(ctx context.Context) ([]models.Poll, error)
	// SetPollStatus persists Status and ClosedAt of p.
	SetPollStatus(ctx context.Context, p *models.Poll) error
	HasVoted(ctx context.Context, pollID, participantID uuid.UUID) (bool, error)
	// InsertVote fails with KindConflictOnWrite if the participant already voted on the poll.
	InsertVote(ctx context.Context, v *models.PollVote) error
	IncrementOptionVotes(ctx context.Context, optionID uuid.UUID) error

	Participant(ctx context.Context, id uuid.UUID) (*models.Participant, error)
	// Participants returns every participant of the event with badges loaded.
	Participants(ctx context.Context) ([]*models.Participant, error)
	InsertParticipant(ctx context.Context, p *models.Participant) error
	// AddPoints adds delta to the participant's points and returns the new total.
	AddPoints(ctx context.Context, participantID uuid.UUID, delta int) (int, error)
	IncrementPollVotes(ctx context.Context, participantID uuid.UUID) error
	InsertReaction(ctx context.Context, r *models.Reaction) error
	InsertQuestion(ctx context.Context, q *models.Question) error
	SetFeedback(ctx context.Context, participantID uuid.UUID, rating int, goal, text *string) error
	SetLeave(ctx context.Context, participantID uuid.UUID, at time.Time, attendancePercent int) error
	SetRanks(ctx context.Context, standings []Standing) error
	// GrantBadges inserts badges the participant does not hold yet; existing ids are left untouched.
	GrantBadges(ctx context.Context, participantID uuid.UUID, badges []models.Badge) error
}
