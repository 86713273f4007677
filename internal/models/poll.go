package models

import (
	"time"

	"github.com/google/uuid"
)

// PollStatus is the state of a poll. Statuses only move forward.
type PollStatus string

const (
	PollDraft  PollStatus = "draft"
	PollActive PollStatus = "active"
	PollClosed PollStatus = "closed"
)

// Launched reports whether the poll has ever been opened for votes.
func (s PollStatus) Launched() bool {
	return s == PollActive || s == PollClosed
}

// Poll visibility of results.
const (
	ShowResultsAll   = "all"
	ShowResultsVoted = "voted"
	ShowResultsAdmin = "admin"
)

// Poll bounds on the number of options.
const (
	MinPollOptions = 2
	MaxPollOptions = 10
)

// Poll represents a multiple-choice poll in an event.
type Poll struct {
	ID            uuid.UUID    `json:"id"`
	EventID       uuid.UUID    `json:"event_id"`
	Question      string       `json:"question"`
	Status        PollStatus   `json:"status"`
	ShowResultsTo string       `json:"show_results_to"`
	Options       []PollOption `json:"options"`
	CreatedAt     time.Time    `json:"created_at"`
	ClosedAt      *time.Time   `json:"closed_at,omitempty"`
}

// Option returns the option with the given id, or nil.
func (p *Poll) Option(id uuid.UUID) *PollOption {
	for i := range p.Options {
		if p.Options[i].ID == id {
			return &p.Options[i]
		}
	}
	return nil
}

// TotalVotes sums the option counters.
func (p *Poll) TotalVotes() int {
	n := 0
	for _, o := range p.Options {
		n += o.Votes
	}
	return n
}

// PollOption is one choice of a poll. Votes mirrors the number of PollVote rows referencing it.
type PollOption struct {
	ID       uuid.UUID `json:"id"`
	PollID   uuid.UUID `json:"poll_id"`
	Text     string    `json:"text"`
	Position int       `json:"position"`
	Votes    int       `json:"votes"`
}

// PollVote links one participant to one option of a poll. One per (poll, participant).
type PollVote struct {
	ID            uuid.UUID `json:"id"`
	PollID        uuid.UUID `json:"poll_id"`
	OptionID      uuid.UUID `json:"option_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	CreatedAt     time.Time `json:"timestamp"`
}
