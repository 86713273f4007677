package models

import (
	"time"

	"github.com/google/uuid"
)

// Goal achievement answers for feedback.
const (
	GoalYes       = "yes"
	GoalPartially = "partially"
	GoalNo        = "no"
)

// DefaultAvatar is used when a participant joins without one.
const DefaultAvatar = "🤖"

// Participant is an attendee of one event with their engagement state.
type Participant struct {
	ID                uuid.UUID  `json:"id"`
	EventID           uuid.UUID  `json:"event_id"`
	DisplayName       string     `json:"display_name"`
	Avatar            string     `json:"avatar"`
	IsExternal        bool       `json:"is_external"`
	JoinTime          time.Time  `json:"join_time"`
	LeaveTime         *time.Time `json:"leave_time,omitempty"`
	AttendancePercent int        `json:"attendance_percent"`
	Points            int        `json:"points"`
	Rank              int        `json:"rank,omitempty"`
	PollVotesCount    int        `json:"poll_votes_count"`
	ReactionsCount    int        `json:"reactions_count"`
	QuestionsCount    int        `json:"questions_count"`
	Reactions         []Reaction `json:"reactions,omitempty"`
	Questions         []Question `json:"questions,omitempty"`
	Rating            *int       `json:"rating,omitempty"`
	GoalAchieved      *string    `json:"goal_achieved,omitempty"`
	Feedback          *string    `json:"feedback,omitempty"`
	Badges            []Badge    `json:"badges"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// HasBadge reports whether the participant already holds the badge id.
func (p *Participant) HasBadge(id BadgeID) bool {
	for _, b := range p.Badges {
		if b.ID == id {
			return true
		}
	}
	return false
}

// Reaction is an emoji reaction sent during an event.
type Reaction struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Emoji         string    `json:"emoji"`
	CreatedAt     time.Time `json:"timestamp"`
}

// Question is a Q&A entry submitted by a participant.
type Question struct {
	ID            uuid.UUID `json:"id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Text          string    `json:"text"`
	IsAnonymous   bool      `json:"is_anonymous"`
	CreatedAt     time.Time `json:"timestamp"`
	// AuthorName is empty for anonymous questions.
	AuthorName string `json:"author_name,omitempty"`
}
