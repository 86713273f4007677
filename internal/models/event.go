package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Phase is the lifecycle stage of an event. Phases only move forward.
type Phase string

const (
	PhasePre    Phase = "pre"
	PhaseLive   Phase = "live"
	PhasePost   Phase = "post"
	PhaseClosed Phase = "closed"
)

// Phases lists every phase in lifecycle order.
var Phases = []Phase{PhasePre, PhaseLive, PhasePost, PhaseClosed}

// Index returns the position of p in the lifecycle ordering, or -1 if p is unknown.
func (p Phase) Index() int {
	for i, ph := range Phases {
		if ph == p {
			return i
		}
	}
	return -1
}

// EventSettings holds per-event feature toggles.
type EventSettings struct {
	AllowAnonymousQuestions bool `json:"allow_anonymous_questions"`
	ShowLeaderboard         bool `json:"show_leaderboard"`
	RequirePreparation      bool `json:"require_preparation"`
	EnableAIQuestions       bool `json:"enable_ai_questions"`
}

// DefaultEventSettings returns the settings applied when none are given.
func DefaultEventSettings() EventSettings {
	return EventSettings{AllowAnonymousQuestions: true, ShowLeaderboard: true}
}

// UnmarshalJSON decodes onto the defaults, so fields missing from b keep their default value.
func (s *EventSettings) UnmarshalJSON(b []byte) error {
	type plain EventSettings
	p := plain(DefaultEventSettings())
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*s = EventSettings(p)
	return nil
}

// Event represents a meeting with a lifecycle phase and a time window.
type Event struct {
	ID          uuid.UUID     `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Phase       Phase         `json:"phase"`
	MeetingURL  string        `json:"meeting_url,omitempty"`
	Settings    EventSettings `json:"settings"`
	AgendaItems []AgendaItem  `json:"agenda_items"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// AgendaItem is one slot of an event agenda.
type AgendaItem struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	Title     string    `json:"title"`
	Duration  int       `json:"duration"` // minutes
	Presenter string    `json:"presenter,omitempty"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}
