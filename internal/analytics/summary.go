package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/models"
)

// Summary is the engagement overview of one event.
type Summary struct {
	EventID          uuid.UUID      `json:"id"`
	Title            string         `json:"title"`
	Phase            models.Phase   `json:"phase"`
	StartTime        time.Time      `json:"start_time"`
	EndTime          time.Time      `json:"end_time"`
	ParticipantCount int            `json:"participant_count"`
	ActivePollsCount int            `json:"active_polls_count"`
	PollsCount       int            `json:"polls_count"`
	TotalVotes       int            `json:"total_votes"`
	TotalReactions   int            `json:"total_reactions"`
	TotalQuestions   int            `json:"total_questions"`
	TotalPoints      int            `json:"total_points"`
	FeedbackCount    int            `json:"feedback_count"`
	AverageRating    *float64       `json:"average_rating,omitempty"`
	GoalBreakdown    map[string]int `json:"goal_breakdown"`
	BadgesAwarded    map[string]int `json:"badges_awarded"`
}

// OptionView is a poll option with its share of the votes.
type OptionView struct {
	models.PollOption
	Percentage float64 `json:"percentage"`
}

// PollView is a poll with totals and per-option percentages.
type PollView struct {
	models.Poll
	Options    []OptionView `json:"options"`
	TotalVotes int          `json:"total_votes"`
}

// NewPollView computes vote percentages for p. A poll without votes reports 0 for every option.
func NewPollView(p models.Poll) PollView {
	total := p.TotalVotes()
	v := PollView{Poll: p, TotalVotes: total, Options: make([]OptionView, len(p.Options))}
	for i, o := range p.Options {
		v.Options[i] = OptionView{PollOption: o}
		if total > 0 {
			v.Options[i].Percentage = float64(o.Votes) / float64(total) * 100
		}
	}
	return v
}

// Summarize aggregates participants and polls of an event.
func Summarize(ctx context.Context, r engagement.Reader, eventID uuid.UUID) (*Summary, error) {
	ev, err := r.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	polls, err := r.ListPolls(ctx, eventID)
	if err != nil {
		return nil, err
	}
	participants, err := r.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return summarize(ev, polls, participants), nil
}

func summarize(ev *models.Event, polls []models.Poll, participants []models.Participant) *Summary {
	s := &Summary{
		EventID:          ev.ID,
		Title:            ev.Title,
		Phase:            ev.Phase,
		StartTime:        ev.StartTime,
		EndTime:          ev.EndTime,
		ParticipantCount: len(participants),
		PollsCount:       len(polls),
		GoalBreakdown:    map[string]int{models.GoalYes: 0, models.GoalPartially: 0, models.GoalNo: 0},
		BadgesAwarded:    map[string]int{},
	}
	for _, p := range polls {
		if p.Status == models.PollActive {
			s.ActivePollsCount++
		}
		s.TotalVotes += p.TotalVotes()
	}

	ratingSum := 0
	for _, p := range participants {
		s.TotalReactions += p.ReactionsCount
		s.TotalQuestions += p.QuestionsCount
		s.TotalPoints += p.Points
		if p.Rating != nil {
			s.FeedbackCount++
			ratingSum += *p.Rating
		}
		if p.GoalAchieved != nil {
			s.GoalBreakdown[*p.GoalAchieved]++
		}
		for _, b := range p.Badges {
			s.BadgesAwarded[string(b.ID)]++
		}
	}
	if s.FeedbackCount > 0 {
		avg := float64(ratingSum) / float64(s.FeedbackCount)
		s.AverageRating = &avg
	}
	return s
}
