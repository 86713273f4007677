package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/models"
)

// Report is the archive written when an event closes.
type Report struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Event       *models.Event     `json:"event"`
	Summary     *Summary          `json:"summary"`
	Leaderboard []LeaderboardRow  `json:"leaderboard"`
	Polls       []PollView        `json:"polls"`
	Questions   []models.Question `json:"questions"`
	Feedback    []FeedbackEntry   `json:"feedback"`
}

// LeaderboardRow is a participant's final standing.
type LeaderboardRow struct {
	Rank           int              `json:"rank"`
	ParticipantID  uuid.UUID        `json:"participant_id"`
	DisplayName    string           `json:"display_name"`
	Points         int              `json:"points"`
	PollVotesCount int              `json:"poll_votes_count"`
	Badges         []models.BadgeID `json:"badges"`
}

// FeedbackEntry is one submitted survey. Participant names are not included.
type FeedbackEntry struct {
	Rating       int     `json:"rating"`
	GoalAchieved *string `json:"goal_achieved,omitempty"`
	Feedback     *string `json:"feedback,omitempty"`
}

// BuildReport collects the final state of an event.
func BuildReport(ctx context.Context, r engagement.Reader, eventID uuid.UUID, now time.Time) (*Report, error) {
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
	questions, err := r.ListQuestions(ctx, eventID)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		GeneratedAt: now,
		Event:       ev,
		Summary:     summarize(ev, polls, participants),
		Leaderboard: make([]LeaderboardRow, 0, len(participants)),
		Polls:       make([]PollView, 0, len(polls)),
		Questions:   questions,
		Feedback:    []FeedbackEntry{},
	}
	for _, p := range polls {
		rep.Polls = append(rep.Polls, NewPollView(p))
	}
	for _, p := range participants {
		row := LeaderboardRow{
			Rank:           p.Rank,
			ParticipantID:  p.ID,
			DisplayName:    p.DisplayName,
			Points:         p.Points,
			PollVotesCount: p.PollVotesCount,
			Badges:         make([]models.BadgeID, 0, len(p.Badges)),
		}
		for _, b := range p.Badges {
			row.Badges = append(row.Badges, b.ID)
		}
		rep.Leaderboard = append(rep.Leaderboard, row)
		if p.Rating != nil {
			rep.Feedback = append(rep.Feedback, FeedbackEntry{Rating: *p.Rating, GoalAchieved: p.GoalAchieved, Feedback: p.Feedback})
		}
	}
	return rep, nil
}
