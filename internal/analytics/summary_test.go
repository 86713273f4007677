package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nybble-vibe/backend/internal/analytics"
	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/models"
	"github.com/nybble-vibe/backend/internal/store"
)

func TestNewPollView(t *testing.T) {
	p := models.Poll{Options: []models.PollOption{{Votes: 3}, {Votes: 1}, {Votes: 0}}}
	v := analytics.NewPollView(p)
	assert.Equal(t, 4, v.TotalVotes)
	assert.InDelta(t, 75.0, v.Options[0].Percentage, 1e-9)
	assert.InDelta(t, 25.0, v.Options[1].Percentage, 1e-9)
	assert.Zero(t, v.Options[2].Percentage)

	empty := analytics.NewPollView(models.Poll{Options: []models.PollOption{{}, {}}})
	assert.Zero(t, empty.TotalVotes)
	assert.Zero(t, empty.Options[0].Percentage)
}

// closedEvent runs a small event through its lifecycle: two participants, one vote, feedback from one.
func closedEvent(t *testing.T) (*store.Memory, *models.Event) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	coord := engagement.NewCoordinator(mem, nil)
	start := time.Now().UTC()
	ev, err := coord.CreateEvent(ctx, engagement.NewEvent{Title: "Retro", StartTime: start, EndTime: start.Add(time.Hour)})
	require.NoError(t, err)
	_, err = coord.ChangePhase(ctx, ev.ID, models.PhaseLive)
	require.NoError(t, err)

	join := func(name string) *engagement.Result {
		res, err := coord.Apply(ctx, engagement.Action{Kind: engagement.ActionJoin, EventID: ev.ID, Join: engagement.JoinPayload{DisplayName: name}})
		require.NoError(t, err)
		return res
	}
	ada, bob := join("Ada"), join("Bob")

	poll, err := coord.CreatePoll(ctx, ev.ID, engagement.NewPoll{Question: "Useful?", Options: []engagement.NewPollOption{{Text: "Yes"}, {Text: "No"}}})
	require.NoError(t, err)
	poll, err = coord.ChangePollStatus(ctx, poll.ID, models.PollActive)
	require.NoError(t, err)
	_, err = coord.Apply(ctx, engagement.Action{
		Kind: engagement.ActionVote, ParticipantID: ada.ParticipantID,
		Vote: engagement.VotePayload{PollID: poll.ID, OptionID: poll.Options[0].ID},
	})
	require.NoError(t, err)
	_, err = coord.Apply(ctx, engagement.Action{
		Kind: engagement.ActionQuestion, ParticipantID: bob.ParticipantID,
		Question: engagement.QuestionPayload{Text: "Next steps?", IsAnonymous: true},
	})
	require.NoError(t, err)

	_, err = coord.ChangePhase(ctx, ev.ID, models.PhasePost)
	require.NoError(t, err)
	_, err = coord.Apply(ctx, engagement.Action{
		Kind: engagement.ActionFeedback, ParticipantID: ada.ParticipantID,
		Feedback: engagement.FeedbackPayload{Rating: 4, GoalAchieved: models.GoalPartially},
	})
	require.NoError(t, err)
	_, err = coord.ChangePhase(ctx, ev.ID, models.PhaseClosed)
	require.NoError(t, err)
	return mem, ev
}

func TestSummarize(t *testing.T) {
	mem, ev := closedEvent(t)
	s, err := analytics.Summarize(context.Background(), mem, ev.ID)
	require.NoError(t, err)

	assert.Equal(t, models.PhaseClosed, s.Phase)
	assert.Equal(t, 2, s.ParticipantCount)
	assert.Equal(t, 1, s.PollsCount)
	assert.Equal(t, 1, s.ActivePollsCount)
	assert.Equal(t, 1, s.TotalVotes)
	assert.Equal(t, 1, s.TotalQuestions)
	assert.Equal(t, 1, s.FeedbackCount)
	require.NotNil(t, s.AverageRating)
	assert.InDelta(t, 4.0, *s.AverageRating, 1e-9)
	assert.Equal(t, 1, s.GoalBreakdown[models.GoalPartially])
	// Ada: 50+15+40, Bob: 50+25.
	assert.Equal(t, 180, s.TotalPoints)
	assert.Equal(t, 1, s.BadgesAwarded[string(models.BadgeFullJourney)])
	assert.Equal(t, 2, s.BadgesAwarded[string(models.BadgeTop3)])
}

func TestBuildReport(t *testing.T) {
	mem, ev := closedEvent(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	rep, err := analytics.BuildReport(context.Background(), mem, ev.ID, now)
	require.NoError(t, err)

	assert.Equal(t, now, rep.GeneratedAt)
	require.Len(t, rep.Leaderboard, 2)
	assert.Equal(t, "Ada", rep.Leaderboard[0].DisplayName)
	assert.Equal(t, 105, rep.Leaderboard[0].Points)
	assert.Equal(t, 1, rep.Leaderboard[0].Rank)
	require.Len(t, rep.Polls, 1)
	assert.InDelta(t, 100.0, rep.Polls[0].Options[0].Percentage, 1e-9)
	require.Len(t, rep.Questions, 1)
	assert.Empty(t, rep.Questions[0].AuthorName)
	require.Len(t, rep.Feedback, 1)
	assert.Equal(t, 4, rep.Feedback[0].Rating)
}

func TestSummarizeUnknownEvent(t *testing.T) {
	_, err := analytics.Summarize(context.Background(), store.NewMemory(), [16]byte{9})
	assert.ErrorIs(t, err, engagement.ErrNotFound)
}
