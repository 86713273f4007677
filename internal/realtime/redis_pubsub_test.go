package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/models"
)

type published struct {
	channel string
	payload redisPayload
}

type fakeRedis struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	var p redisPayload
	_ = json.Unmarshal(message.([]byte), &p)
	f.mu.Lock()
	f.sent = append(f.sent, published{channel: channel, payload: p})
	f.mu.Unlock()
	cmd.SetVal(1)
	return cmd
}

func types(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func TestMessagesForVote(t *testing.T) {
	eventID, pid := uuid.New(), uuid.New()
	vote := &models.PollVote{PollID: uuid.New(), OptionID: uuid.New(), ParticipantID: pid}
	o := engagement.Outcome{
		Kind:      string(engagement.ActionVote),
		EventID:   eventID,
		Result:    &engagement.Result{Kind: engagement.ActionVote, ParticipantID: pid, Vote: vote},
		Standings: []engagement.Standing{{ParticipantID: pid, Points: 65, Rank: 1}},
		Earned:    map[uuid.UUID][]models.Badge{pid: {{ID: models.BadgePollMaster}}},
	}
	assert.Equal(t, []string{TypeVoteCast, TypeLeaderboardUpdated, TypeBadgeEarned}, types(Messages(o)))
}

func TestMessagesHideAnonymousAuthor(t *testing.T) {
	q := &models.Question{ID: uuid.New(), ParticipantID: uuid.New(), Text: "why?", IsAnonymous: true}
	msgs := Messages(engagement.Outcome{
		Kind:   string(engagement.ActionQuestion),
		Result: &engagement.Result{Kind: engagement.ActionQuestion, Question: q},
	})
	require.Len(t, msgs, 1)
	data := msgs[0].Data.(fields)
	assert.NotContains(t, data, "participant_id")
	assert.Equal(t, "why?", data["text"])
}

func TestMessagesForLifecycle(t *testing.T) {
	poll := &models.Poll{ID: uuid.New(), Status: models.PollClosed}
	assert.Equal(t, []string{TypePollClosed}, types(Messages(engagement.Outcome{Kind: engagement.OutcomePollStatus, Poll: poll})))

	ev := &models.Event{Phase: models.PhasePost}
	assert.Equal(t, []string{TypePhaseChanged}, types(Messages(engagement.Outcome{Kind: engagement.OutcomePhaseChanged, Event: ev})))
	assert.Equal(t, []string{TypeEventDeleted}, types(Messages(engagement.Outcome{Kind: engagement.OutcomeEventDeleted})))
}

func TestHookPublishesToEventChannel(t *testing.T) {
	rdb := &fakeRedis{}
	ps := NewRedisPubSub(rdb, nil)
	eventID := uuid.New()

	err := ps.Hook()(context.Background(), engagement.Outcome{
		Kind:    engagement.OutcomePhaseChanged,
		EventID: eventID,
		Event:   &models.Event{ID: eventID, Phase: models.PhaseLive},
	})
	require.NoError(t, err)
	require.Len(t, rdb.sent, 1)
	assert.Equal(t, "event:"+eventID.String(), rdb.sent[0].channel)
	assert.Equal(t, TypePhaseChanged, rdb.sent[0].payload.Event)
	assert.JSONEq(t, `{"phase":"live"}`, string(rdb.sent[0].payload.Data))
}

func TestHookReportsPublishFailure(t *testing.T) {
	ps := NewRedisPubSub(&fakeRedis{err: errors.New("connection refused")}, nil)
	err := ps.Hook()(context.Background(), engagement.Outcome{Kind: engagement.OutcomeEventDeleted, EventID: uuid.New()})
	assert.Error(t, err)
}

func TestMessagesForLeave(t *testing.T) {
	p := &models.Participant{ID: uuid.New(), AttendancePercent: 80}
	msgs := Messages(engagement.Outcome{Kind: engagement.OutcomeParticipantLeft, Participant: p})
	require.Len(t, msgs, 1)
	assert.Equal(t, TypeParticipantLeft, msgs[0].Type)
	assert.Equal(t, 80, msgs[0].Data.(fields)["attendance_percent"])
}
