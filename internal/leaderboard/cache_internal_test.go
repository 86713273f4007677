package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/models"
	"github.com/nybble-vibe/backend/internal/store"
)

// interleavedReader runs during before serving ListParticipants, standing in
// for a commit that lands while a leaderboard is being loaded.
type interleavedReader struct {
	engagement.Reader
	during func()
}

func (r *interleavedReader) ListParticipants(ctx context.Context, eventID uuid.UUID) ([]models.Participant, error) {
	if r.during != nil {
		r.during()
	}
	return r.Reader.ListParticipants(ctx, eventID)
}

func TestLoadRacingCommitIsNotCached(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	coord := engagement.NewCoordinator(mem, nil)
	start := time.Now().UTC()
	ev, err := coord.CreateEvent(ctx, engagement.NewEvent{Title: "Demo", StartTime: start, EndTime: start.Add(time.Hour)})
	require.NoError(t, err)
	other, err := coord.CreateEvent(ctx, engagement.NewEvent{Title: "Other", StartTime: start, EndTime: start.Add(time.Hour)})
	require.NoError(t, err)

	tests := []struct {
		name    string
		outcome engagement.Outcome
	}{
		{"event deleted", engagement.Outcome{Kind: engagement.OutcomeEventDeleted, EventID: ev.ID}},
		{"participant joined", engagement.Outcome{Kind: string(engagement.ActionJoin), EventID: ev.ID}},
		{"change on another event", engagement.Outcome{Kind: string(engagement.ActionReaction), EventID: other.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &interleavedReader{Reader: mem}
			c, err := New(r, 8, time.Hour)
			require.NoError(t, err)
			hook := c.Hook()
			r.during = func() { require.NoError(t, hook(ctx, tt.outcome)) }

			_, err = c.Get(ctx, ev.ID)
			require.NoError(t, err)
			assert.False(t, c.lru.Contains(ev.ID))

			r.during = nil
			_, err = c.Get(ctx, ev.ID)
			require.NoError(t, err)
			assert.True(t, c.lru.Contains(ev.ID))
		})
	}
}

func TestInvalidateKeepsNoPerEventState(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	coord := engagement.NewCoordinator(mem, nil)
	c, err := New(mem, 8, time.Hour)
	require.NoError(t, err)
	coord.OnCommit(c.Hook())

	start := time.Now().UTC()
	for i := 0; i < 20; i++ {
		ev, err := coord.CreateEvent(ctx, engagement.NewEvent{Title: "Churn", StartTime: start, EndTime: start.Add(time.Hour)})
		require.NoError(t, err)
		_, err = c.Get(ctx, ev.ID)
		require.NoError(t, err)
		require.NoError(t, coord.DeleteEvent(ctx, ev.ID))
		assert.False(t, c.lru.Contains(ev.ID))
	}
	assert.Zero(t, c.lru.Len())
	assert.EqualValues(t, 20, c.generation())
}
