package leaderboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/leaderboard"
	"github.com/nybble-vibe/backend/internal/models"
	"github.com/nybble-vibe/backend/internal/store"
)

func setup(t *testing.T, ttl time.Duration) (*engagement.Coordinator, *leaderboard.Cache, *models.Event) {
	t.Helper()
	mem := store.NewMemory()
	coord := engagement.NewCoordinator(mem, nil)
	cache, err := leaderboard.New(mem, 8, ttl)
	require.NoError(t, err)
	coord.OnCommit(cache.Hook())

	start := time.Now().UTC()
	ev, err := coord.CreateEvent(context.Background(), engagement.NewEvent{Title: "Demo", StartTime: start, EndTime: start.Add(time.Hour)})
	require.NoError(t, err)
	return coord, cache, ev
}

func join(t *testing.T, coord *engagement.Coordinator, ev *models.Event, name string) *engagement.Result {
	t.Helper()
	res, err := coord.Apply(context.Background(), engagement.Action{
		Kind: engagement.ActionJoin, EventID: ev.ID, Join: engagement.JoinPayload{DisplayName: name},
	})
	require.NoError(t, err)
	return res
}

func TestCacheInvalidatedOnCommit(t *testing.T) {
	ctx := context.Background()
	coord, cache, ev := setup(t, time.Hour)

	join(t, coord, ev, "Ada")
	first, err := cache.Get(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)

	grace := join(t, coord, ev, "Grace")
	_, err = coord.Apply(ctx, engagement.Action{
		Kind: engagement.ActionReaction, ParticipantID: grace.ParticipantID, Reaction: engagement.ReactionPayload{Emoji: "🔥"},
	})
	require.NoError(t, err)

	second, err := cache.Get(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "Grace", second[0].DisplayName)
	assert.Equal(t, 1, second[0].Rank)
	assert.Equal(t, 55, second[0].Points)
	assert.Equal(t, 2, second[1].Rank)
}

func TestCacheServesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	coord := engagement.NewCoordinator(mem, nil)
	cache, err := leaderboard.New(mem, 8, time.Hour)
	require.NoError(t, err)

	start := time.Now().UTC()
	ev, err := coord.CreateEvent(ctx, engagement.NewEvent{Title: "Demo", StartTime: start, EndTime: start.Add(time.Hour)})
	require.NoError(t, err)

	empty, err := cache.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	// No hook registered: the cached copy stays until invalidated.
	join(t, coord, ev, "Ada")
	stale, err := cache.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, stale)

	cache.Invalidate(ev.ID)
	fresh, err := cache.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, fresh, 1)
}

func TestCacheExpires(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	coord := engagement.NewCoordinator(mem, nil)
	cache, err := leaderboard.New(mem, 8, time.Nanosecond)
	require.NoError(t, err)

	start := time.Now().UTC()
	ev, err := coord.CreateEvent(ctx, engagement.NewEvent{Title: "Demo", StartTime: start, EndTime: start.Add(time.Hour)})
	require.NoError(t, err)
	_, err = cache.Get(ctx, ev.ID)
	require.NoError(t, err)

	join(t, coord, ev, "Ada")
	time.Sleep(time.Millisecond)
	got, err := cache.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCacheUnknownEvent(t *testing.T) {
	_, cache, _ := setup(t, time.Minute)
	_, err := cache.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, engagement.ErrNotFound)
}

func TestCacheDropsDeletedEvent(t *testing.T) {
	ctx := context.Background()
	coord, cache, ev := setup(t, time.Hour)
	join(t, coord, ev, "Ada")
	got, err := cache.Get(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, coord.DeleteEvent(ctx, ev.ID))
	_, err = cache.Get(ctx, ev.ID)
	assert.ErrorIs(t, err, engagement.ErrNotFound)
}
