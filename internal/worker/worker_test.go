package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nybble-vibe/backend/internal/analytics"
	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/models"
	"github.com/nybble-vibe/backend/internal/store"
	"github.com/nybble-vibe/backend/pkg/queue"
)

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (f *fakeUploader) PutReport(ctx context.Context, eventID string, body io.Reader, size int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if int64(len(b)) != size {
		return "", errors.New("size mismatch")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[eventID] = b
	return "s3://reports/" + eventID + ".json", nil
}

type fakeEnqueuer struct {
	payloads []queue.EventReportPayload
}

func (f *fakeEnqueuer) EnqueueEventReport(ctx context.Context, p queue.EventReportPayload) error {
	f.payloads = append(f.payloads, p)
	return nil
}

func reportJob(t *testing.T, eventID uuid.UUID) *queue.Job {
	t.Helper()
	body, err := json.Marshal(queue.EventReportPayload{EventID: eventID, ClosedAt: time.Now().UTC()})
	require.NoError(t, err)
	return &queue.Job{ID: uuid.NewString(), Type: queue.JobTypeEventReport, Payload: body}
}

func liveEvent(t *testing.T, coord *engagement.Coordinator) *models.Event {
	t.Helper()
	ctx := context.Background()
	start := time.Now().UTC()
	ev, err := coord.CreateEvent(ctx, engagement.NewEvent{Title: "Launch", StartTime: start, EndTime: start.Add(time.Hour)})
	require.NoError(t, err)
	_, err = coord.ChangePhase(ctx, ev.ID, models.PhaseLive)
	require.NoError(t, err)
	_, err = coord.Apply(ctx, engagement.Action{Kind: engagement.ActionJoin, EventID: ev.ID, Join: engagement.JoinPayload{DisplayName: "Ada"}})
	require.NoError(t, err)
	return ev
}

func TestProcessUploadsReport(t *testing.T) {
	mem := store.NewMemory()
	coord := engagement.NewCoordinator(mem, nil)
	ev := liveEvent(t, coord)

	up := &fakeUploader{}
	p := NewReportProcessor(mem, up, nil, nil)
	require.NoError(t, p.Process(context.Background(), reportJob(t, ev.ID)))

	raw, ok := up.objects[ev.ID.String()]
	require.True(t, ok)
	var rep analytics.Report
	require.NoError(t, json.Unmarshal(raw, &rep))
	assert.Equal(t, ev.ID, rep.Event.ID)
	require.Len(t, rep.Leaderboard, 1)
	assert.Equal(t, 50, rep.Leaderboard[0].Points)
}

func TestProcessSkipsDeletedEvent(t *testing.T) {
	up := &fakeUploader{}
	p := NewReportProcessor(store.NewMemory(), up, nil, nil)
	require.NoError(t, p.Process(context.Background(), reportJob(t, uuid.New())))
	assert.Empty(t, up.objects)
}

func TestProcessErrors(t *testing.T) {
	mem := store.NewMemory()
	ev := liveEvent(t, engagement.NewCoordinator(mem, nil))

	p := NewReportProcessor(mem, &fakeUploader{err: errors.New("access denied")}, nil, nil)
	err := p.Process(context.Background(), reportJob(t, ev.ID))
	assert.ErrorContains(t, err, "access denied")

	err = p.Process(context.Background(), &queue.Job{Type: "recording_upload"})
	assert.ErrorContains(t, err, "unknown job type")

	err = p.Process(context.Background(), &queue.Job{Type: queue.JobTypeEventReport, Payload: []byte("{")})
	assert.ErrorContains(t, err, "unmarshal payload")
}

func TestEnqueueOnClose(t *testing.T) {
	mem := store.NewMemory()
	coord := engagement.NewCoordinator(mem, nil)
	q := &fakeEnqueuer{}
	coord.OnCommit(EnqueueOnClose(q))
	ev := liveEvent(t, coord)
	ctx := context.Background()

	_, err := coord.ChangePhase(ctx, ev.ID, models.PhasePost)
	require.NoError(t, err)
	assert.Empty(t, q.payloads)

	_, err = coord.ChangePhase(ctx, ev.ID, models.PhaseClosed)
	require.NoError(t, err)
	require.Len(t, q.payloads, 1)
	assert.Equal(t, ev.ID, q.payloads[0].EventID)

	// Repeating the current phase commits nothing.
	_, err = coord.ChangePhase(ctx, ev.ID, models.PhaseClosed)
	require.NoError(t, err)
	assert.Len(t, q.payloads, 1)
}
