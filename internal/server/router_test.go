package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/leaderboard"
	"github.com/nybble-vibe/backend/internal/store"
	"github.com/nybble-vibe/backend/pkg/storage"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type fakeReports struct {
	url string
	err error
}

func (f fakeReports) ReportURL(ctx context.Context, eventID string) (string, error) {
	return f.url, f.err
}

type api struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T, reports *fakeReports) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mem := store.NewMemory()
	coord := engagement.NewCoordinator(mem, nil)
	board, err := leaderboard.New(mem, 16, time.Minute)
	require.NoError(t, err)
	coord.OnCommit(board.Hook())
	d := Deps{Coordinator: coord, Reader: mem, Leaderboard: board}
	if reports != nil {
		d.Reports = reports
	}
	return &api{t: t, router: NewRouter(d)}
}

func (a *api) do(method, path string, body any) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type idOnly struct {
	ID uuid.UUID `json:"id"`
}

type pollBody struct {
	ID      uuid.UUID `json:"id"`
	Status  string    `json:"status"`
	Options []struct {
		ID         uuid.UUID `json:"id"`
		Text       string    `json:"text"`
		Votes      int       `json:"votes"`
		Percentage float64   `json:"percentage"`
	} `json:"options"`
	TotalVotes int `json:"total_votes"`
}

type resultBody struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	PointsEarned  int       `json:"points_earned"`
	TotalPoints   int       `json:"total_points"`
	NewRank       int       `json:"new_rank"`
	BadgesEarned  []struct {
		ID string `json:"id"`
	} `json:"badges_earned"`
}

func (a *api) createEvent() uuid.UUID {
	a.t.Helper()
	start := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	code, env := a.do(http.MethodPost, "/api/events", gin.H{
		"title":        "<b>Quarterly</b> all-hands",
		"start_time":   start.Format(time.RFC3339),
		"end_time":     start.Add(time.Hour).Format(time.RFC3339),
		"agenda_items": []gin.H{{"title": "Welcome", "duration": 5}, {"title": "Roadmap", "duration": 30}},
	})
	require.Equal(a.t, http.StatusCreated, code, env.Error)
	return decode[idOnly](a.t, env).ID
}

func (a *api) setPhase(eventID uuid.UUID, phase string) {
	a.t.Helper()
	code, env := a.do(http.MethodPatch, "/api/events/"+eventID.String()+"/phase", gin.H{"phase": phase})
	require.Equal(a.t, http.StatusOK, code, env.Error)
}

func (a *api) join(eventID uuid.UUID, name string) resultBody {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/api/events/"+eventID.String()+"/join", gin.H{"display_name": name})
	require.Equal(a.t, http.StatusCreated, code, env.Error)
	return decode[resultBody](a.t, env)
}

func (a *api) launchPoll(eventID uuid.UUID) pollBody {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/api/events/"+eventID.String()+"/polls", gin.H{
		"question":        "Which topic next?",
		"show_results_to": "voted",
		"options":         []gin.H{{"text": "Pricing"}, {"text": "Hiring"}, {"text": "Infra"}},
	})
	require.Equal(a.t, http.StatusCreated, code, env.Error)
	p := decode[pollBody](a.t, env)
	assert.Equal(a.t, "draft", p.Status)

	code, env = a.do(http.MethodPatch, "/api/polls/"+p.ID.String()+"/status", gin.H{"status": "active"})
	require.Equal(a.t, http.StatusOK, code, env.Error)
	return decode[pollBody](a.t, env)
}

func TestHealth(t *testing.T) {
	a := newAPI(t, nil)
	code, env := a.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
}

func TestEventLifecycleOverHTTP(t *testing.T) {
	a := newAPI(t, nil)
	eventID := a.createEvent()

	code, env := a.do(http.MethodGet, "/api/events/"+eventID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	ev := decode[struct {
		Title       string `json:"title"`
		Phase       string `json:"phase"`
		AgendaItems []struct {
			Title string `json:"title"`
		} `json:"agenda_items"`
	}](t, env)
	assert.Equal(t, "Quarterly all-hands", ev.Title)
	assert.Equal(t, "pre", ev.Phase)
	assert.Len(t, ev.AgendaItems, 2)

	a.setPhase(eventID, "live")
	code, env = a.do(http.MethodPatch, "/api/events/"+eventID.String()+"/phase", gin.H{"phase": "pre"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "invalid_transition", env.Code)

	code, env = a.do(http.MethodPatch, "/api/events/"+eventID.String()+"/phase", gin.H{"phase": "finished"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_input", env.Code)
}

func TestCreateEventValidation(t *testing.T) {
	a := newAPI(t, nil)
	code, _ := a.do(http.MethodPost, "/api/events", gin.H{"title": "No times"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := a.do(http.MethodPost, "/api/events", gin.H{
		"title":      "Backwards",
		"start_time": "2026-09-01T16:00:00Z",
		"end_time":   "2026-09-01T15:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error, "end_time")
}

func TestVoteFlowOverHTTP(t *testing.T) {
	a := newAPI(t, nil)
	eventID := a.createEvent()
	a.setPhase(eventID, "live")
	ada := a.join(eventID, "Ada")
	bob := a.join(eventID, "Bob")
	assert.Equal(t, 50, ada.TotalPoints)

	p := a.launchPoll(eventID)
	votePath := "/api/polls/" + p.ID.String() + "/vote"
	resultsPath := "/api/polls/" + p.ID.String() + "/results"

	code, env := a.do(http.MethodGet, resultsPath+"?participant_id="+bob.ParticipantID.String(), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = a.do(http.MethodPost, votePath, gin.H{"participant_id": ada.ParticipantID, "option_id": p.Options[1].ID})
	require.Equal(t, http.StatusCreated, code, env.Error)
	res := decode[resultBody](t, env)
	assert.Equal(t, 15, res.PointsEarned)
	assert.Equal(t, 65, res.TotalPoints)
	assert.Equal(t, 1, res.NewRank)
	require.Len(t, res.BadgesEarned, 1)
	assert.Equal(t, "poll_master", res.BadgesEarned[0].ID)

	code, env = a.do(http.MethodPost, votePath, gin.H{"participant_id": ada.ParticipantID, "option_id": p.Options[0].ID})
	assert.Equal(t, http.StatusPreconditionFailed, code)
	assert.Equal(t, "precondition_failed", env.Code)

	code, env = a.do(http.MethodGet, resultsPath+"?participant_id="+ada.ParticipantID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	view := decode[pollBody](t, env)
	assert.Equal(t, 1, view.TotalVotes)
	assert.InDelta(t, 100.0, view.Options[1].Percentage, 1e-9)

	code, env = a.do(http.MethodGet, "/api/events/"+eventID.String()+"/leaderboard", nil)
	require.Equal(t, http.StatusOK, code)
	board := decode[[]leaderboard.Entry](t, env)
	require.Len(t, board, 2)
	assert.Equal(t, ada.ParticipantID, board[0].ParticipantID)
	assert.Equal(t, 65, board[0].Points)
	assert.Equal(t, 2, board[1].Rank)

	code, env = a.do(http.MethodGet, "/api/events/"+eventID.String()+"/polls", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]pollBody](t, env), 1)

	// Second poll cannot go live while the first is active.
	code, env = a.do(http.MethodPost, "/api/events/"+eventID.String()+"/polls", gin.H{
		"question": "Lunch?",
		"options":  []gin.H{{"text": "Yes"}, {"text": "No"}},
	})
	require.Equal(t, http.StatusCreated, code)
	second := decode[pollBody](t, env)
	code, _ = a.do(http.MethodPatch, "/api/polls/"+second.ID.String()+"/status", gin.H{"status": "active"})
	assert.Equal(t, http.StatusPreconditionFailed, code)
}

func TestCreatePollValidation(t *testing.T) {
	a := newAPI(t, nil)
	eventID := a.createEvent()
	code, env := a.do(http.MethodPost, "/api/events/"+eventID.String()+"/polls", gin.H{
		"question": "Only one?",
		"options":  []gin.H{{"text": "Yes"}},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error, "between 2 and 10")

	code, _ = a.do(http.MethodPost, "/api/events/"+uuid.NewString()+"/polls", gin.H{
		"question": "Where?",
		"options":  []gin.H{{"text": "A"}, {"text": "B"}},
	})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestParticipantActionsOverHTTP(t *testing.T) {
	a := newAPI(t, nil)
	eventID := a.createEvent()
	a.setPhase(eventID, "live")
	ada := a.join(eventID, "Ada")
	base := "/api/participants/" + ada.ParticipantID.String()

	code, env := a.do(http.MethodPost, base+"/reaction", gin.H{"emoji": "🔥"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	assert.Equal(t, 55, decode[resultBody](t, env).TotalPoints)

	code, env = a.do(http.MethodPost, base+"/reaction", gin.H{"emoji": "🍕"})
	assert.Equal(t, http.StatusPreconditionFailed, code)

	code, env = a.do(http.MethodPost, base+"/question", gin.H{"text": "<i>When</i> is the demo?", "is_anonymous": true})
	require.Equal(t, http.StatusCreated, code, env.Error)
	assert.Equal(t, 80, decode[resultBody](t, env).TotalPoints)

	code, env = a.do(http.MethodPost, base+"/feedback", gin.H{"rating": 5})
	assert.Equal(t, http.StatusPreconditionFailed, code)

	a.setPhase(eventID, "post")
	code, env = a.do(http.MethodPost, base+"/feedback", gin.H{"rating": 9})
	assert.Equal(t, http.StatusBadRequest, code)
	code, env = a.do(http.MethodPost, base+"/feedback", gin.H{"rating": 5, "goal_achieved": "yes", "feedback": "Great"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	res := decode[resultBody](t, env)
	assert.Equal(t, 120, res.TotalPoints)

	code, env = a.do(http.MethodGet, base+"/stats", nil)
	require.Equal(t, http.StatusOK, code)
	stats := decode[struct {
		TotalPoints    int `json:"total_points"`
		Rank           int `json:"rank"`
		ReactionsCount int `json:"reactions_count"`
		QuestionsCount int `json:"questions_count"`
		Badges         []struct {
			ID string `json:"id"`
		} `json:"badges"`
	}](t, env)
	assert.Equal(t, 120, stats.TotalPoints)
	assert.Equal(t, 1, stats.Rank)
	assert.Equal(t, 1, stats.ReactionsCount)
	assert.Equal(t, 1, stats.QuestionsCount)
	assert.Len(t, stats.Badges, 2)

	code, env = a.do(http.MethodGet, "/api/events/"+eventID.String()+"/questions", nil)
	require.Equal(t, http.StatusOK, code)
	qs := decode[[]struct {
		Text       string `json:"text"`
		AuthorName string `json:"author_name"`
	}](t, env)
	require.Len(t, qs, 1)
	assert.Equal(t, "When is the demo?", qs[0].Text)
	assert.Empty(t, qs[0].AuthorName)

	code, env = a.do(http.MethodGet, "/api/events/"+eventID.String()+"/summary", nil)
	require.Equal(t, http.StatusOK, code)
	summary := decode[struct {
		ParticipantCount int      `json:"participant_count"`
		AverageRating    *float64 `json:"average_rating"`
		TotalPoints      int      `json:"total_points"`
	}](t, env)
	assert.Equal(t, 1, summary.ParticipantCount)
	require.NotNil(t, summary.AverageRating)
	assert.InDelta(t, 5.0, *summary.AverageRating, 1e-9)
	assert.Equal(t, 120, summary.TotalPoints)
}

func TestRecomputeAndDelete(t *testing.T) {
	a := newAPI(t, nil)
	eventID := a.createEvent()
	a.setPhase(eventID, "live")
	a.join(eventID, "Ada")

	code, env := a.do(http.MethodPost, "/api/events/"+eventID.String()+"/recompute", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	standings := decode[[]engagement.Standing](t, env)
	require.Len(t, standings, 1)
	assert.Equal(t, 1, standings[0].Rank)

	code, _ = a.do(http.MethodDelete, "/api/events/"+eventID.String(), nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = a.do(http.MethodGet, "/api/events/"+eventID.String(), nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = a.do(http.MethodGet, "/api/events/"+eventID.String()+"/participants", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMalformedIDs(t *testing.T) {
	a := newAPI(t, nil)
	for _, path := range []string{
		"/api/events/nope",
		"/api/events/nope/summary",
		"/api/polls/nope/results",
		"/api/participants/nope/stats",
	} {
		code, env := a.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, code, path)
		assert.Equal(t, "invalid_input", env.Code, path)
	}
}

func TestReportURL(t *testing.T) {
	a := newAPI(t, nil)
	eventID := a.createEvent()
	code, _ := a.do(http.MethodGet, "/api/events/"+eventID.String()+"/report", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	reports := &fakeReports{err: storage.ErrObjectNotFound}
	a = newAPI(t, reports)
	eventID = a.createEvent()
	path := "/api/events/" + eventID.String() + "/report"

	code, _ = a.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, code)

	a.setPhase(eventID, "closed")
	code, _ = a.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, code)

	reports.err = nil
	reports.url = "https://reports.example/" + eventID.String()
	code, env := a.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, reports.url, decode[map[string]string](t, env)["url"])

	reports.err = errors.New("throttled")
	code, _ = a.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestLeaveOverHTTP(t *testing.T) {
	a := newAPI(t, nil)
	eventID := a.createEvent()
	ada := a.join(eventID, "Ada")
	path := "/api/participants/" + ada.ParticipantID.String() + "/leave"

	code, env := a.do(http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	p := decode[struct {
		LeaveTime *time.Time `json:"leave_time"`
		Points    int        `json:"points"`
	}](t, env)
	assert.NotNil(t, p.LeaveTime)
	assert.Equal(t, 50, p.Points)

	code, env = a.do(http.MethodPost, path, nil)
	assert.Equal(t, http.StatusPreconditionFailed, code)
	assert.Equal(t, "precondition_failed", env.Code)
}

func TestPartialSettingsKeepDefaults(t *testing.T) {
	start := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		settings   gin.H
		wantAnon   bool
		wantStatus int
	}{
		{"unrelated field only", gin.H{"show_leaderboard": true}, true, http.StatusCreated},
		{"empty object", gin.H{}, true, http.StatusCreated},
		{"anonymous switched off", gin.H{"allow_anonymous_questions": false}, false, http.StatusPreconditionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAPI(t, nil)
			code, env := a.do(http.MethodPost, "/api/events", gin.H{
				"title":      "Town hall",
				"start_time": start.Format(time.RFC3339),
				"end_time":   start.Add(time.Hour).Format(time.RFC3339),
				"settings":   tt.settings,
			})
			require.Equal(t, http.StatusCreated, code, env.Error)
			ev := decode[struct {
				ID       uuid.UUID `json:"id"`
				Settings struct {
					AllowAnonymousQuestions bool `json:"allow_anonymous_questions"`
					ShowLeaderboard         bool `json:"show_leaderboard"`
				} `json:"settings"`
			}](t, env)
			assert.Equal(t, tt.wantAnon, ev.Settings.AllowAnonymousQuestions)
			assert.True(t, ev.Settings.ShowLeaderboard)

			a.setPhase(ev.ID, "live")
			ada := a.join(ev.ID, "Ada")
			code, env = a.do(http.MethodPost, "/api/participants/"+ada.ParticipantID.String()+"/question", gin.H{
				"text": "Who decides?", "is_anonymous": true,
			})
			assert.Equal(t, tt.wantStatus, code, env.Error)
		})
	}
}

func TestPollOptionPositions(t *testing.T) {
	a := newAPI(t, nil)
	eventID := a.createEvent()
	code, env := a.do(http.MethodPost, "/api/events/"+eventID.String()+"/polls", gin.H{
		"question": "Order?",
		"options":  []gin.H{{"text": "A", "position": 1}, {"text": "B", "position": 0}, {"text": "C"}},
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	p := decode[struct {
		Options []struct {
			Text     string `json:"text"`
			Position int    `json:"position"`
		} `json:"options"`
	}](t, env)

	got := map[string]int{}
	for _, o := range p.Options {
		got[o.Text] = o.Position
	}
	// An omitted position falls back to the option's index.
	assert.Equal(t, map[string]int{"A": 1, "B": 0, "C": 2}, got)

	code, _ = a.do(http.MethodPost, "/api/events/"+eventID.String()+"/polls", gin.H{
		"question": "Negative?",
		"options":  []gin.H{{"text": "A", "position": -1}, {"text": "B"}},
	})
	assert.Equal(t, http.StatusBadRequest, code)
}
