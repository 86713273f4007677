package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/models"
)

// Memory is an in-process engagement.Store. Each Atomic call works on a copy of
// one event's data that replaces the live copy only when fn succeeds.
type Memory struct {
	mu         sync.RWMutex
	events     map[uuid.UUID]*eventData
	pollEvent  map[uuid.UUID]uuid.UUID
	partEvent  map[uuid.UUID]uuid.UUID
	eventLocks map[uuid.UUID]*sync.Mutex
}

type voteKey struct {
	poll, participant uuid.UUID
}

type eventData struct {
	event        models.Event
	polls        map[uuid.UUID]*models.Poll
	pollOrder    []uuid.UUID
	votes        map[voteKey]models.PollVote
	participants map[uuid.UUID]*models.Participant
	partOrder    []uuid.UUID
	reactions    map[uuid.UUID][]models.Reaction
	questions    []models.Question
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		events:     make(map[uuid.UUID]*eventData),
		pollEvent:  make(map[uuid.UUID]uuid.UUID),
		partEvent:  make(map[uuid.UUID]uuid.UUID),
		eventLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (d *eventData) clone() *eventData {
	cp := &eventData{
		event:        cloneEvent(&d.event),
		polls:        make(map[uuid.UUID]*models.Poll, len(d.polls)),
		pollOrder:    slices.Clone(d.pollOrder),
		votes:        make(map[voteKey]models.PollVote, len(d.votes)),
		participants: make(map[uuid.UUID]*models.Participant, len(d.participants)),
		partOrder:    slices.Clone(d.partOrder),
		reactions:    make(map[uuid.UUID][]models.Reaction, len(d.reactions)),
		questions:    slices.Clone(d.questions),
	}
	for id, p := range d.polls {
		cp.polls[id] = clonePoll(p)
	}
	for k, v := range d.votes {
		cp.votes[k] = v
	}
	for id, p := range d.participants {
		pc := *p
		pc.Badges = slices.Clone(p.Badges)
		cp.participants[id] = &pc
	}
	for id, rs := range d.reactions {
		cp.reactions[id] = slices.Clone(rs)
	}
	return cp
}

func cloneEvent(e *models.Event) models.Event {
	cp := *e
	cp.AgendaItems = slices.Clone(e.AgendaItems)
	return cp
}

func clonePoll(p *models.Poll) *models.Poll {
	cp := *p
	cp.Options = slices.Clone(p.Options)
	return &cp
}

// participant returns a detached copy with counters derived from the event's rows.
func (d *eventData) participant(id uuid.UUID, withRows bool) *models.Participant {
	p, ok := d.participants[id]
	if !ok {
		return nil
	}
	cp := *p
	cp.Badges = slices.Clone(p.Badges)
	if cp.Badges == nil {
		cp.Badges = []models.Badge{}
	}
	cp.ReactionsCount = len(d.reactions[id])
	cp.QuestionsCount = 0
	var qs []models.Question
	for _, q := range d.questions {
		if q.ParticipantID == id {
			cp.QuestionsCount++
			qs = append(qs, q)
		}
	}
	if withRows {
		cp.Reactions = slices.Clone(d.reactions[id])
		cp.Questions = qs
	}
	return &cp
}

func (m *Memory) lockFor(eventID uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.eventLocks[eventID]
	if !ok {
		l = &sync.Mutex{}
		m.eventLocks[eventID] = l
	}
	return l
}

func (m *Memory) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.events[id]
	if !ok {
		return nil, engagement.NotFound("event")
	}
	e := cloneEvent(&d.event)
	return &e, nil
}

func (m *Memory) GetPoll(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.events[m.pollEvent[id]]
	if !ok {
		return nil, engagement.NotFound("poll")
	}
	p, ok := d.polls[id]
	if !ok {
		return nil, engagement.NotFound("poll")
	}
	return clonePoll(p), nil
}

func (m *Memory) ListPolls(ctx context.Context, eventID uuid.UUID) ([]models.Poll, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.events[eventID]
	if !ok {
		return nil, engagement.NotFound("event")
	}
	out := make([]models.Poll, 0, len(d.pollOrder))
	for _, id := range d.pollOrder {
		out = append(out, *clonePoll(d.polls[id]))
	}
	return out, nil
}

func (m *Memory) HasVoted(ctx context.Context, pollID, participantID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.events[m.pollEvent[pollID]]
	if !ok {
		return false, nil
	}
	_, ok = d.votes[voteKey{pollID, participantID}]
	return ok, nil
}

func (m *Memory) GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.events[m.partEvent[id]]
	if !ok {
		return nil, engagement.NotFound("participant")
	}
	p := d.participant(id, true)
	if p == nil {
		return nil, engagement.NotFound("participant")
	}
	return p, nil
}

func (m *Memory) ListParticipants(ctx context.Context, eventID uuid.UUID) ([]models.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.events[eventID]
	if !ok {
		return nil, engagement.NotFound("event")
	}
	out := make([]models.Participant, 0, len(d.partOrder))
	for _, id := range d.partOrder {
		out = append(out, *d.participant(id, false))
	}
	slices.SortStableFunc(out, leaderboardOrder)
	return out, nil
}

// leaderboardOrder sorts ranked participants first by rank, unranked ones by join time.
func leaderboardOrder(a, b models.Participant) int {
	switch {
	case a.Rank == 0 && b.Rank != 0:
		return 1
	case a.Rank != 0 && b.Rank == 0:
		return -1
	}
	if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
		return c
	}
	return a.JoinTime.Compare(b.JoinTime)
}

func (m *Memory) ListQuestions(ctx context.Context, eventID uuid.UUID) ([]models.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.events[eventID]
	if !ok {
		return nil, engagement.NotFound("event")
	}
	out := make([]models.Question, 0, len(d.questions))
	for i := len(d.questions) - 1; i >= 0; i-- {
		q := d.questions[i]
		if !q.IsAnonymous {
			if p, ok := d.participants[q.ParticipantID]; ok {
				q.AuthorName = p.DisplayName
			}
		}
		out = append(out, q)
	}
	return out, nil
}

func (m *Memory) CreateEvent(ctx context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; ok {
		return engagement.Conflict("event already exists", nil)
	}
	m.events[e.ID] = &eventData{
		event:        cloneEvent(e),
		polls:        make(map[uuid.UUID]*models.Poll),
		votes:        make(map[voteKey]models.PollVote),
		participants: make(map[uuid.UUID]*models.Participant),
		reactions:    make(map[uuid.UUID][]models.Reaction),
	}
	return nil
}

func (m *Memory) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	l := m.lockFor(id)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.events[id]
	if !ok {
		return engagement.NotFound("event")
	}
	for pid := range d.polls {
		delete(m.pollEvent, pid)
	}
	for pid := range d.participants {
		delete(m.partEvent, pid)
	}
	delete(m.events, id)
	return nil
}

func (m *Memory) CreatePoll(ctx context.Context, p *models.Poll) error {
	l := m.lockFor(p.EventID)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.events[p.EventID]
	if !ok {
		return engagement.NotFound("event")
	}
	if _, ok := d.polls[p.ID]; ok {
		return engagement.Conflict("poll already exists", nil)
	}
	d.polls[p.ID] = clonePoll(p)
	d.pollOrder = append(d.pollOrder, p.ID)
	m.pollEvent[p.ID] = p.EventID
	return nil
}

func (m *Memory) Atomic(ctx context.Context, eventID uuid.UUID, fn func(tx engagement.Tx) error) error {
	l := m.lockFor(eventID)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	d, ok := m.events[eventID]
	var snap *eventData
	if ok {
		snap = d.clone()
	}
	m.mu.RUnlock()
	if !ok {
		return engagement.NotFound("event")
	}

	if err := fn(&memTx{d: snap}); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; !ok {
		return engagement.NotFound("event")
	}
	m.events[eventID] = snap
	for id := range snap.polls {
		m.pollEvent[id] = eventID
	}
	for id := range snap.participants {
		m.partEvent[id] = eventID
	}
	return nil
}

// memTx mutates a private snapshot; Memory.Atomic publishes it on success.
type memTx struct {
	d *eventData
}

func (t *memTx) Event(ctx context.Context) (*models.Event, error) {
	e := cloneEvent(&t.d.event)
	return &e, nil
}

func (t *memTx) SetPhase(ctx context.Context, phase models.Phase) error {
	t.d.event.Phase = phase
	return nil
}

func (t *memTx) Poll(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	p, ok := t.d.polls[id]
	if !ok {
		return nil, engagement.NotFound("poll")
	}
	return clonePoll(p), nil
}

func (t *memTx) Polls(ctx context.Context) ([]models.Poll, error) {
	out := make([]models.Poll, 0, len(t.d.pollOrder))
	for _, id := range t.d.pollOrder {
		out = append(out, *clonePoll(t.d.polls[id]))
	}
	return out, nil
}

func (t *memTx) SetPollStatus(ctx context.Context, p *models.Poll) error {
	cur, ok := t.d.polls[p.ID]
	if !ok {
		return engagement.NotFound("poll")
	}
	if p.Status == models.PollActive {
		for id, other := range t.d.polls {
			if id != p.ID && other.Status == models.PollActive {
				return engagement.Conflict("another poll is already active", nil)
			}
		}
	}
	cur.Status = p.Status
	cur.ClosedAt = p.ClosedAt
	return nil
}

func (t *memTx) HasVoted(ctx context.Context, pollID, participantID uuid.UUID) (bool, error) {
	_, ok := t.d.votes[voteKey{pollID, participantID}]
	return ok, nil
}

func (t *memTx) InsertVote(ctx context.Context, v *models.PollVote) error {
	k := voteKey{v.PollID, v.ParticipantID}
	if _, ok := t.d.votes[k]; ok {
		return engagement.Conflict("already voted on this poll", nil)
	}
	t.d.votes[k] = *v
	return nil
}

func (t *memTx) IncrementOptionVotes(ctx context.Context, optionID uuid.UUID) error {
	for _, p := range t.d.polls {
		if o := p.Option(optionID); o != nil {
			o.Votes++
			return nil
		}
	}
	return engagement.NotFound("option")
}

func (t *memTx) Participant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	p := t.d.participant(id, false)
	if p == nil {
		return nil, engagement.NotFound("participant")
	}
	return p, nil
}

func (t *memTx) Participants(ctx context.Context) ([]*models.Participant, error) {
	out := make([]*models.Participant, 0, len(t.d.partOrder))
	for _, id := range t.d.partOrder {
		out = append(out, t.d.participant(id, false))
	}
	return out, nil
}

func (t *memTx) InsertParticipant(ctx context.Context, p *models.Participant) error {
	if _, ok := t.d.participants[p.ID]; ok {
		return engagement.Conflict("participant already exists", nil)
	}
	cp := *p
	cp.Badges = slices.Clone(p.Badges)
	cp.Reactions, cp.Questions = nil, nil
	t.d.participants[p.ID] = &cp
	t.d.partOrder = append(t.d.partOrder, p.ID)
	return nil
}

func (t *memTx) mutable(id uuid.UUID) (*models.Participant, error) {
	p, ok := t.d.participants[id]
	if !ok {
		return nil, engagement.NotFound("participant")
	}
	return p, nil
}

func (t *memTx) AddPoints(ctx context.Context, participantID uuid.UUID, delta int) (int, error) {
	p, err := t.mutable(participantID)
	if err != nil {
		return 0, err
	}
	p.Points += delta
	return p.Points, nil
}

func (t *memTx) IncrementPollVotes(ctx context.Context, participantID uuid.UUID) error {
	p, err := t.mutable(participantID)
	if err != nil {
		return err
	}
	p.PollVotesCount++
	return nil
}

func (t *memTx) InsertReaction(ctx context.Context, r *models.Reaction) error {
	if _, err := t.mutable(r.ParticipantID); err != nil {
		return err
	}
	t.d.reactions[r.ParticipantID] = append(t.d.reactions[r.ParticipantID], *r)
	return nil
}

func (t *memTx) InsertQuestion(ctx context.Context, q *models.Question) error {
	if _, err := t.mutable(q.ParticipantID); err != nil {
		return err
	}
	cp := *q
	cp.AuthorName = ""
	t.d.questions = append(t.d.questions, cp)
	return nil
}

func (t *memTx) SetFeedback(ctx context.Context, participantID uuid.UUID, rating int, goal, text *string) error {
	p, err := t.mutable(participantID)
	if err != nil {
		return err
	}
	r := rating
	p.Rating = &r
	p.GoalAchieved = goal
	p.Feedback = text
	return nil
}

func (t *memTx) SetLeave(ctx context.Context, participantID uuid.UUID, at time.Time, attendancePercent int) error {
	p, err := t.mutable(participantID)
	if err != nil {
		return err
	}
	p.LeaveTime = &at
	p.AttendancePercent = attendancePercent
	p.UpdatedAt = at
	return nil
}

func (t *memTx) SetRanks(ctx context.Context, standings []engagement.Standing) error {
	for _, s := range standings {
		p, err := t.mutable(s.ParticipantID)
		if err != nil {
			return err
		}
		p.Rank = s.Rank
	}
	return nil
}

func (t *memTx) GrantBadges(ctx context.Context, participantID uuid.UUID, badges []models.Badge) error {
	p, err := t.mutable(participantID)
	if err != nil {
		return err
	}
	for _, b := range badges {
		if !p.HasBadge(b.ID) {
			p.Badges = append(p.Badges, b)
		}
	}
	return nil
}
