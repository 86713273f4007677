package engagement

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nybble-vibe/backend/internal/models"
)

// NewEvent is the input for CreateEvent.
type NewEvent struct {
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	MeetingURL  string
	Settings    *models.EventSettings
	Agenda      []NewAgendaItem
}

// NewAgendaItem is one agenda slot of a NewEvent.
type NewAgendaItem struct {
	Title     string
	Duration  int
	Presenter string
	Position  int
}

// NewPoll is the input for CreatePoll.
type NewPoll struct {
	Question      string
	ShowResultsTo string
	Options       []NewPollOption
}

// NewPollOption is one option of a NewPoll.
type NewPollOption struct {
	Text     string
	Position int
}

// CreateEvent creates an event in the pre phase together with its agenda.
func (c *Coordinator) CreateEvent(ctx context.Context, in NewEvent) (*models.Event, error) {
	const op = "create event"
	title := strings.TrimSpace(in.Title)
	if title == "" || utf8.RuneCountInString(title) > maxNameLen {
		return nil, newErr(KindInvalidInput, op, "title must be 1-255 characters")
	}
	if !in.EndTime.After(in.StartTime) {
		return nil, newErr(KindInvalidInput, op, "end_time must be after start_time")
	}
	now := c.now()
	e := &models.Event{
		ID:          uuid.New(),
		Title:       title,
		Description: in.Description,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Phase:       models.PhasePre,
		MeetingURL:  in.MeetingURL,
		Settings:    models.DefaultEventSettings(),
		AgendaItems: make([]models.AgendaItem, 0, len(in.Agenda)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Settings != nil {
		e.Settings = *in.Settings
	}
	for _, it := range in.Agenda {
		itemTitle := strings.TrimSpace(it.Title)
		if itemTitle == "" || it.Duration <= 0 || it.Position < 0 {
			return nil, newErr(KindInvalidInput, op, "agenda items need a title, a positive duration and a non-negative position")
		}
		presenter := strings.TrimSpace(it.Presenter)
		if utf8.RuneCountInString(itemTitle) > maxNameLen || utf8.RuneCountInString(presenter) > maxNameLen {
			return nil, newErr(KindInvalidInput, op, "agenda title and presenter must be at most 255 characters")
		}
		e.AgendaItems = append(e.AgendaItems, models.AgendaItem{
			ID:        uuid.New(),
			EventID:   e.ID,
			Title:     itemTitle,
			Duration:  it.Duration,
			Presenter: presenter,
			Position:  it.Position,
			CreatedAt: now,
		})
	}
	if err := c.store.CreateEvent(ctx, e); err != nil {
		return nil, withOp(op, err)
	}
	c.logger.Info("event created", zap.String("event_id", e.ID.String()), zap.String("title", e.Title))
	return e, nil
}

// DeleteEvent removes an event with its agenda, polls and participants.
func (c *Coordinator) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	if err := c.store.DeleteEvent(ctx, id); err != nil {
		return withOp("delete event", err)
	}
	c.commit(ctx, Outcome{Kind: OutcomeEventDeleted, EventID: id})
	return nil
}

// CreatePoll adds a draft poll with 2-10 options to an event.
func (c *Coordinator) CreatePoll(ctx context.Context, eventID uuid.UUID, in NewPoll) (*models.Poll, error) {
	const op = "create poll"
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, newErr(KindInvalidInput, op, "question is required")
	}
	if n := len(in.Options); n < models.MinPollOptions || n > models.MaxPollOptions {
		return nil, newErr(KindInvalidInput, op, "poll must have between 2 and 10 options")
	}
	show := in.ShowResultsTo
	switch show {
	case "":
		show = models.ShowResultsVoted
	case models.ShowResultsAll, models.ShowResultsVoted, models.ShowResultsAdmin:
	default:
		return nil, newErr(KindInvalidInput, op, "show_results_to must be all, voted or admin")
	}
	if _, err := c.store.GetEvent(ctx, eventID); err != nil {
		return nil, withOp(op, err)
	}

	p := &models.Poll{
		ID:            uuid.New(),
		EventID:       eventID,
		Question:      question,
		Status:        models.PollDraft,
		ShowResultsTo: show,
		Options:       make([]models.PollOption, 0, len(in.Options)),
		CreatedAt:     c.now(),
	}
	for _, o := range in.Options {
		text := strings.TrimSpace(o.Text)
		if text == "" || utf8.RuneCountInString(text) > maxNameLen {
			return nil, newErr(KindInvalidInput, op, "option text must be 1-255 characters")
		}
		if o.Position < 0 {
			return nil, newErr(KindInvalidInput, op, "option position must not be negative")
		}
		p.Options = append(p.Options, models.PollOption{ID: uuid.New(), PollID: p.ID, Text: text, Position: o.Position})
	}
	if err := c.store.CreatePoll(ctx, p); err != nil {
		return nil, withOp(op, err)
	}
	c.commit(ctx, Outcome{Kind: OutcomePollCreated, EventID: eventID, Poll: p})
	return p, nil
}

// ChangePhase moves an event forward in its lifecycle. Requesting the current phase is a no-op.
func (c *Coordinator) ChangePhase(ctx context.Context, eventID uuid.UUID, phase models.Phase) (*models.Event, error) {
	const op = "change phase"
	var (
		ev      *models.Event
		changed bool
	)
	err := c.store.Atomic(ctx, eventID, func(tx Tx) error {
		var err error
		if ev, err = tx.Event(ctx); err != nil {
			return err
		}
		if err := CheckPhaseTransition(ev.Phase, phase); err != nil {
			return err
		}
		if ev.Phase == phase {
			return nil
		}
		if err := tx.SetPhase(ctx, phase); err != nil {
			return err
		}
		ev.Phase = phase
		ev.UpdatedAt = c.now()
		changed = true
		return nil
	})
	if err != nil {
		return nil, withOp(op, err)
	}
	if changed {
		c.logger.Info("event phase changed", zap.String("event_id", eventID.String()), zap.String("phase", string(phase)))
		c.commit(ctx, Outcome{Kind: OutcomePhaseChanged, EventID: eventID, Event: ev})
	}
	return ev, nil
}

// ChangePollStatus launches or closes a poll. At most one poll per event is active at a time.
func (c *Coordinator) ChangePollStatus(ctx context.Context, pollID uuid.UUID, status models.PollStatus) (*models.Poll, error) {
	const op = "change poll status"
	current, err := c.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, withOp(op, err)
	}

	var (
		poll    *models.Poll
		changed bool
	)
	err = c.store.Atomic(ctx, current.EventID, func(tx Tx) error {
		ev, err := tx.Event(ctx)
		if err != nil {
			return err
		}
		if poll, err = tx.Poll(ctx, pollID); err != nil {
			return err
		}
		if err := CheckPollTransition(poll.Status, status, ev.Phase); err != nil {
			return err
		}
		if poll.Status == status {
			return nil
		}
		if status == models.PollActive {
			polls, err := tx.Polls(ctx)
			if err != nil {
				return err
			}
			for _, other := range polls {
				if other.ID != poll.ID && other.Status == models.PollActive {
					return newErr(KindPreconditionFailed, op, "only one active poll allowed per event")
				}
			}
		}
		if status == models.PollClosed {
			t := c.now()
			poll.ClosedAt = &t
		}
		poll.Status = status
		changed = true
		return tx.SetPollStatus(ctx, poll)
	})
	if err != nil {
		return nil, withOp(op, err)
	}
	if changed {
		c.logger.Info("poll status changed", zap.String("poll_id", pollID.String()), zap.String("status", string(status)))
		c.commit(ctx, Outcome{Kind: OutcomePollStatus, EventID: poll.EventID, Poll: poll})
	}
	return poll, nil
}
