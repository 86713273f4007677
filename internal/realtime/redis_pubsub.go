package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nybble-vibe/backend/internal/engagement"
	"github.com/nybble-vibe/backend/internal/models"
)

const (
	channelPrefix  = "event:"
	publishTimeout = 5 * time.Second
)

// Message types published on an event channel.
const (
	TypeLeaderboardUpdated = "leaderboard_updated"
	TypeBadgeEarned        = "badge_earned"
	TypeParticipantJoined  = "participant_joined"
	TypeParticipantLeft    = "participant_left"
	TypeVoteCast           = "vote_cast"
	TypeReaction           = "reaction"
	TypeQuestionAsked      = "question_asked"
	TypeFeedbackSubmitted  = "feedback_submitted"
	TypePhaseChanged       = "phase_changed"
	TypePollCreated        = "poll_created"
	TypePollLaunched       = "poll_launched"
	TypePollClosed         = "poll_closed"
	TypeEventDeleted       = "event_deleted"
)

// redisPayload is the message published to Redis for push subscribers.
type redisPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// Message is one notification for an event's subscribers.
type Message struct {
	Type string
	Data any
}

// publisher is the subset of the Redis client used here.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPubSub publishes committed engagement changes to per-event Redis channels.
type RedisPubSub struct {
	client publisher
	logger *zap.Logger
}

// NewRedisPubSub creates a publisher on top of a Redis client.
func NewRedisPubSub(client publisher, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// Channel returns the Redis channel of an event.
func Channel(eventID uuid.UUID) string {
	return channelPrefix + eventID.String()
}

// PublishEvent publishes one message to the event's Redis channel.
func (r *RedisPubSub) PublishEvent(ctx context.Context, eventID uuid.UUID, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	body, err := json.Marshal(redisPayload{Event: event, Data: raw, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, Channel(eventID), body).Err()
}

// Hook publishes every message derived from a committed outcome.
func (r *RedisPubSub) Hook() engagement.Hook {
	return func(ctx context.Context, o engagement.Outcome) error {
		var errs []error
		for _, m := range Messages(o) {
			if err := r.PublishEvent(ctx, o.EventID, m.Type, m.Data); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			r.logger.Warn("publish failed", zap.String("event_id", o.EventID.String()), zap.Int("failed", len(errs)))
		}
		return errors.Join(errs...)
	}
}

// Messages turns a committed outcome into the notifications subscribers receive.
func Messages(o engagement.Outcome) []Message {
	var out []Message
	switch o.Kind {
	case engagement.OutcomePhaseChanged:
		if o.Event != nil {
			out = append(out, Message{TypePhaseChanged, fields{"phase": o.Event.Phase}})
		}
		return out
	case engagement.OutcomePollCreated:
		return append(out, Message{TypePollCreated, o.Poll})
	case engagement.OutcomePollStatus:
		if o.Poll == nil {
			return out
		}
		switch o.Poll.Status {
		case models.PollActive:
			out = append(out, Message{TypePollLaunched, o.Poll})
		case models.PollClosed:
			out = append(out, Message{TypePollClosed, o.Poll})
		}
		return out
	case engagement.OutcomeEventDeleted:
		return append(out, Message{TypeEventDeleted, fields{"event_id": o.EventID}})
	case engagement.OutcomeParticipantLeft:
		if p := o.Participant; p != nil {
			out = append(out, Message{TypeParticipantLeft, fields{"participant_id": p.ID, "attendance_percent": p.AttendancePercent}})
		}
		return out
	}

	if res := o.Result; res != nil {
		switch res.Kind {
		case engagement.ActionJoin:
			if res.Participant != nil {
				out = append(out, Message{TypeParticipantJoined, fields{
					"participant_id": res.ParticipantID,
					"display_name":   res.Participant.DisplayName,
					"avatar":         res.Participant.Avatar,
				}})
			}
		case engagement.ActionVote:
			if res.Vote != nil {
				out = append(out, Message{TypeVoteCast, fields{"poll_id": res.Vote.PollID, "option_id": res.Vote.OptionID}})
			}
		case engagement.ActionReaction:
			if res.Reaction != nil {
				out = append(out, Message{TypeReaction, fields{"participant_id": res.ParticipantID, "emoji": res.Reaction.Emoji}})
			}
		case engagement.ActionQuestion:
			if q := res.Question; q != nil {
				data := fields{"id": q.ID, "text": q.Text, "is_anonymous": q.IsAnonymous}
				if !q.IsAnonymous {
					data["participant_id"] = q.ParticipantID
				}
				out = append(out, Message{TypeQuestionAsked, data})
			}
		case engagement.ActionFeedback:
			out = append(out, Message{TypeFeedbackSubmitted, fields{"participant_id": res.ParticipantID}})
		}
	}
	if o.Standings != nil {
		out = append(out, Message{TypeLeaderboardUpdated, o.Standings})
	}
	for pid, badges := range o.Earned {
		out = append(out, Message{TypeBadgeEarned, fields{"participant_id": pid, "badges": badges}})
	}
	return out
}

type fields = map[string]any
