package engagement

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nybble-vibe/backend/internal/models"
)

const (
	maxNameLen   = 255
	maxAvatarLen = 50
)

// JoinPayload describes a new participant.
type JoinPayload struct {
	DisplayName string
	Avatar      string
	IsExternal  bool
}

// VotePayload selects one option of a poll.
type VotePayload struct {
	PollID   uuid.UUID
	OptionID uuid.UUID
}

// ReactionPayload is an emoji reaction.
type ReactionPayload struct {
	Emoji string
}

// QuestionPayload is a Q&A submission.
type QuestionPayload struct {
	Text        string
	IsAnonymous bool
}

// FeedbackPayload is the post-event survey.
type FeedbackPayload struct {
	Rating       int
	GoalAchieved string
	Text         string
}

// Action is one participant-triggered scoring action. Only the payload matching Kind is read.
type Action struct {
	Kind ActionKind
	// EventID is required for joins; for other kinds it is optional and, when set,
	// must match the participant's event.
	EventID       uuid.UUID
	ParticipantID uuid.UUID

	Join     JoinPayload
	Vote     VotePayload
	Reaction ReactionPayload
	Question QuestionPayload
	Feedback FeedbackPayload
}

// Result is what a committed action returns to the caller.
type Result struct {
	Kind          ActionKind          `json:"kind"`
	EventID       uuid.UUID           `json:"event_id"`
	ParticipantID uuid.UUID           `json:"participant_id"`
	PointsEarned  int                 `json:"points_earned"`
	TotalPoints   int                 `json:"total_points"`
	NewRank       int                 `json:"new_rank"`
	BadgesEarned  []models.Badge      `json:"badges_earned,omitempty"`
	Participant   *models.Participant `json:"participant,omitempty"`
	Vote          *models.PollVote    `json:"vote,omitempty"`
	Reaction      *models.Reaction    `json:"reaction,omitempty"`
	Question      *models.Question    `json:"question,omitempty"`
}

func (a *Action) validate() error {
	const op = "validate action"
	switch a.Kind {
	case ActionJoin:
		if a.EventID == uuid.Nil {
			return newErr(KindInvalidInput, op, "event id is required")
		}
		a.Join.DisplayName = strings.TrimSpace(a.Join.DisplayName)
		if a.Join.DisplayName == "" || utf8.RuneCountInString(a.Join.DisplayName) > maxNameLen {
			return newErr(KindInvalidInput, op, "display name must be 1-255 characters")
		}
		a.Join.Avatar = strings.TrimSpace(a.Join.Avatar)
		if a.Join.Avatar == "" {
			a.Join.Avatar = models.DefaultAvatar
		}
		if utf8.RuneCountInString(a.Join.Avatar) > maxAvatarLen {
			return newErr(KindInvalidInput, op, "avatar must be at most 50 characters")
		}
		return nil
	case ActionVote, ActionReaction, ActionQuestion, ActionFeedback:
	default:
		return newErr(KindInvalidInput, op, "unknown action "+string(a.Kind))
	}

	if a.ParticipantID == uuid.Nil {
		return newErr(KindInvalidInput, op, "participant id is required")
	}
	switch a.Kind {
	case ActionVote:
		if a.Vote.PollID == uuid.Nil || a.Vote.OptionID == uuid.Nil {
			return newErr(KindInvalidInput, op, "poll id and option id are required")
		}
	case ActionQuestion:
		a.Question.Text = strings.TrimSpace(a.Question.Text)
		if a.Question.Text == "" {
			return newErr(KindInvalidInput, op, "question text is required")
		}
	case ActionFeedback:
		if a.Feedback.Rating < 1 || a.Feedback.Rating > 5 {
			return newErr(KindInvalidInput, op, "rating must be between 1 and 5")
		}
		switch a.Feedback.GoalAchieved {
		case "", models.GoalYes, models.GoalPartially, models.GoalNo:
		default:
			return newErr(KindInvalidInput, op, "goal_achieved must be yes, partially or no")
		}
	}
	return nil
}
