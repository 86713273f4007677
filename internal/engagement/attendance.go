package engagement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nybble-vibe/backend/internal/models"
)

// OutcomeParticipantLeft is committed when a participant leaves an event.
const OutcomeParticipantLeft = "participant_left"

// AttendancePercent is the share of the scheduled event window covered by [join, leave], 0-100.
func AttendancePercent(ev *models.Event, join, leave time.Time) int {
	window := ev.EndTime.Sub(ev.StartTime)
	if window <= 0 {
		return 0
	}
	from, to := join, leave
	if from.Before(ev.StartTime) {
		from = ev.StartTime
	}
	if to.After(ev.EndTime) {
		to = ev.EndTime
	}
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from) * 100 / window)
}

// Leave records that a participant left and stores their attendance. It awards no points,
// so ranks and badges are untouched. A participant can leave once.
func (c *Coordinator) Leave(ctx context.Context, participantID uuid.UUID) (*models.Participant, error) {
	const op = "leave"
	if participantID == uuid.Nil {
		return nil, newErr(KindInvalidInput, op, "participant id is required")
	}
	eventID, err := c.resolveEvent(ctx, Action{ParticipantID: participantID})
	if err != nil {
		return nil, withOp(op, err)
	}

	var p *models.Participant
	err = c.store.Atomic(ctx, eventID, func(tx Tx) error {
		ev, err := tx.Event(ctx)
		if err != nil {
			return err
		}
		if ev.Phase == models.PhaseClosed {
			return newErr(KindPreconditionFailed, op, "event is closed")
		}
		if p, err = tx.Participant(ctx, participantID); err != nil {
			return err
		}
		if p.LeaveTime != nil {
			return newErr(KindPreconditionFailed, op, "participant already left")
		}
		now := c.now()
		p.LeaveTime = &now
		p.AttendancePercent = AttendancePercent(ev, p.JoinTime, now)
		p.UpdatedAt = now
		return tx.SetLeave(ctx, p.ID, now, p.AttendancePercent)
	})
	if err != nil {
		return nil, withOp(op, err)
	}
	c.logger.Debug("participant left",
		zap.String("participant_id", participantID.String()),
		zap.Int("attendance_percent", p.AttendancePercent),
	)
	c.commit(ctx, Outcome{Kind: OutcomeParticipantLeft, EventID: eventID, Participant: p})
	return p, nil
}
