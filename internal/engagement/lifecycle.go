package engagement

import (
	"fmt"

	"github.com/nybble-vibe/backend/internal/models"
)

// CheckPhaseTransition allows staying in place or moving forward through pre, live, post, closed.
func CheckPhaseTransition(from, to models.Phase) error {
	const op = "change phase"
	if to.Index() < 0 {
		return newErr(KindInvalidTransition, op, fmt.Sprintf("unknown phase %q", to))
	}
	if to.Index() < from.Index() {
		return newErr(KindInvalidTransition, op, fmt.Sprintf("cannot revert from %s to %s", from, to))
	}
	return nil
}

// CheckPollTransition validates a poll status change. Same-status requests are accepted as no-ops;
// otherwise only draft→active and active→closed are legal. Launching needs a live event.
func CheckPollTransition(from, to models.PollStatus, phase models.Phase) error {
	const op = "change poll status"
	switch {
	case from == to && (to == models.PollDraft || to == models.PollActive || to == models.PollClosed):
		return nil
	case from == models.PollDraft && to == models.PollActive:
		if phase != models.PhaseLive {
			return newErr(KindPreconditionFailed, op, "cannot launch poll until event is live")
		}
		return nil
	case from == models.PollActive && to == models.PollClosed:
		return nil
	default:
		return newErr(KindInvalidTransition, op, fmt.Sprintf("cannot move poll from %s to %s", from, to))
	}
}

// CanJoin reports whether participants may join an event in phase p.
func CanJoin(p models.Phase) bool {
	return p == models.PhasePre || p == models.PhaseLive
}

// CanSubmitFeedback reports whether feedback is accepted in phase p.
func CanSubmitFeedback(p models.Phase) bool {
	return p == models.PhasePost
}
