package engagement

import (
	"time"

	"github.com/nybble-vibe/backend/internal/models"
)

// TopRankCutoff is the highest rank that earns the podium badge.
const TopRankCutoff = 3

type badgeInfo struct {
	name string
	icon string
}

var badgeCatalog = map[models.BadgeID]badgeInfo{
	models.BadgeTop3:        {name: "Podium Finish", icon: "🎖️"},
	models.BadgePollMaster:  {name: "Poll Master", icon: "📊"},
	models.BadgeFullJourney: {name: "Full Journey", icon: "🎯"},
}

// NewBadge builds the catalog badge for id, earned at t.
func NewBadge(id models.BadgeID, t time.Time) models.Badge {
	info := badgeCatalog[id]
	return models.Badge{ID: id, Name: info.name, Icon: info.icon, EarnedAt: t}
}

// Aggregates is the event-wide state badge predicates read.
type Aggregates struct {
	// LaunchedPolls counts polls whose status is active or closed.
	LaunchedPolls int
	// FeedbackAccepted is set only while evaluating the participant whose feedback was just accepted.
	FeedbackAccepted bool
}

// Eligible returns the badge ids p currently qualifies for, in catalog order.
func Eligible(p *models.Participant, agg Aggregates) []models.BadgeID {
	var ids []models.BadgeID
	if p.Rank >= 1 && p.Rank <= TopRankCutoff {
		ids = append(ids, models.BadgeTop3)
	}
	if agg.LaunchedPolls > 0 && p.PollVotesCount == agg.LaunchedPolls {
		ids = append(ids, models.BadgePollMaster)
	}
	if agg.FeedbackAccepted {
		ids = append(ids, models.BadgeFullJourney)
	}
	return ids
}

// EvaluateBadges returns p's badge set after evaluation and the badges newly earned.
// Existing badges are kept even when their condition no longer holds, and an id is never added twice.
func EvaluateBadges(p *models.Participant, agg Aggregates, now time.Time) (updated, earned []models.Badge) {
	updated = append(updated, p.Badges...)
	for _, id := range Eligible(p, agg) {
		if p.HasBadge(id) {
			continue
		}
		b := NewBadge(id, now)
		updated = append(updated, b)
		earned = append(earned, b)
	}
	return updated, earned
}
