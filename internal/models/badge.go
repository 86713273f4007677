package models

import "time"

// BadgeID is the stable identifier of an achievement.
type BadgeID string

const (
	BadgeTop3        BadgeID = "top_3"
	BadgePollMaster  BadgeID = "poll_master"
	BadgeFullJourney BadgeID = "full_journey"
)

// Badge is an achievement held by a participant. Badges are never revoked.
type Badge struct {
	ID       BadgeID   `json:"id"`
	Name     string    `json:"name"`
	Icon     string    `json:"icon"`
	EarnedAt time.Time `json:"earned_at"`
}
