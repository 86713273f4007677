package engagement

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
)

// RankEntry is the ranking input for one participant.
type RankEntry struct {
	ParticipantID uuid.UUID
	Points        int
	JoinedAt      time.Time
}

// Standing is a participant's position on the leaderboard.
type Standing struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Points        int       `json:"points"`
	Rank          int       `json:"rank"`
}

// Rank orders entries by points descending and assigns ranks 1..N.
// Equal points are broken by earlier join time, then by participant id,
// so the same input always yields the same ranks.
func Rank(entries []RankEntry) []Standing {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, compareEntries)

	out := make([]Standing, len(sorted))
	for i, e := range sorted {
		out[i] = Standing{ParticipantID: e.ParticipantID, Points: e.Points, Rank: i + 1}
	}
	return out
}

func compareEntries(a, b RankEntry) int {
	if c := cmp.Compare(b.Points, a.Points); c != 0 {
		return c
	}
	if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ParticipantID.String(), b.ParticipantID.String())
}
