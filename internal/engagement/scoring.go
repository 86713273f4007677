package engagement

// ActionKind names a participant action that may award points.
type ActionKind string

const (
	ActionJoin     ActionKind = "join"
	ActionVote     ActionKind = "vote"
	ActionReaction ActionKind = "reaction"
	ActionQuestion ActionKind = "question"
	ActionFeedback ActionKind = "feedback"
)

// Point values per action.
const (
	PointsJoin     = 50
	PointsVote     = 15
	PointsReaction = 5
	PointsQuestion = 25
	PointsFeedback = 40
)

// MaxReactions caps reactions per participant, so reactions award at most 50 points.
const MaxReactions = 10

var allowedEmojis = []string{"🔥", "👏", "💡", "🤔", "❤️", "🚀"}

// AllowedEmojis returns the reaction emojis accepted by the API.
func AllowedEmojis() []string {
	out := make([]string, len(allowedEmojis))
	copy(out, allowedEmojis)
	return out
}

// EmojiAllowed reports whether e is an accepted reaction.
func EmojiAllowed(e string) bool {
	for _, a := range allowedEmojis {
		if a == e {
			return true
		}
	}
	return false
}

// PointsFor returns the point delta for one occurrence of kind. Unknown kinds score zero.
func PointsFor(kind ActionKind) int {
	switch kind {
	case ActionJoin:
		return PointsJoin
	case ActionVote:
		return PointsVote
	case ActionReaction:
		return PointsReaction
	case ActionQuestion:
		return PointsQuestion
	case ActionFeedback:
		return PointsFeedback
	default:
		return 0
	}
}
