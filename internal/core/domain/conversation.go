package domain

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one message in a session's history. Turns are
// append-only and ordered; only the request handler mutates the history.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LastUserTurns returns up to n user-authored turns, most recent first.
// Assistant turns are excluded so that topic inference never feeds on the
// system's own output.
func LastUserTurns(history []ConversationTurn, n int) []ConversationTurn {
	out := make([]ConversationTurn, 0, n)
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		if history[i].Role == RoleUser {
			out = append(out, history[i])
		}
	}
	return out
}

// LastAssistantTurn returns the most recent assistant turn, or false when
// the history has none.
func LastAssistantTurn(history []ConversationTurn) (ConversationTurn, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleAssistant {
			return history[i], true
		}
	}
	return ConversationTurn{}, false
}
