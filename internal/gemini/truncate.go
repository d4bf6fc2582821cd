package gemini

import "unicode/utf8"

// Chat roles as the API expects them.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one prior message in a conversation.
type Turn struct {
	Role string
	Text string
}

// TruncateContext drops the oldest turns until the remainder fits both the
// character budget (shared with the prompt, which is never dropped) and the
// turn cap. The kept slice is then trimmed to start with a user turn and end
// with a model turn so it is always a valid chat history for the next
// user message.
func TruncateContext(turns []Turn, promptChars, maxChars, maxTurns int) []Turn {
	if len(turns) == 0 || maxTurns <= 0 {
		return nil
	}
	budget := maxChars - promptChars
	if budget <= 0 {
		return nil
	}

	total := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		if len(turns)-i > maxTurns {
			break
		}
		n := utf8.RuneCountInString(turns[i].Text)
		if total+n > budget {
			break
		}
		total += n
		start = i
	}

	kept := turns[start:]
	for len(kept) > 0 && kept[0].Role != RoleUser {
		kept = kept[1:]
	}
	for len(kept) > 0 && kept[len(kept)-1].Role != RoleModel {
		kept = kept[:len(kept)-1]
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}
