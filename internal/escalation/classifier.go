// Package escalation decides whether a chat turn needs human follow-up.
// The policy is deliberately a keyword check: false positives and
// negatives are tuned through the keyword set, not the algorithm.
package escalation

import "strings"

// escalateMarker is the prefix the system prompt instructs the model to
// emit when it cannot handle a request on its own.
const escalateMarker = "ESCALATE:"

const handoffPrefix = "I need to connect you with a human agent for this."

// ShouldEscalate reports whether any keyword appears, case-insensitively,
// in the user message or the AI reply. Pure function: same inputs always
// give the same answer.
func ShouldEscalate(userMessage, aiReply string, keywords []string) bool {
	lowerUser := strings.ToLower(userMessage)
	lowerReply := strings.ToLower(aiReply)

	for _, keyword := range keywords {
		k := strings.ToLower(strings.TrimSpace(keyword))
		if k == "" {
			continue
		}
		if strings.Contains(lowerUser, k) || strings.Contains(lowerReply, k) {
			return true
		}
	}

	return false
}

// StripMarker detects the ESCALATE: prefix in a model reply. When present
// it returns the reply rewritten as a human-handoff message and true;
// otherwise the reply is returned unchanged.
func StripMarker(reply string) (string, bool) {
	trimmed := strings.TrimSpace(reply)
	if !strings.HasPrefix(trimmed, escalateMarker) {
		return reply, false
	}

	reason := strings.TrimSpace(strings.TrimPrefix(trimmed, escalateMarker))
	if reason == "" {
		return handoffPrefix, true
	}

	return handoffPrefix + " " + reason, true
}
