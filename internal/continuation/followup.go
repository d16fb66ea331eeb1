package continuation

import "fmt"

// FollowUp returns the instructions appended to every reconstructed
// prompt, derived purely from the thread's turn count and the configured
// turn cap.
//
// At or past the penultimate turn the notice is terminal: the response
// must be final and must not invite further replies. Otherwise it states
// how many exchanges remain and that a follow-up must carry the
// continuation id forward.
func FollowUp(turnCount, maxTurns int) string {
	if turnCount >= maxTurns-1 {
		return "IMPORTANT: this is the final exchange in this conversation thread. " +
			"Do NOT ask follow-up questions or suggest continuing the discussion. " +
			"Provide your complete, final analysis and recommendations."
	}

	remaining := maxTurns - turnCount - 1
	return fmt.Sprintf(
		"CONVERSATION CONTINUATION: you can continue this discussion (%d exchanges remaining). "+
			"If you ask clarifying questions or suggest areas for deeper exploration, "+
			"instruct the caller to respond using the continuation_id from this response "+
			"so the conversation thread is maintained.",
		remaining,
	)
}
