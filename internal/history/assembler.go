// Package history renders a thread's turns into bounded, role-labeled
// text. Inclusion is budget-driven and favors the most recent turns;
// rendering is chronological so the reader sees a natural timeline with
// possibly an omitted earlier prefix.
package history

import (
	"fmt"
	"strings"

	"github.com/flemzord/threadline/internal/model"
	"github.com/flemzord/threadline/internal/thread"
)

const (
	historyHeader = "=== CONVERSATION HISTORY (CONTINUATION) ==="
	historyFooter = "=== END HISTORY ==="
	omittedMarker = "[earlier turns omitted to fit the token budget]"
)

// Assembler builds bounded history text from thread state. It is pure:
// identical thread state and budget always yield identical output.
type Assembler struct {
	estimator model.TokenEstimator
}

// NewAssembler creates an assembler using the given token estimator.
func NewAssembler(estimator model.TokenEstimator) *Assembler {
	return &Assembler{estimator: estimator}
}

// Build renders the thread's turns within contentBudget tokens and
// returns the text with its estimated token cost.
//
// Turns are considered newest-first: the walk stops including older
// turns once the next one would exceed the budget, then the included
// suffix is rendered oldest-to-newest. The single most recent turn is
// always included even if it alone exceeds the budget — callers get
// over-budget history rather than none — which is the one case where
// the returned cost may exceed contentBudget.
func (a *Assembler) Build(t *thread.Thread, contentBudget int) (string, int) {
	if t == nil || len(t.Turns) == 0 {
		return "", 0
	}

	blocks := make([]string, len(t.Turns))
	for i, turn := range t.Turns {
		blocks[i] = renderTurn(i+1, turn)
	}

	scaffold := []string{historyHeader, "Thread: " + t.ID, "Tool: " + t.ToolName, omittedMarker, historyFooter}
	fixed := 0
	for _, part := range scaffold {
		fixed += a.estimator.Estimate(part + "\n\n")
	}

	// Newest-first inclusion walk. The newest turn is unconditional.
	included := len(t.Turns) - 1
	spent := fixed + a.estimator.Estimate(blocks[len(blocks)-1]+"\n\n")
	for i := len(t.Turns) - 2; i >= 0; i-- {
		cost := a.estimator.Estimate(blocks[i] + "\n\n")
		if spent+cost > contentBudget {
			break
		}
		spent += cost
		included = i
	}

	var b strings.Builder
	b.WriteString(historyHeader)
	b.WriteString("\nThread: ")
	b.WriteString(t.ID)
	b.WriteString("\nTool: ")
	b.WriteString(t.ToolName)
	b.WriteString("\n")
	if included > 0 {
		b.WriteString("\n")
		b.WriteString(omittedMarker)
		b.WriteString("\n")
	}
	for _, block := range blocks[included:] {
		b.WriteString("\n")
		b.WriteString(block)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(historyFooter)

	text := b.String()
	return text, a.estimator.Estimate(text)
}

// renderTurn formats one turn as a role-labeled block. The turn number
// is the absolute position in the thread so omitted prefixes remain
// visible in the numbering.
func renderTurn(number int, turn thread.Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- Turn %d (%s) ---\n", number, turn.Role)
	if len(turn.Files) > 0 {
		b.WriteString("Files referenced: ")
		b.WriteString(strings.Join(turn.Files, ", "))
		b.WriteString("\n")
	}
	b.WriteString(turn.Content)
	return b.String()
}
