// Package contextwindow bounds the conversation history sent to the completion
// backend. Recent turns are kept verbatim and older ones are folded into a
// single summary entry.
package contextwindow

import (
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	// RoleSummary tags the synthesized entry standing in for older turns.
	RoleSummary = "summary"
)

const (
	DefaultLimit = 10

	summaryHeader    = "Summary of the earlier conversation:"
	summarySeparator = "\n"
	maxSummaryRunes  = 100
)

// Turn is one entry of the payload sent to the completion backend.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Window is the result of Build. History holds at most limit entries
// (summary first when present); Current is the turn being submitted.
type Window struct {
	History    []Turn
	Current    Turn
	Summarized int // number of original turns folded into the summary
	Tokens     int // estimated token count, zero when no counter is configured
}

// Turns returns the ordered payload: history followed by the new turn.
func (w Window) Turns() []Turn {
	out := make([]Turn, 0, len(w.History)+1)
	out = append(out, w.History...)
	return append(out, w.Current)
}

// TokenCounter estimates the token size of a payload.
type TokenCounter interface {
	CountTurns(turns []Turn) int
}

type Windower struct {
	limit   int
	counter TokenCounter
}

// New returns a Windower. A non-positive limit falls back to DefaultLimit and
// counter may be nil.
func New(limit int, counter TokenCounter) *Windower {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Windower{limit: limit, counter: counter}
}

func (w *Windower) Limit() int { return w.limit }

// Build windows history for newText using the Windower's limit.
func (w *Windower) Build(history []Turn, newText string) Window {
	win := Build(history, newText, w.limit)
	if w.counter != nil {
		win.Tokens = w.counter.CountTurns(win.Turns())
	}
	return win
}

// Build returns history verbatim when it has at most limit entries. Otherwise all
// but the most recent limit-1 entries are replaced by one summary entry, so the
// returned history always has exactly limit entries.
func Build(history []Turn, newText string, limit int) Window {
	if limit <= 0 {
		limit = DefaultLimit
	}
	current := Turn{Role: RoleUser, Text: newText}

	filtered := make([]Turn, 0, len(history))
	for _, t := range history {
		if t.Role != RoleUser && t.Role != RoleAssistant {
			continue
		}
		filtered = append(filtered, t)
	}

	if len(filtered) <= limit {
		return Window{History: filtered, Current: current}
	}

	keep := limit - 1
	older := filtered[:len(filtered)-keep]
	recent := filtered[len(filtered)-keep:]

	out := make([]Turn, 0, limit)
	out = append(out, Summarize(older))
	out = append(out, recent...)
	return Window{History: out, Current: current, Summarized: len(older)}
}

// Summarize folds turns into one role-tagged entry, truncating each turn.
func Summarize(turns []Turn) Turn {
	var b strings.Builder
	b.WriteString(summaryHeader)
	for _, t := range turns {
		b.WriteString(summarySeparator)
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(truncate(flatten(t.Text), maxSummaryRunes))
	}
	return Turn{Role: RoleSummary, Text: b.String()}
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate returns s truncated to max runes.
func truncate(s string, max int) string {
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	return string(rs[:max]) + "..."
}
