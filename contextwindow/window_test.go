package contextwindow

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTurns(n int) []Turn {
	turns := make([]Turn, 0, n)
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		turns = append(turns, Turn{Role: role, Text: fmt.Sprintf("turn %d", i)})
	}
	return turns
}

func TestBuildReturnsShortHistoryVerbatim(t *testing.T) {
	history := makeTurns(10)

	win := Build(history, "next", 10)

	assert.Equal(t, history, win.History)
	assert.Equal(t, Turn{Role: RoleUser, Text: "next"}, win.Current)
	assert.Zero(t, win.Summarized)
	assert.Len(t, win.Turns(), 11)
}

func TestBuildSummarizesFifteenTurns(t *testing.T) {
	history := makeTurns(15)

	win := Build(history, "next", 10)
	turns := win.Turns()

	require.Len(t, turns, 11)
	assert.Equal(t, RoleSummary, turns[0].Role)
	assert.Equal(t, 6, win.Summarized)
	assert.Equal(t, history[6:], turns[1:10])
	assert.Equal(t, "next", turns[10].Text)
	for i := 0; i < 6; i++ {
		assert.Contains(t, turns[0].Text, fmt.Sprintf("turn %d", i))
	}
	assert.NotContains(t, turns[0].Text, "turn 6")
}

func TestBuildHistoryIsBoundedByLimit(t *testing.T) {
	for _, n := range []int{11, 20, 57, 300} {
		for _, limit := range []int{1, 2, 5, 10} {
			win := Build(makeTurns(n), "x", limit)
			assert.Len(t, win.History, limit, "n=%d limit=%d", n, limit)
			assert.Equal(t, RoleSummary, win.History[0].Role)
		}
	}
}

func TestBuildSkipsNonConversationalRoles(t *testing.T) {
	history := []Turn{
		{Role: RoleUser, Text: "a"},
		{Role: "sponsor", Text: "ad"},
		{Role: RoleAssistant, Text: "b"},
	}

	win := Build(history, "c", 10)

	assert.Equal(t, []Turn{{Role: RoleUser, Text: "a"}, {Role: RoleAssistant, Text: "b"}}, win.History)
}

func TestBuildNonPositiveLimitUsesDefault(t *testing.T) {
	win := Build(makeTurns(12), "x", 0)
	assert.Len(t, win.History, DefaultLimit)
}

func TestSummarizeTruncatesLongTurns(t *testing.T) {
	long := strings.Repeat("가", 250)

	sum := Summarize([]Turn{{Role: RoleUser, Text: long}, {Role: RoleAssistant, Text: "short\nreply"}})

	lines := strings.Split(sum.Text, summarySeparator)
	require.Len(t, lines, 3)
	assert.Equal(t, summaryHeader, lines[0])
	assert.Equal(t, "user: "+strings.Repeat("가", 100)+"...", lines[1])
	assert.Equal(t, "assistant: short reply", lines[2])
}

type fixedCounter int

func (f fixedCounter) CountTurns(turns []Turn) int { return int(f) * len(turns) }

func TestWindowerReportsTokens(t *testing.T) {
	w := New(4, fixedCounter(7))

	win := w.Build(makeTurns(3), "x")

	assert.Equal(t, 4, w.Limit())
	assert.Equal(t, 28, win.Tokens)
}
