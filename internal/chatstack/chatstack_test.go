package chatstack

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolhub/completion"
	"toolhub/config"
	"toolhub/contextwindow"
	"toolhub/session"
	"toolhub/suggestion"
)

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, text string, _ completion.Options) (completion.Reply, error) {
	return completion.Reply{Content: `["a", "b", "c"]`}, nil
}

func TestBuildWithoutInventoryNeverGates(t *testing.T) {
	deps, err := Build(context.Background(), config.Default(), Options{Completer: echoCompleter{}})
	require.NoError(t, err)

	assert.Nil(t, deps.Gate)
	assert.Nil(t, deps.Windower)
	assert.NotNil(t, deps.Pacer)
	assert.NotNil(t, deps.Clock)

	got := deps.Suggester.Generate(context.Background(), suggestion.Request{Count: 3, LastAssistant: "hi"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

type historyRecorder struct {
	mu      sync.Mutex
	history [][]contextwindow.Turn
}

func (r *historyRecorder) Complete(_ context.Context, text string, opts completion.Options) (completion.Reply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, opts.History)
	return completion.Reply{Content: "reply to " + text}, nil
}

func (r *historyRecorder) last() []contextwindow.Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history[len(r.history)-1]
}

func TestBuiltSessionsWindowWithTheirContextLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Chat.ContextLimit = 10
	rec := &historyRecorder{}

	deps, err := Build(context.Background(), cfg, Options{Completer: rec})
	require.NoError(t, err)
	sess, err := session.New(context.Background(), session.Config{
		ToolID:         "tool-1",
		ContextLimit:   4,
		TypingDisabled: true,
	}, deps)
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	for i := 0; i < 4; i++ {
		require.NoError(t, sess.Submit(context.Background(), fmt.Sprintf("question %d", i)))
		require.Eventually(t, func() bool {
			snap, err := sess.Snapshot()
			return err == nil && snap.State == session.StateIdle && len(snap.Messages) == 3+2*i
		}, 3*time.Second, 2*time.Millisecond)
	}

	history := rec.last()
	require.Len(t, history, 4)
	assert.Equal(t, contextwindow.RoleSummary, history[0].Role)
	assert.Equal(t, "reply to question 2", history[3].Text)
}

func TestBuildWithInventoryGates(t *testing.T) {
	cfg := config.Default()
	cfg.Sponsor.Static = []config.StaticSponsor{{
		ID:        "sp-1",
		LinkURL:   "https://sponsor.example",
		StartDate: time.Now().Add(-time.Hour),
		EndDate:   time.Now().Add(time.Hour),
		IsActive:  true,
	}}

	deps, err := Build(context.Background(), cfg, Options{
		Completer: echoCompleter{},
		Inventory: StaticInventory(cfg.Sponsor),
	})
	require.NoError(t, err)
	require.NotNil(t, deps.Gate)
	assert.False(t, deps.Gate.Evaluate(context.Background(), 0).Show)
}

func TestStaticInventory(t *testing.T) {
	assert.Nil(t, StaticInventory(config.SponsorConfig{}))

	now := time.Now()
	inv := StaticInventory(config.SponsorConfig{Static: []config.StaticSponsor{{
		ID: "sp-1", Title: "Vector DB", StartDate: now.Add(-time.Minute), EndDate: now.Add(time.Minute), IsActive: true,
	}}})
	require.NotNil(t, inv)

	avail, err := inv.CheckActive(context.Background(), now)
	require.NoError(t, err)
	require.True(t, avail.Available)
	assert.Equal(t, "Vector DB", avail.Ad.Title)
}
