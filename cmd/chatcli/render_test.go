package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"toolhub/completion"
	"toolhub/session"
	"toolhub/sponsor"
)

func welcomeSnap() session.Snapshot {
	return session.Snapshot{Messages: []session.Message{
		{ID: "w1", Role: session.RoleAssistant, Content: "Hi!", DisplayContent: "Hi!", Welcome: true},
	}}
}

func TestRendererPrintsTypingIncrementally(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf)

	snap := welcomeSnap()
	r.Render(snap)

	snap.Messages = append(snap.Messages,
		session.Message{ID: "u1", Role: session.RoleUser, Content: "hello", DisplayContent: "hello"},
		session.Message{ID: "a1", Role: session.RoleAssistant, Content: "Hey there", IsTyping: true},
	)
	r.Render(snap)
	snap.Messages[2].DisplayContent = "Hey"
	r.Render(snap)
	r.Render(snap)
	snap.Messages[2].DisplayContent = "Hey there"
	snap.Messages[2].IsTyping = false
	r.Render(snap)
	r.Render(snap)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "Hi!"))
	assert.Equal(t, 1, strings.Count(out, "hello"))
	assert.Contains(t, out, "Hey there\n")
	assert.Equal(t, 1, strings.Count(out, "Hey"))
}

func TestRendererShowsNoticeAndSuggestionsOnce(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf)

	snap := welcomeSnap()
	snap.Notice = &completion.Notice{Kind: completion.KindTimeout, Message: "took too long"}
	snap.Suggestions = []string{"more", "example"}
	r.Render(snap)
	r.Render(snap)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "took too long"))
	assert.Equal(t, 1, strings.Count(out, "try: more | example"))
}

func TestRendererRemembersSponsor(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf)

	snap := welcomeSnap()
	snap.Messages = append(snap.Messages, session.Message{
		ID:      "s1",
		Role:    session.RoleSponsor,
		Content: "Vector DB",
		Sponsor: &sponsor.Record{Title: "Vector DB", LinkURL: "https://sponsor.example"},
	})
	r.Render(snap)

	assert.Equal(t, "s1", r.LastSponsor())
	assert.Contains(t, buf.String(), "https://sponsor.example")
}

func TestRendererClosesRemovedTypingMessage(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf)

	snap := welcomeSnap()
	snap.Messages = append(snap.Messages, session.Message{ID: "a1", Role: session.RoleAssistant, IsTyping: true})
	r.Render(snap)

	r.Render(welcomeSnap())
	r.Note("after")

	assert.True(t, strings.HasSuffix(buf.String(), "\nafter\n"))
}

func TestRendererMarksReset(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf)

	r.Render(welcomeSnap())
	next := welcomeSnap()
	next.Messages[0].ID = "w2"
	r.Render(next)

	out := buf.String()
	assert.Contains(t, out, "conversation reset")
	assert.Equal(t, 2, strings.Count(out, "Hi!"))
}
