package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"toolhub/completion"
	"toolhub/session"
)

var (
	userTag = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("255")).
		Background(lipgloss.Color("28"))

	assistantTag = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("208"))

	sponsorTag = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("220"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))
)

// renderer prints snapshots to a plain terminal as a growing transcript. Only
// the newest message can still be typing, so output is append-only.
type renderer struct {
	out io.Writer

	mu          sync.Mutex
	firstID     string
	printed     map[string]int
	finished    map[string]bool
	open        string
	notice      *completion.Notice
	suggestions string
	lastSponsor string
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out, printed: map[string]int{}, finished: map[string]bool{}}
}

func (r *renderer) Render(snap session.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(snap.Messages) > 0 && snap.Messages[0].ID != r.firstID {
		if r.firstID != "" {
			r.closeOpen()
			fmt.Fprintln(r.out, dimStyle.Render("· conversation reset ·"))
		}
		r.firstID = snap.Messages[0].ID
		r.printed = map[string]int{}
		r.finished = map[string]bool{}
		r.notice = nil
		r.suggestions = ""
	}

	present := make(map[string]bool, len(snap.Messages))
	for _, m := range snap.Messages {
		present[m.ID] = true
	}
	if r.open != "" && !present[r.open] {
		r.closeOpen()
	}

	for _, m := range snap.Messages {
		r.renderMessage(m)
	}

	if snap.Notice != nil && (r.notice == nil || *r.notice != *snap.Notice) {
		r.closeOpen()
		fmt.Fprintln(r.out, noticeStyle.Render("! "+snap.Notice.Message))
	}
	r.notice = snap.Notice

	if s := strings.Join(snap.Suggestions, " | "); s != r.suggestions {
		if s != "" {
			r.closeOpen()
			fmt.Fprintln(r.out, dimStyle.Render("try: "+s))
		}
		r.suggestions = s
	}
}

// LastSponsor is the id of the most recent sponsor message, if any.
func (r *renderer) LastSponsor() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSponsor
}

// Note prints a line of client output between transcript updates.
func (r *renderer) Note(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeOpen()
	fmt.Fprintln(r.out, line)
}

func (r *renderer) renderMessage(m session.Message) {
	if r.finished[m.ID] {
		return
	}
	n, started := r.printed[m.ID]
	if !started {
		r.closeOpen()
		fmt.Fprint(r.out, tagFor(m)+" ")
		if m.Role == session.RoleSponsor && m.Sponsor != nil {
			r.lastSponsor = m.ID
			fmt.Fprintln(r.out, m.Sponsor.Title+" "+dimStyle.Render(m.Sponsor.LinkURL+" (type /click once the countdown ends)"))
			r.finished[m.ID] = true
			r.printed[m.ID] = len(m.DisplayContent)
			return
		}
		r.open = m.ID
	}

	if len(m.DisplayContent) > n {
		fmt.Fprint(r.out, m.DisplayContent[n:])
		r.printed[m.ID] = len(m.DisplayContent)
	} else {
		r.printed[m.ID] = n
	}

	if !m.IsTyping {
		fmt.Fprintln(r.out)
		r.finished[m.ID] = true
		r.open = ""
	}
}

func (r *renderer) closeOpen() {
	if r.open == "" {
		return
	}
	fmt.Fprintln(r.out)
	r.finished[r.open] = true
	r.open = ""
}

func tagFor(m session.Message) string {
	switch m.Role {
	case session.RoleUser:
		return userTag.Render(" you ")
	case session.RoleSponsor:
		return sponsorTag.Render(" sponsored ")
	default:
		return assistantTag.Render(" assistant ")
	}
}
