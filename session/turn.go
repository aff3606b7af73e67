package session

import (
	"context"
	"unicode/utf8"

	"github.com/google/uuid"

	"toolhub/activity"
	"toolhub/completion"
	"toolhub/contextwindow"
	"toolhub/internal/logger"
	"toolhub/internal/trace"
	"toolhub/sponsor"
	"toolhub/suggestion"
	"toolhub/typing"
)

// Turn handlers run on the loop goroutine only. Every async step captures the
// turn token (or epoch, or animation generation) it was started under and is
// ignored if that token has moved on.

func (s *Session) beginTurn(ctx context.Context, text string) {
	s.cancelTurn()
	s.turnCtx, s.turnCancel = context.WithCancel(trace.Detach(ctx))
	s.turnToken++
	tok := s.turnToken
	turnIndex := s.submissions
	s.submissions++
	s.turnCount++
	s.notice = nil
	s.stopRequested = false

	msg := s.appendMessage(Message{Role: RoleUser, Content: text, DisplayContent: text})
	s.userMsgID = msg.ID
	s.state = StateGating
	s.publish()
	s.notify(s.activityEvent(activity.KindTurnSent))

	if s.deps.Gate == nil {
		s.startComposing(tok, text)
		return
	}
	gctx := s.turnCtx
	go func() {
		d := s.deps.Gate.Evaluate(gctx, turnIndex)
		s.post(func() { s.onGateDecision(tok, text, d) })
	}()
}

func (s *Session) onGateDecision(tok uint64, text string, d sponsor.Decision) {
	if tok != s.turnToken || s.state != StateGating {
		return
	}
	if !d.Show || d.Ad == nil {
		s.startComposing(tok, text)
		return
	}

	ad := *d.Ad
	resolvesAt := s.clock.Now().Add(s.cfg.InterstitialDuration)
	msg := s.appendMessage(Message{
		Role:           RoleSponsor,
		Content:        ad.Title,
		DisplayContent: ad.Title,
		Sponsor:        &ad,
		ResolvesAt:     &resolvesAt,
	})
	msgID := msg.ID
	s.pendingUserText = text
	s.state = StateInterstitial
	s.interstitial = sponsor.StartInterstitial(s.clock, s.cfg.InterstitialDuration, ad, func() {
		s.post(func() { s.onInterstitialResolved(tok, msgID) })
	})
	s.sponsors[msgID] = s.interstitial
	s.publish()

	evt := s.activityEvent(activity.KindSponsorShown)
	evt.SponsorID = ad.ID
	evt.MessageID = msgID
	s.notify(evt)
}

func (s *Session) onInterstitialResolved(tok uint64, msgID string) {
	if tok != s.turnToken || s.state != StateInterstitial {
		return
	}
	if i := s.indexOf(msgID); i >= 0 {
		s.messages[i].IsSponsorResolved = true
		s.removeAt(i)
	}
	s.interstitial = nil
	text := s.pendingUserText
	s.pendingUserText = ""
	s.startComposing(tok, text)
}

func (s *Session) startComposing(tok uint64, text string) {
	s.state = StateComposing
	s.suggestions = nil

	win := s.deps.Windower.Build(s.history(s.userMsgID), text)
	ph := s.appendMessage(Message{Role: RoleAssistant, IsTyping: true})
	s.placeholderID = ph.ID
	s.publish()

	logger.DebugWithFields("composing reply", logger.Fields{
		"session_id": s.id,
		"tool_id":    s.cfg.ToolID,
		"history":    len(win.History),
		"summarized": win.Summarized,
		"tokens":     win.Tokens,
		"request_id": trace.RequestIDFromContext(s.turnCtx),
	})

	ctx := s.turnCtx
	opts := completion.Options{
		ToolID:     s.cfg.ToolID,
		Prompt:     s.cfg.Prompt,
		History:    win.History,
		MaxRetries: s.cfg.MaxRetries,
		Timeout:    s.cfg.CompletionTimeout,
	}
	go func() {
		reply, err := s.deps.Completer.Complete(ctx, text, opts)
		s.post(func() { s.onReply(tok, reply, err) })
	}()
}

func (s *Session) onReply(tok uint64, reply completion.Reply, err error) {
	if tok != s.turnToken || s.state != StateComposing {
		return
	}
	i := s.indexOf(s.placeholderID)

	if err != nil {
		if i >= 0 {
			s.removeAt(i)
		}
		if j := s.indexOf(s.userMsgID); j >= 0 {
			s.messages[j].Failed = true
		}
		n := completion.NoticeFor(err)
		s.notice = &n
		s.state = StateErrored
		s.publish()
		logger.WarnWithFields("chat turn failed", logger.Fields{
			"session_id": s.id,
			"tool_id":    s.cfg.ToolID,
			"kind":       string(n.Kind),
			"error":      err.Error(),
		})
		s.finishTurn()
		return
	}
	if i < 0 {
		s.finishTurn()
		return
	}

	s.messages[i].Content = reply.Content
	if s.stopRequested || s.cfg.TypingDisabled {
		stopped := s.stopRequested
		s.commitReply(i)
		s.finishTurn()
		if !stopped {
			s.requestSuggestions()
		}
		return
	}

	s.state = StateStreaming
	s.publish()

	s.animGen++
	gen, msgID := s.animGen, s.placeholderID
	s.animation = s.animator.Animate(reply.Content, func(f typing.Frame) {
		s.post(func() { s.onFrame(gen, msgID, f) })
	})
}

func (s *Session) onFrame(gen uint64, msgID string, f typing.Frame) {
	if gen != s.animGen || s.state != StateStreaming {
		return
	}
	i := s.indexOf(msgID)
	if i < 0 {
		return
	}
	m := &s.messages[i]
	if f.Done {
		s.commitReply(i)
		s.animation = nil
		s.finishTurn()
		s.requestSuggestions()
		return
	}

	runes := []rune(m.Content)
	shown := min(f.Shown, len(runes))
	if shown > utf8.RuneCountInString(m.DisplayContent) {
		m.DisplayContent = string(runes[:shown])
		s.publish()
	}
}

func (s *Session) commitReply(i int) {
	s.messages[i].DisplayContent = s.messages[i].Content
	s.messages[i].IsTyping = false
}

func (s *Session) finishTurn() {
	s.state = StateIdle
	s.placeholderID = ""
	s.stopRequested = false
	s.publish()
}

func (s *Session) requestSuggestions() {
	if !s.cfg.SuggestionsEnabled || s.deps.Suggester == nil {
		return
	}
	var last string
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == RoleAssistant && !s.messages[i].IsTyping {
			last = s.messages[i].Content
			break
		}
	}
	recent := s.history("")
	if len(recent) > suggestionTurns {
		recent = recent[len(recent)-suggestionTurns:]
	}
	req := suggestion.Request{
		ToolID:        s.cfg.ToolID,
		Prompt:        s.cfg.Prompt,
		LastAssistant: last,
		Recent:        recent,
		Count:         s.cfg.SuggestionCount,
	}

	ep, ctx := s.epoch, s.turnCtx
	go func() {
		list := s.deps.Suggester.Generate(ctx, req)
		s.post(func() {
			if ep != s.epoch || s.shut {
				return
			}
			s.suggestions = list
			s.publish()
		})
	}()
}

func (s *Session) stopAnimation() {
	if s.animation != nil {
		s.animation.Cancel()
		s.animation = nil
	}
	s.animGen++
}

// abortTurn drops everything in flight: the completion call, the interstitial
// countdown, the animation and any pending suggestions.
func (s *Session) abortTurn() {
	s.cancelTurn()
	s.turnToken++
	s.epoch++
	s.stopAnimation()
	if s.interstitial != nil {
		s.interstitial.Abandon()
		s.interstitial = nil
	}
	s.pendingUserText = ""
	s.stopRequested = false
	s.placeholderID = ""
	s.userMsgID = ""
}

func (s *Session) cancelTurn() {
	if s.turnCancel != nil {
		s.turnCancel()
	}
}

// history returns the prior conversation for the completion backend. The welcome
// message, sponsor messages, failed submissions and placeholders are left out.
func (s *Session) history(exclude string) []contextwindow.Turn {
	out := make([]contextwindow.Turn, 0, len(s.messages))
	for _, m := range s.messages {
		if m.ID == exclude || m.Welcome || m.Failed || m.IsTyping {
			continue
		}
		switch m.Role {
		case RoleUser:
			out = append(out, contextwindow.Turn{Role: contextwindow.RoleUser, Text: m.Content})
		case RoleAssistant:
			out = append(out, contextwindow.Turn{Role: contextwindow.RoleAssistant, Text: m.Content})
		}
	}
	return out
}

func (s *Session) appendWelcome() {
	s.appendMessage(Message{
		Role:           RoleAssistant,
		Content:        s.cfg.WelcomeMessage,
		DisplayContent: s.cfg.WelcomeMessage,
		Welcome:        true,
	})
}

// appendMessage assigns identity to m and appends it. User and sponsor messages
// invalidate the current suggestions.
func (s *Session) appendMessage(m Message) Message {
	s.seq++
	m.ID = newMessageID()
	m.Seq = s.seq
	m.CreatedAt = s.clock.Now()
	if m.Role == RoleUser || m.Role == RoleSponsor {
		s.epoch++
		s.suggestions = nil
	}
	s.messages = append(s.messages, m)
	return m
}

func (s *Session) removeAt(i int) {
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
}

func (s *Session) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func newMessageID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
