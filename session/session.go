// Package session runs one conversation between a visitor and a tool's assistant.
//
// Every Session owns a single goroutine. Public methods, timer callbacks,
// completion results and typing frames are all posted to it as events, so the
// transcript and turn state are never touched concurrently. Results of work
// that was overtaken by a reset, a newer turn or a newer animation are dropped.
package session

import (
	"context"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
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

const (
	DefaultMaxMessageChars = 1000
	DefaultWelcomeMessage  = "Hi! How can I help you today?"

	eventBuffer     = 64
	suggestionTurns = 6
)

type Completer interface {
	Complete(ctx context.Context, text string, opts completion.Options) (completion.Reply, error)
}

type Gater interface {
	Evaluate(ctx context.Context, turnIndex int) sponsor.Decision
}

type Windower interface {
	Build(history []contextwindow.Turn, newText string) contextwindow.Window
}

type Suggester interface {
	Generate(ctx context.Context, req suggestion.Request) []string
}

// Notifier receives usage and analytics notifications. Notify must not block.
type Notifier interface {
	Notify(ctx context.Context, evt activity.Event)
}

type Config struct {
	// ID is generated when empty.
	ID                   string
	ToolID               string
	Prompt               completion.Prompt
	WelcomeMessage       string
	ContextLimit         int
	MaxMessageChars      int
	SuggestionsEnabled   bool
	SuggestionCount      int
	Authenticated        bool
	InterstitialDuration time.Duration
	CompletionTimeout    time.Duration
	MaxRetries           int
	TypingDisabled       bool
}

// Deps are the collaborators of a Session. Only Completer is required.
type Deps struct {
	Completer Completer
	Gate      Gater
	// Windower replaces the window built from Config.ContextLimit and
	// TokenCounter.
	Windower     Windower
	TokenCounter contextwindow.TokenCounter
	Pacer        typing.Pacer
	Suggester    Suggester
	Notifier     Notifier
	Clock        clock.Clock
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, activity.Event) {}

type Session struct {
	id       string
	cfg      Config
	deps     Deps
	clock    clock.Clock
	animator *typing.Animator
	baseCtx  context.Context

	events     chan func()
	done       chan struct{}
	lastActive atomic.Int64

	// Everything below is owned by the loop goroutine.
	shut            bool
	messages        []Message
	seq             int64
	state           TurnState
	pendingUserText string
	stopRequested   bool
	turnToken       uint64
	epoch           uint64
	submissions     int
	turnCount       int
	suggestions     []string
	notice          *completion.Notice
	turnCtx         context.Context
	turnCancel      context.CancelFunc
	userMsgID       string
	placeholderID   string
	animGen         uint64
	animation       *typing.Animation
	interstitial    *sponsor.Interstitial
	sponsors        map[string]*sponsor.Interstitial
	version         uint64
	watchers        map[int]chan Snapshot
	nextWatcher     int
}

// New starts a session seeded with the welcome message. ctx only carries trace
// information; the session outlives it.
func New(ctx context.Context, cfg Config, deps Deps) (*Session, error) {
	if deps.Completer == nil {
		return nil, errNoCompleter
	}
	cfg = normalizeConfig(cfg)
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Windower == nil {
		deps.Windower = contextwindow.New(cfg.ContextLimit, deps.TokenCounter)
	}
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}

	s := &Session{
		id:       cfg.ID,
		cfg:      cfg,
		deps:     deps,
		clock:    deps.Clock,
		animator: typing.NewAnimator(deps.Clock, deps.Pacer),
		baseCtx:  trace.Detach(ctx),
		events:   make(chan func(), eventBuffer),
		done:     make(chan struct{}),
		sponsors: make(map[string]*sponsor.Interstitial),
		watchers: make(map[int]chan Snapshot),
	}
	s.turnCtx, s.turnCancel = context.WithCancel(s.baseCtx)
	s.appendWelcome()
	s.touch()

	go s.run()

	s.notify(s.activityEvent(activity.KindTurnOpened))
	logger.InfoWithFields("chat session opened", logger.Fields{
		"session_id": s.id,
		"tool_id":    cfg.ToolID,
		"request_id": trace.RequestIDFromContext(ctx),
	})
	return s, nil
}

func normalizeConfig(cfg Config) Config {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if strings.TrimSpace(cfg.WelcomeMessage) == "" {
		cfg.WelcomeMessage = DefaultWelcomeMessage
	}
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = contextwindow.DefaultLimit
	}
	if cfg.MaxMessageChars <= 0 {
		cfg.MaxMessageChars = DefaultMaxMessageChars
	}
	if cfg.SuggestionCount <= 0 {
		cfg.SuggestionCount = suggestion.DefaultCount
	}
	if cfg.InterstitialDuration <= 0 {
		cfg.InterstitialDuration = sponsor.DefaultCountdown
	}
	return cfg
}

func (s *Session) ID() string     { return s.id }
func (s *Session) ToolID() string { return s.cfg.ToolID }

// Done is closed once the session has shut down.
func (s *Session) Done() <-chan struct{} { return s.done }

// LastActive is the time of the most recent visitor call, reads included.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(s.clock.Now().UnixNano())
}

func (s *Session) run() {
	defer close(s.done)
	for fn := range s.events {
		fn()
		if s.shut {
			return
		}
	}
}

// post queues fn on the loop. It reports false once the session is shut down.
func (s *Session) post(fn func()) bool {
	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

// call runs fn on the loop and waits for its result.
func (s *Session) call(fn func() error) error {
	reply := make(chan error, 1)
	if !s.post(func() { reply <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	}
}

// Submit starts a turn with text. Only an idle session accepts a submission.
func (s *Session) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > s.cfg.MaxMessageChars {
		return ErrMessageTooLong
	}
	s.touch()
	return s.call(func() error {
		if s.state != StateIdle {
			return ErrTurnInProgress
		}
		s.beginTurn(ctx, text)
		return nil
	})
}

// Stop ends the typing animation and shows the whole reply. While the reply is
// still being composed, it is shown in full as soon as it arrives.
func (s *Session) Stop() error {
	s.touch()
	return s.call(func() error {
		switch s.state {
		case StateStreaming:
			s.stopAnimation()
			if i := s.indexOf(s.placeholderID); i >= 0 {
				s.commitReply(i)
			}
			s.finishTurn()
		case StateComposing:
			s.stopRequested = true
		}
		return nil
	})
}

// Reset abandons any turn in progress and returns to the welcome message.
func (s *Session) Reset() error {
	s.touch()
	return s.call(func() error {
		s.abortTurn()
		s.messages = nil
		s.appendWelcome()
		s.submissions = 0
		if !s.cfg.Authenticated {
			s.turnCount = 0
		}
		s.notice = nil
		s.suggestions = nil
		s.state = StateIdle
		s.publish()
		return nil
	})
}

// Close shuts the session down. Any later call fails with ErrClosed.
func (s *Session) Close() error {
	return s.call(func() error {
		s.abortTurn()
		s.state = StateIdle
		s.shut = true
		s.publish()
		for id, ch := range s.watchers {
			close(ch)
			delete(s.watchers, id)
		}
		s.notify(s.activityEvent(activity.KindTurnClosed))
		logger.InfoWithFields("chat session closed", logger.Fields{
			"session_id": s.id,
			"tool_id":    s.cfg.ToolID,
			"turns":      s.turnCount,
		})
		return nil
	})
}

func (s *Session) Snapshot() (Snapshot, error) {
	s.touch()
	var snap Snapshot
	err := s.call(func() error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

// Watch streams snapshots after every change, starting with the current one.
// A slow reader only ever sees the newest snapshot. The channel is closed when
// ctx ends or the session shuts down.
func (s *Session) Watch(ctx context.Context) (<-chan Snapshot, error) {
	var (
		ch chan Snapshot
		id int
	)
	s.touch()
	err := s.call(func() error {
		ch = make(chan Snapshot, 1)
		id = s.nextWatcher
		s.nextWatcher++
		s.watchers[id] = ch
		ch <- s.snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			s.post(func() {
				if c, ok := s.watchers[id]; ok {
					delete(s.watchers, id)
					close(c)
				}
			})
		case <-s.done:
		}
	}()
	return ch, nil
}

// ClickSponsor returns the link of a sponsor message once its countdown has
// elapsed, and records the click.
func (s *Session) ClickSponsor(ctx context.Context, messageID string) (string, error) {
	s.touch()
	var link string
	err := s.call(func() error {
		it, ok := s.sponsors[messageID]
		if !ok {
			return ErrMessageNotFound
		}
		l, err := it.ClickThrough()
		if err != nil {
			return err
		}
		link = l

		evt := s.activityEvent(activity.KindSponsorClicked)
		evt.SponsorID = it.Ad().ID
		evt.MessageID = messageID
		s.deps.Notifier.Notify(trace.Detach(ctx), evt)
		return nil
	})
	return link, err
}

// SponsorResolved reports whether the countdown of a sponsor message shown in
// this session has elapsed. It stays true once it is true.
func (s *Session) SponsorResolved(messageID string) (bool, error) {
	var resolved bool
	err := s.call(func() error {
		it, ok := s.sponsors[messageID]
		if !ok {
			return ErrMessageNotFound
		}
		resolved = it.Resolved()
		return nil
	})
	return resolved, err
}

func (s *Session) snapshot() Snapshot {
	msgs := make([]Message, len(s.messages))
	copy(msgs, s.messages)
	var notice *completion.Notice
	if s.notice != nil {
		n := *s.notice
		notice = &n
	}
	return Snapshot{
		ID:          s.id,
		ToolID:      s.cfg.ToolID,
		Version:     s.version,
		State:       s.state,
		Messages:    msgs,
		Suggestions: append([]string(nil), s.suggestions...),
		Notice:      notice,
		TurnCount:   s.turnCount,
		Closed:      s.shut,
		IsLoading:   s.state == StateGating || s.state == StateComposing,
		IsBotTyping: s.state == StateStreaming,
		IsShowingAd: s.state == StateInterstitial,
		CanSend:     s.state == StateIdle && !s.shut,
	}
}

// publish hands the current snapshot to every watcher, replacing any snapshot
// the watcher has not read yet.
func (s *Session) publish() {
	s.version++
	if len(s.watchers) == 0 {
		return
	}
	snap := s.snapshot()
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (s *Session) activityEvent(kind activity.Kind) activity.Event {
	return activity.Event{
		Kind:          kind,
		SessionID:     s.id,
		ToolID:        s.cfg.ToolID,
		TurnCount:     s.turnCount,
		Authenticated: s.cfg.Authenticated,
	}
}

func (s *Session) notify(evt activity.Event) {
	s.deps.Notifier.Notify(s.baseCtx, evt)
}
