package services

import (
	"context"
	"errors"
	"net/http"

	"toolhub/config"
	"toolhub/models"
	"toolhub/repositories"
	"toolhub/session"
)

// ToolStore loads a tool's chat configuration.
type ToolStore interface {
	GetByID(ctx context.Context, id string) (*models.Tool, error)
}

type ChatService struct {
	tools   ToolStore
	manager *session.Manager
	deps    session.Deps
	cfg     config.AppConfig
}

// ChatError 는 핸들러가 그대로 응답으로 내릴 수 있는 상태 코드와 에러 코드를 담는다.
type ChatError struct {
	StatusCode int
	ErrorCode  string
	Cause      error
}

func (e *ChatError) Error() string {
	if e == nil {
		return "chat_failed"
	}
	return e.ErrorCode
}

func (e *ChatError) Unwrap() error { return e.Cause }

// NewChatService shares deps between every session it opens.
func NewChatService(tools ToolStore, manager *session.Manager, deps session.Deps, cfg config.AppConfig) *ChatService {
	return &ChatService{tools: tools, manager: manager, deps: deps, cfg: cfg}
}

func (s *ChatService) OpenSession(ctx context.Context, toolID string, authenticated bool) (session.Snapshot, *ChatError) {
	tool, err := s.tools.GetByID(ctx, toolID)
	if err != nil {
		return session.Snapshot{}, normalizeChatError(err)
	}

	sess, err := s.manager.Open(ctx, s.sessionConfig(tool, authenticated), s.deps)
	if err != nil {
		return session.Snapshot{}, normalizeChatError(err)
	}
	snap, err := sess.Snapshot()
	if err != nil {
		return session.Snapshot{}, normalizeChatError(err)
	}
	return snap, nil
}

func (s *ChatService) sessionConfig(tool *models.Tool, authenticated bool) session.Config {
	welcome := tool.WelcomeMessage
	if welcome == "" {
		welcome = s.cfg.Chat.WelcomeMessage
	}
	toolID := tool.Slug
	if !tool.ID.IsZero() {
		toolID = tool.ID.Hex()
	}
	return session.Config{
		ToolID:               toolID,
		Prompt:               tool.Prompt,
		WelcomeMessage:       welcome,
		ContextLimit:         s.cfg.Chat.ContextLimit,
		MaxMessageChars:      s.cfg.Chat.MaxMessageChars,
		SuggestionsEnabled:   tool.SuggestionsEnabled,
		SuggestionCount:      s.cfg.Suggestions.Count,
		Authenticated:        authenticated,
		InterstitialDuration: s.cfg.Sponsor.Countdown,
		CompletionTimeout:    s.cfg.LLM.Timeout,
		MaxRetries:           s.cfg.LLM.MaxRetries,
		TypingDisabled:       s.cfg.Typing.Disabled,
	}
}

func (s *ChatService) Snapshot(sid string) (session.Snapshot, *ChatError) {
	sess, err := s.manager.Get(sid)
	if err != nil {
		return session.Snapshot{}, normalizeChatError(err)
	}
	snap, err := sess.Snapshot()
	if err != nil {
		return session.Snapshot{}, normalizeChatError(err)
	}
	return snap, nil
}

func (s *ChatService) Submit(ctx context.Context, sid, text string) (session.Snapshot, *ChatError) {
	return s.apply(sid, func(sess *session.Session) error { return sess.Submit(ctx, text) })
}

func (s *ChatService) Stop(sid string) (session.Snapshot, *ChatError) {
	return s.apply(sid, (*session.Session).Stop)
}

func (s *ChatService) Reset(sid string) (session.Snapshot, *ChatError) {
	return s.apply(sid, (*session.Session).Reset)
}

func (s *ChatService) Close(sid string) *ChatError {
	if err := s.manager.Close(sid); err != nil {
		return normalizeChatError(err)
	}
	return nil
}

func (s *ChatService) ClickSponsor(ctx context.Context, sid, messageID string) (string, *ChatError) {
	sess, err := s.manager.Get(sid)
	if err != nil {
		return "", normalizeChatError(err)
	}
	link, err := sess.ClickSponsor(ctx, messageID)
	if err != nil {
		return "", normalizeChatError(err)
	}
	return link, nil
}

func (s *ChatService) Watch(ctx context.Context, sid string) (<-chan session.Snapshot, *ChatError) {
	sess, err := s.manager.Get(sid)
	if err != nil {
		return nil, normalizeChatError(err)
	}
	ch, err := sess.Watch(ctx)
	if err != nil {
		return nil, normalizeChatError(err)
	}
	return ch, nil
}

func (s *ChatService) apply(sid string, fn func(*session.Session) error) (session.Snapshot, *ChatError) {
	sess, err := s.manager.Get(sid)
	if err != nil {
		return session.Snapshot{}, normalizeChatError(err)
	}
	if err := fn(sess); err != nil {
		return session.Snapshot{}, normalizeChatError(err)
	}
	snap, err := sess.Snapshot()
	if err != nil {
		return session.Snapshot{}, normalizeChatError(err)
	}
	return snap, nil
}

func normalizeChatError(err error) *ChatError {
	status, code := http.StatusInternalServerError, "chat_failed"
	switch {
	case errors.Is(err, repositories.ErrToolNotFound):
		status, code = http.StatusNotFound, "tool_not_found"
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrClosed):
		status, code = http.StatusNotFound, "session_not_found"
	case errors.Is(err, session.ErrMessageNotFound):
		status, code = http.StatusNotFound, "message_not_found"
	case errors.Is(err, session.ErrEmptyMessage):
		status, code = http.StatusBadRequest, "empty_message"
	case errors.Is(err, session.ErrMessageTooLong):
		status, code = http.StatusBadRequest, "message_too_long"
	case errors.Is(err, session.ErrTurnInProgress):
		status, code = http.StatusConflict, "turn_in_progress"
	case errors.Is(err, session.ErrSponsorNotResolved):
		status, code = http.StatusConflict, "sponsor_not_resolved"
	}
	return &ChatError{StatusCode: status, ErrorCode: code, Cause: err}
}
