package session

import (
	"errors"

	"toolhub/sponsor"
)

var (
	ErrEmptyMessage    = errors.New("empty_message")
	ErrMessageTooLong  = errors.New("message_too_long")
	ErrTurnInProgress  = errors.New("turn_in_progress")
	ErrClosed          = errors.New("session_closed")
	ErrSessionNotFound = errors.New("session_not_found")
	ErrMessageNotFound = errors.New("message_not_found")

	ErrSponsorNotResolved = sponsor.ErrNotResolved
)

var errNoCompleter = errors.New("session: Completer is required")
