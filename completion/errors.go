package completion

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

// Kind classifies a completion failure.
type Kind string

const (
	KindRateLimitExceeded  Kind = "rate_limit_exceeded"
	KindInputTooLong       Kind = "input_too_long"
	KindTimeout            Kind = "timeout"
	KindMissingCredentials Kind = "missing_credentials"
	KindUnknown            Kind = "unknown"
)

// Error is the only error type Client.Complete returns.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return string(KindUnknown)
	}
	if e.Cause == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether another attempt may succeed. Only timeouts and
// unclassified failures are retried.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindUnknown
}

func newError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// KindOf returns the Kind of err, or KindUnknown when err is not a *Error.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return KindUnknown
}

// classify turns a backend error into a *Error. Backends that already know the
// kind return a *Error themselves.
func classify(err error) *Error {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(KindTimeout, err)
	}
	return newError(KindUnknown, err)
}

// statusKind maps an HTTP status of a provider response to a Kind.
func statusKind(status int) Kind {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimitExceeded
	case http.StatusRequestEntityTooLarge:
		return KindInputTooLong
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindMissingCredentials
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUnknown
	}
}

// inputLimitPhrases are how providers word a rejected oversized prompt when
// they answer with a plain 400.
var inputLimitPhrases = []string{
	"prompt is too long",
	"input token count",
	"exceeds the maximum number of tokens",
	"context length",
	"context window",
	"too many tokens",
}

// inputLimitMessage reports whether a provider error message describes a
// prompt over the model's token limit.
func inputLimitMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, p := range inputLimitPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Notice is the user-visible rendering of a failure.
type Notice struct {
	Kind     Kind          `json:"kind"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`
}

const (
	defaultNoticeDuration = 4 * time.Second
	longNoticeDuration    = 8 * time.Second
)

// NoticeFor renders err for the end user. Operator-facing causes such as missing
// credentials are deliberately not detailed.
func NoticeFor(err error) Notice {
	kind := KindOf(err)
	n := Notice{Kind: kind, Duration: defaultNoticeDuration}
	switch kind {
	case KindRateLimitExceeded:
		n.Message = "Too many requests right now. Please wait a moment and try again."
		n.Duration = longNoticeDuration
	case KindInputTooLong:
		n.Message = "Your message is too long. Please shorten it and try again."
	case KindTimeout:
		n.Message = "The response took too long. Try a simpler question."
	case KindMissingCredentials:
		n.Message = "The chat service has a configuration error. Please try again later."
	default:
		n.Message = "Something went wrong. Please try again later."
	}
	return n
}
