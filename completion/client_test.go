package completion

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolhub/config"
	"toolhub/contextwindow"
)

type scriptedService struct {
	calls atomic.Int32
	fn    func(ctx context.Context, call int, req Request) (Reply, error)
}

func (s *scriptedService) Chat(ctx context.Context, req Request) (Reply, error) {
	call := int(s.calls.Add(1))
	return s.fn(ctx, call, req)
}

func blockUntilDone(ctx context.Context, _ int, _ Request) (Reply, error) {
	<-ctx.Done()
	return Reply{}, ctx.Err()
}

func TestCompleteReturnsReply(t *testing.T) {
	svc := &scriptedService{fn: func(_ context.Context, _ int, req Request) (Reply, error) {
		return Reply{Content: "echo: " + req.Text, Model: req.Prompt.Model}, nil
	}}
	c := NewClient(svc, Config{Model: "default-model"})

	reply, err := c.Complete(context.Background(), "hello", Options{
		ToolID:  "tool-1",
		History: []contextwindow.Turn{{Role: contextwindow.RoleUser, Text: "before"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "echo: hello", reply.Content)
	assert.Equal(t, "default-model", reply.Model)
	assert.Equal(t, 1, reply.Attempts)
}

func TestCompleteTimesOutOnEveryAttempt(t *testing.T) {
	svc := &scriptedService{fn: blockUntilDone}
	c := NewClient(svc, Config{})

	_, err := c.Complete(context.Background(), "slow", Options{MaxRetries: 2, Timeout: 20 * time.Millisecond})

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindTimeout, cerr.Kind)
	assert.Equal(t, int32(2), svc.calls.Load())
}

func TestCompleteRetriesUnknownThenSucceeds(t *testing.T) {
	svc := &scriptedService{fn: func(_ context.Context, call int, _ Request) (Reply, error) {
		if call == 1 {
			return Reply{}, errors.New("connection reset")
		}
		return Reply{Content: "ok"}, nil
	}}
	c := NewClient(svc, Config{MaxRetries: 2})

	reply, err := c.Complete(context.Background(), "hi", Options{})

	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Content)
	assert.Equal(t, 2, reply.Attempts)
}

func TestCompleteNeverRetriesPermanentKinds(t *testing.T) {
	for _, kind := range []Kind{KindRateLimitExceeded, KindInputTooLong, KindMissingCredentials} {
		t.Run(string(kind), func(t *testing.T) {
			svc := &scriptedService{fn: func(context.Context, int, Request) (Reply, error) {
				return Reply{}, newError(kind, errors.New("boom"))
			}}
			c := NewClient(svc, Config{MaxRetries: 3})

			_, err := c.Complete(context.Background(), "hi", Options{})

			assert.Equal(t, kind, KindOf(err))
			assert.Equal(t, int32(1), svc.calls.Load())
		})
	}
}

func TestCompleteRejectsOversizedInputWithoutCalling(t *testing.T) {
	svc := &scriptedService{fn: blockUntilDone}
	c := NewClient(svc, Config{MaxInputChars: 10})

	_, err := c.Complete(context.Background(), strings.Repeat("a", 11), Options{})

	assert.Equal(t, KindInputTooLong, KindOf(err))
	assert.Zero(t, svc.calls.Load())
}

func TestCompleteTreatsEmptyReplyAsUnknown(t *testing.T) {
	svc := &scriptedService{fn: func(context.Context, int, Request) (Reply, error) {
		return Reply{Content: "   "}, nil
	}}
	c := NewClient(svc, Config{MaxRetries: 2})

	_, err := c.Complete(context.Background(), "hi", Options{})

	assert.Equal(t, KindUnknown, KindOf(err))
	assert.Equal(t, int32(2), svc.calls.Load())
}

func TestCompleteStopsWhenCallerCancels(t *testing.T) {
	svc := &scriptedService{fn: blockUntilDone}
	c := NewClient(svc, Config{MaxRetries: 5, Timeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := c.Complete(ctx, "hi", Options{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), svc.calls.Load())
}

func TestNoticeFor(t *testing.T) {
	testCases := []struct {
		kind     Kind
		contains string
		long     bool
	}{
		{kind: KindRateLimitExceeded, contains: "Too many requests", long: true},
		{kind: KindInputTooLong, contains: "shorten"},
		{kind: KindTimeout, contains: "simpler question"},
		{kind: KindMissingCredentials, contains: "configuration error"},
		{kind: KindUnknown, contains: "try again later"},
	}

	for _, tc := range testCases {
		t.Run(string(tc.kind), func(t *testing.T) {
			n := NoticeFor(newError(tc.kind, errors.New("GEMINI_API_KEY environment variable is not set")))
			assert.Equal(t, tc.kind, n.Kind)
			assert.Contains(t, n.Message, tc.contains)
			assert.NotContains(t, n.Message, "GEMINI_API_KEY")
			if tc.long {
				assert.Equal(t, longNoticeDuration, n.Duration)
			} else {
				assert.Equal(t, defaultNoticeDuration, n.Duration)
			}
		})
	}
}

func TestNewServiceFromConfigWithoutKeyFailsWithMissingCredentials(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	c, _, err := NewClientFromConfig(context.Background(), config.LLMConfig{Provider: config.ProviderGoogle, MaxRetries: 2})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "hi", Options{})
	assert.Equal(t, KindMissingCredentials, KindOf(err))
}
