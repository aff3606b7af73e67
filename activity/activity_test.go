package activity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolhub/internal/eventbus"
)

type recordedCall struct {
	event   string
	payload any
}

type fakeAnalytics struct {
	mu    sync.Mutex
	calls []recordedCall
	err   error
	block chan struct{}
}

func (f *fakeAnalytics) Track(ctx context.Context, event string, payload any) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{event: event, payload: payload})
	return f.err
}

func (f *fakeAnalytics) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.event)
	}
	return out
}

type fakeUsage struct {
	mu    sync.Mutex
	tools []string
	panic bool
}

func (f *fakeUsage) IncrementUsage(_ context.Context, toolID string) error {
	if f.panic {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tools = append(f.tools, toolID)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	topic  string
	events []eventbus.Event
}

func (p *fakePublisher) Publish(_ context.Context, topic eventbus.Topic, evt eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic.Name()
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) Close() {}

func TestNotifyTracksAndCountsSentTurns(t *testing.T) {
	analytics := &fakeAnalytics{}
	usage := &fakeUsage{}
	d := NewDispatcher(usage, analytics, time.Second)

	d.Notify(context.Background(), Event{Kind: KindTurnOpened, SessionID: "s1", ToolID: "t1"})
	d.Notify(context.Background(), Event{Kind: KindTurnSent, SessionID: "s1", ToolID: "t1", TurnCount: 1})
	d.Wait()

	assert.ElementsMatch(t, []string{string(KindTurnOpened), string(KindTurnSent)}, analytics.events())
	assert.Equal(t, []string{"t1"}, usage.tools)
}

func TestNotifyDoesNotWaitForRecorders(t *testing.T) {
	analytics := &fakeAnalytics{block: make(chan struct{})}
	d := NewDispatcher(nil, analytics, time.Second)

	start := time.Now()
	d.Notify(context.Background(), Event{Kind: KindTurnClosed})
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(analytics.block)
	d.Wait()
	assert.Len(t, analytics.events(), 1)
}

func TestNotifySwallowsFailuresAndPanics(t *testing.T) {
	analytics := &fakeAnalytics{err: errors.New("broker down")}
	d := NewDispatcher(&fakeUsage{panic: true}, analytics, time.Second)

	require.NotPanics(t, func() {
		d.Notify(context.Background(), Event{Kind: KindTurnSent, ToolID: "t1"})
		d.Wait()
	})
}

func TestNotifyTimesOutSlowRecorder(t *testing.T) {
	analytics := &fakeAnalytics{block: make(chan struct{})}
	d := NewDispatcher(nil, analytics, 20*time.Millisecond)

	d.Notify(context.Background(), Event{Kind: KindTurnSent})

	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder was not bounded by the timeout")
	}
}

func TestEventBusAnalyticsPublishesJSONEvent(t *testing.T) {
	pub := &fakePublisher{}
	a := NewEventBusAnalytics(pub, eventbus.NewTopic("toolhub.chat.events"))

	err := a.Track(context.Background(), string(KindSponsorClicked), Event{
		Kind:      KindSponsorClicked,
		SessionID: "s1",
		SponsorID: "ad-1",
	})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "toolhub.chat.events", pub.topic)
	assert.Equal(t, string(KindSponsorClicked), pub.events[0].Type)

	decoded, err := eventbus.DecodeJSON[Event](pub.events[0])
	require.NoError(t, err)
	assert.Equal(t, "ad-1", decoded.SponsorID)
}
