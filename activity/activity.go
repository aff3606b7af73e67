// Package activity dispatches usage and analytics side effects of chat turns.
// Nothing here is ever awaited by a session; failures are logged and dropped.
package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"toolhub/internal/eventbus"
	"toolhub/internal/logger"
	"toolhub/internal/trace"
)

type Kind string

const (
	KindTurnOpened     Kind = "chat.turn_opened"
	KindTurnSent       Kind = "chat.turn_sent"
	KindTurnClosed     Kind = "chat.turn_closed"
	KindSponsorShown   Kind = "chat.sponsor_shown"
	KindSponsorClicked Kind = "chat.sponsor_clicked"
)

const DefaultTimeout = 5 * time.Second

// Event is the payload published for every notification.
type Event struct {
	Kind          Kind   `json:"kind"`
	SessionID     string `json:"session_id"`
	ToolID        string `json:"tool_id"`
	TurnCount     int    `json:"turn_count"`
	Authenticated bool   `json:"authenticated"`
	SponsorID     string `json:"sponsor_id,omitempty"`
	MessageID     string `json:"message_id,omitempty"`
}

type UsageRecorder interface {
	IncrementUsage(ctx context.Context, toolID string) error
}

type AnalyticsRecorder interface {
	Track(ctx context.Context, event string, payload any) error
}

// Dispatcher runs recorders on their own goroutines.
type Dispatcher struct {
	usage     UsageRecorder
	analytics AnalyticsRecorder
	timeout   time.Duration

	wg sync.WaitGroup
}

func NewDispatcher(usage UsageRecorder, analytics AnalyticsRecorder, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{usage: usage, analytics: analytics, timeout: timeout}
}

// Notify returns immediately. Sent events also bump the tool's usage counter.
func (d *Dispatcher) Notify(ctx context.Context, evt Event) {
	base := trace.Detach(ctx)

	if d.analytics != nil {
		d.spawn(base, string(evt.Kind), func(ctx context.Context) error {
			return d.analytics.Track(ctx, string(evt.Kind), evt)
		})
	}
	if evt.Kind == KindTurnSent && d.usage != nil && evt.ToolID != "" {
		d.spawn(base, "usage", func(ctx context.Context) error {
			return d.usage.IncrementUsage(ctx, evt.ToolID)
		})
	}
}

// Wait blocks until every dispatched side effect has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) spawn(base context.Context, name string, fn func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorWithFields("activity side effect panicked", logger.Fields{
					"activity": name,
					"panic":    fmt.Sprint(r),
				})
			}
		}()

		ctx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.WarnWithFields("activity side effect failed", logger.Fields{
				"activity":   name,
				"request_id": trace.RequestIDFromContext(ctx),
				"error":      err.Error(),
			})
		}
	}()
}

// EventBusAnalytics publishes analytics events to a topic.
type EventBusAnalytics struct {
	pub   eventbus.Publisher
	topic eventbus.Topic
}

func NewEventBusAnalytics(pub eventbus.Publisher, topic eventbus.Topic) *EventBusAnalytics {
	return &EventBusAnalytics{pub: pub, topic: topic}
}

func (a *EventBusAnalytics) Track(ctx context.Context, event string, payload any) error {
	evt, err := eventbus.NewJSONEvent("", event, payload)
	if err != nil {
		return err
	}
	if err := a.pub.Publish(ctx, a.topic, evt); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// LogAnalytics writes events to the debug log. Used when no brokers are configured.
type LogAnalytics struct{}

func (LogAnalytics) Track(_ context.Context, event string, payload any) error {
	logger.DebugWithFields("chat activity", logger.Fields{"event": event, "payload": payload})
	return nil
}
