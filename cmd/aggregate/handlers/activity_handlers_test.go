package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolhub/activity"
	"toolhub/internal/eventbus"
	"toolhub/repositories"
)

type increment struct {
	subject, id, field string
	at                 time.Time
}

type fakeStats struct {
	calls []increment
	err   error
}

func (f *fakeStats) IncrementDaily(_ context.Context, subject, id, field string, at time.Time) error {
	f.calls = append(f.calls, increment{subject, id, field, at})
	return f.err
}

func event(t *testing.T, evt activity.Event) eventbus.Event {
	t.Helper()
	e, err := eventbus.NewJSONEvent("", string(evt.Kind), evt)
	require.NoError(t, err)
	return e
}

func TestHandleCountsByKind(t *testing.T) {
	cases := []struct {
		name string
		evt  activity.Event
		want increment
	}{
		{"opened", activity.Event{Kind: activity.KindTurnOpened, ToolID: "t1"}, increment{subject: repositories.SubjectTool, id: "t1", field: "sessions"}},
		{"sent", activity.Event{Kind: activity.KindTurnSent, ToolID: "t1"}, increment{subject: repositories.SubjectTool, id: "t1", field: "turns"}},
		{"shown", activity.Event{Kind: activity.KindSponsorShown, ToolID: "t1", SponsorID: "sp"}, increment{subject: repositories.SubjectSponsor, id: "sp", field: "impressions"}},
		{"clicked", activity.Event{Kind: activity.KindSponsorClicked, SponsorID: "sp"}, increment{subject: repositories.SubjectSponsor, id: "sp", field: "clicks"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stats := &fakeStats{}
			e := event(t, tc.evt)

			require.NoError(t, NewActivityHandlers(stats).Handle(context.Background(), e))
			require.Len(t, stats.calls, 1)
			got := stats.calls[0]
			assert.Equal(t, tc.want.subject, got.subject)
			assert.Equal(t, tc.want.id, got.id)
			assert.Equal(t, tc.want.field, got.field)
			assert.Equal(t, e.OccurredAt, got.at)
		})
	}
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	stats := &fakeStats{}
	h := NewActivityHandlers(stats)

	require.NoError(t, h.Handle(context.Background(), event(t, activity.Event{Kind: activity.KindTurnClosed, ToolID: "t1"})))
	require.NoError(t, h.Handle(context.Background(), event(t, activity.Event{Kind: activity.KindTurnSent})))
	assert.Empty(t, stats.calls)
}

func TestHandleReportsStoreErrors(t *testing.T) {
	stats := &fakeStats{err: errors.New("write conflict")}
	err := NewActivityHandlers(stats).Handle(context.Background(), event(t, activity.Event{Kind: activity.KindTurnSent, ToolID: "t1"}))
	assert.ErrorContains(t, err, "write conflict")
}

func TestHandleRejectsBadPayload(t *testing.T) {
	stats := &fakeStats{}
	err := NewActivityHandlers(stats).Handle(context.Background(), eventbus.Event{Type: string(activity.KindTurnSent), Payload: []byte(`"nope"`)})
	assert.Error(t, err)
	assert.Empty(t, stats.calls)
}
