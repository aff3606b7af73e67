package sponsor

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInventory struct {
	calls atomic.Int32
	avail Availability
	err   error
}

func (f *fakeInventory) CheckActive(context.Context, time.Time) (Availability, error) {
	f.calls.Add(1)
	return f.avail, f.err
}

func activeAd() *Record {
	return &Record{ID: "sp-1", Title: "Vector DB", LinkURL: "https://sponsor.example", IsActive: true}
}

func TestShouldGateRequiresAvailabilityAndPriorTurn(t *testing.T) {
	g := NewGate(nil, WithProbability(1))

	assert.False(t, g.ShouldGate(0, true))
	assert.False(t, g.ShouldGate(3, false))
	assert.True(t, g.ShouldGate(1, true))
}

func TestShouldGateDrawsWithConfiguredProbability(t *testing.T) {
	g := NewGate(nil, WithRand(rand.New(rand.NewPCG(1, 2))))

	hits := 0
	const n = 20000
	for i := 0; i < n; i++ {
		if g.ShouldGate(1, true) {
			hits++
		}
	}

	assert.InDelta(t, DefaultProbability, float64(hits)/n, 0.02)
}

func TestShouldGateNeverFiresWithZeroProbability(t *testing.T) {
	g := NewGate(nil, WithProbability(0))
	for i := 0; i < 100; i++ {
		assert.False(t, g.ShouldGate(5, true))
	}
}

func TestEvaluateShowsAvailableAd(t *testing.T) {
	inv := &fakeInventory{avail: Availability{Available: true, Ad: activeAd()}}
	g := NewGate(inv, WithProbability(1))

	d := g.Evaluate(context.Background(), 2)

	assert.True(t, d.Show)
	require.NotNil(t, d.Ad)
	assert.Equal(t, "sp-1", d.Ad.ID)
}

func TestEvaluateFailsOpen(t *testing.T) {
	inv := &fakeInventory{err: errors.New("mongo down")}
	g := NewGate(inv, WithProbability(1))

	d := g.Evaluate(context.Background(), 2)

	assert.False(t, d.Show)
	assert.Equal(t, int32(1), inv.calls.Load())
}

func TestEvaluateSkipsInventoryOnFirstTurn(t *testing.T) {
	inv := &fakeInventory{avail: Availability{Available: true, Ad: activeAd()}}
	g := NewGate(inv, WithProbability(1))

	d := g.Evaluate(context.Background(), 0)

	assert.False(t, d.Show)
	assert.Zero(t, inv.calls.Load())
}

func TestEvaluateChecksEverySubmission(t *testing.T) {
	inv := &fakeInventory{avail: Availability{Available: true, Ad: activeAd()}}
	g := NewGate(inv, WithProbability(1))

	g.Evaluate(context.Background(), 1)
	inv.avail = Availability{}
	d := g.Evaluate(context.Background(), 2)

	assert.False(t, d.Show)
	assert.Equal(t, int32(2), inv.calls.Load())
}

func TestInterstitialResolvesAfterCountdown(t *testing.T) {
	mock := clock.NewMock()
	var fired atomic.Int32
	i := StartInterstitial(mock, 10*time.Second, *activeAd(), func() { fired.Add(1) })

	mock.Add(9 * time.Second)
	assert.False(t, i.Resolved())
	assert.Equal(t, time.Second, i.Remaining())
	_, err := i.ClickThrough()
	assert.ErrorIs(t, err, ErrNotResolved)

	mock.Add(time.Second)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
	assert.True(t, i.Resolved())
	assert.Zero(t, i.Remaining())

	link, err := i.ClickThrough()
	require.NoError(t, err)
	assert.Equal(t, "https://sponsor.example", link)

	i.Abandon()
	mock.Add(time.Minute)
	assert.True(t, i.Resolved(), "resolution never reverts")
}

func TestInterstitialAbandonPreventsResolution(t *testing.T) {
	mock := clock.NewMock()
	var fired atomic.Int32
	i := StartInterstitial(mock, 10*time.Second, *activeAd(), func() { fired.Add(1) })

	i.Abandon()
	mock.Add(time.Minute)

	assert.False(t, i.Resolved())
	assert.Zero(t, fired.Load())
}

func TestStaticInventoryHonoursWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	inv := NewStaticInventory(
		Record{ID: "inactive", StartDate: start, EndDate: end},
		Record{ID: "active", StartDate: start, EndDate: end, IsActive: true},
	)

	avail, err := inv.CheckActive(context.Background(), start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Equal(t, "active", avail.Ad.ID)

	avail, err = inv.CheckActive(context.Background(), end.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, avail.Available)

	avail, _ = inv.CheckActive(context.Background(), start)
	assert.True(t, avail.Available, "start date is inclusive")
	avail, _ = inv.CheckActive(context.Background(), end)
	assert.True(t, avail.Available, "end date is inclusive")
}
