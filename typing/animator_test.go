package typing

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedPacer struct {
	size  int
	delay time.Duration
}

func (p fixedPacer) Next(rune) (int, time.Duration) { return p.size, p.delay }

type frameLog struct {
	mu     sync.Mutex
	frames []Frame
}

func (l *frameLog) add(f Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, f)
}

func (l *frameLog) snapshot() []Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Frame(nil), l.frames...)
}

func waitDone(t *testing.T, an *Animation) {
	t.Helper()
	select {
	case <-an.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("animation did not finish")
	}
}

func TestAnimateRevealsMonotonicallyToFullText(t *testing.T) {
	a := NewAnimator(clock.NewMock(), fixedPacer{size: 2})
	log := &frameLog{}

	an := a.Animate("héllo wörld", log.add)
	waitDone(t, an)

	frames := log.snapshot()
	require.NotEmpty(t, frames)
	prev := 0
	for _, f := range frames {
		assert.GreaterOrEqual(t, f.Shown, prev)
		assert.Equal(t, 11, f.Total)
		prev = f.Shown
	}
	last := frames[len(frames)-1]
	assert.True(t, last.Done)
	assert.Equal(t, 11, last.Shown)
	assert.Len(t, frames, 6)
}

func TestAnimateEmptyTextFinishesImmediately(t *testing.T) {
	a := NewAnimator(clock.NewMock(), fixedPacer{size: 1})
	log := &frameLog{}

	waitDone(t, a.Animate("", log.add))

	assert.Equal(t, []Frame{{Done: true}}, log.snapshot())
}

func TestAnimateWaitsForClock(t *testing.T) {
	mock := clock.NewMock()
	a := NewAnimator(mock, fixedPacer{size: 1, delay: 30 * time.Millisecond})
	log := &frameLog{}

	an := a.Animate("abc", log.add)

	require.Eventually(t, func() bool {
		mock.Add(30 * time.Millisecond)
		return len(log.snapshot()) == 3
	}, 2*time.Second, 5*time.Millisecond)
	waitDone(t, an)
	assert.True(t, log.snapshot()[2].Done)
}

func TestCancelStopsFrames(t *testing.T) {
	mock := clock.NewMock()
	a := NewAnimator(mock, fixedPacer{size: 1, delay: time.Second})
	log := &frameLog{}

	an := a.Animate("abcdef", log.add)
	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		return len(log.snapshot()) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, an.Cancel())
	assert.False(t, an.Cancel())
	waitDone(t, an)

	n := len(log.snapshot())
	mock.Add(10 * time.Second)
	assert.Len(t, log.snapshot(), n)
	for _, f := range log.snapshot() {
		assert.False(t, f.Done)
	}
}

func TestCancelAfterCompletionReturnsFalse(t *testing.T) {
	a := NewAnimator(clock.NewMock(), fixedPacer{size: 5})
	an := a.Animate("done", func(Frame) {})
	waitDone(t, an)

	assert.False(t, an.Cancel())
}

func TestNewAnimationCancelsPrevious(t *testing.T) {
	mock := clock.NewMock()
	a := NewAnimator(mock, fixedPacer{size: 1, delay: time.Second})

	first := a.Animate("first reply", func(Frame) {})
	second := a.Animate("second", func(Frame) {})

	waitDone(t, first)
	assert.False(t, first.Cancel())
	assert.True(t, a.Cancel())
	waitDone(t, second)
	assert.False(t, a.Cancel())
}

func TestRandomPacerRanges(t *testing.T) {
	p := NewRandomPacer(rand.New(rand.NewPCG(7, 9)))

	cases := []struct {
		prev   rune
		lo, hi time.Duration
	}{
		{'a', 15 * time.Millisecond, 45 * time.Millisecond},
		{0, 15 * time.Millisecond, 45 * time.Millisecond},
		{'.', 300 * time.Millisecond, 700 * time.Millisecond},
		{'?', 300 * time.Millisecond, 700 * time.Millisecond},
		{',', 150 * time.Millisecond, 350 * time.Millisecond},
		{';', 150 * time.Millisecond, 350 * time.Millisecond},
	}
	for _, tc := range cases {
		for i := 0; i < 200; i++ {
			size, delay := p.Next(tc.prev)
			assert.GreaterOrEqual(t, size, 1)
			assert.LessOrEqual(t, size, 3)
			assert.GreaterOrEqual(t, delay, tc.lo)
			assert.Less(t, delay, tc.hi)
		}
	}
}
