package sponsor

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

var ErrNotResolved = errors.New("sponsor_not_resolved")

// Interstitial is the countdown attached to one sponsor message. Resolution is
// driven by time only and never reverts.
type Interstitial struct {
	ad        Record
	clock     clock.Clock
	startedAt time.Time
	duration  time.Duration

	resolved  atomic.Bool
	abandoned atomic.Bool

	mu    sync.Mutex
	timer *clock.Timer
}

// StartInterstitial starts the countdown. onResolve runs once on the clock's
// timer goroutine when the countdown elapses, unless Abandon was called first.
func StartInterstitial(c clock.Clock, d time.Duration, ad Record, onResolve func()) *Interstitial {
	if d <= 0 {
		d = DefaultCountdown
	}
	i := &Interstitial{ad: ad, clock: c, startedAt: c.Now(), duration: d}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.timer = c.AfterFunc(d, func() {
		if i.abandoned.Load() {
			return
		}
		i.resolved.Store(true)
		if onResolve != nil {
			onResolve()
		}
	})
	return i
}

func (i *Interstitial) Ad() Record { return i.ad }

func (i *Interstitial) Resolved() bool { return i.resolved.Load() }

// Remaining is the time left on the countdown; zero once resolved.
func (i *Interstitial) Remaining() time.Duration {
	if i.Resolved() {
		return 0
	}
	left := i.duration - i.clock.Since(i.startedAt)
	if left < 0 {
		return 0
	}
	return left
}

// ClickThrough returns the sponsor link once the countdown has elapsed.
func (i *Interstitial) ClickThrough() (string, error) {
	if !i.Resolved() {
		return "", ErrNotResolved
	}
	return i.ad.LinkURL, nil
}

// Abandon stops a pending countdown. An already resolved interstitial stays resolved.
func (i *Interstitial) Abandon() {
	i.abandoned.Store(true)
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.timer != nil {
		i.timer.Stop()
	}
}
