// Package typing reveals a completed reply progressively, a few characters at a
// time, with pauses after punctuation.
package typing

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Frame reports progress of an animation. Shown is the number of runes of the
// full text revealed so far; it never decreases.
type Frame struct {
	Shown int
	Total int
	Done  bool
}

// Pacer decides the size of the next chunk and the pause before it. prev is the
// last revealed rune, zero before the first chunk.
type Pacer interface {
	Next(prev rune) (size int, delay time.Duration)
}

type RandomPacer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomPacer(rng *rand.Rand) *RandomPacer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RandomPacer{rng: rng}
}

// Next picks 1-3 runes and a delay in [15,45) ms, [300,700) ms after . ! ?
// and [150,350) ms after , : ;
func (p *RandomPacer) Next(prev rune) (int, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	size := 1 + p.rng.IntN(3)
	var lo, hi int
	switch prev {
	case '.', '!', '?':
		lo, hi = 300, 700
	case ',', ':', ';':
		lo, hi = 150, 350
	default:
		lo, hi = 15, 45
	}
	return size, time.Duration(lo+p.rng.IntN(hi-lo)) * time.Millisecond
}

// Animator runs at most one Animation at a time.
type Animator struct {
	clock clock.Clock
	pacer Pacer

	mu      sync.Mutex
	current *Animation
}

func NewAnimator(c clock.Clock, pacer Pacer) *Animator {
	if c == nil {
		c = clock.New()
	}
	if pacer == nil {
		pacer = NewRandomPacer(nil)
	}
	return &Animator{clock: c, pacer: pacer}
}

// Animate starts revealing text, canceling any animation still running. emit is
// called from the animation goroutine for every chunk; the final frame has
// Done set. No frame is emitted after Cancel returns true.
func (a *Animator) Animate(text string, emit func(Frame)) *Animation {
	an := &Animation{
		runes:  []rune(text),
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}

	a.mu.Lock()
	prev := a.current
	a.current = an
	a.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}

	go an.run(a.clock, a.pacer, emit)
	return an
}

// Cancel stops the running animation, if any.
func (a *Animator) Cancel() bool {
	a.mu.Lock()
	cur := a.current
	a.current = nil
	a.mu.Unlock()
	if cur == nil {
		return false
	}
	return cur.Cancel()
}

type Animation struct {
	runes []rune

	mu       sync.Mutex
	finished bool
	canceled bool
	cancel   chan struct{}
	done     chan struct{}
}

func (an *Animation) run(c clock.Clock, pacer Pacer, emit func(Frame)) {
	defer close(an.done)

	total := len(an.runes)
	shown := 0
	var prev rune
	for shown < total {
		size, delay := pacer.Next(prev)
		if size < 1 {
			size = 1
		}
		if delay > 0 {
			t := c.Timer(delay)
			select {
			case <-an.cancel:
				t.Stop()
				return
			case <-t.C:
			}
		}

		shown += size
		if shown > total {
			shown = total
		}
		prev = an.runes[shown-1]
		if !an.emit(emit, Frame{Shown: shown, Total: total, Done: shown == total}) {
			return
		}
	}
	if total == 0 {
		an.emit(emit, Frame{Done: true})
	}
}

// emit delivers f unless the animation was canceled. The final frame marks the
// animation finished under the same lock so Cancel and completion cannot both win.
func (an *Animation) emit(emit func(Frame), f Frame) bool {
	an.mu.Lock()
	if an.canceled {
		an.mu.Unlock()
		return false
	}
	if f.Done {
		an.finished = true
	}
	an.mu.Unlock()
	emit(f)
	return true
}

// Cancel stops the animation. It returns false when the animation already
// delivered its final frame or was canceled before.
func (an *Animation) Cancel() bool {
	an.mu.Lock()
	defer an.mu.Unlock()
	if an.canceled || an.finished {
		return false
	}
	an.canceled = true
	close(an.cancel)
	return true
}

// Done is closed when the animation goroutine exits.
func (an *Animation) Done() <-chan struct{} { return an.done }

// Text returns the full text being revealed.
func (an *Animation) Text() string { return string(an.runes) }
