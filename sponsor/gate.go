// Package sponsor decides when a sponsored interstitial is shown in front of a
// chat turn and runs the interstitial's countdown.
package sponsor

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"toolhub/internal/logger"
)

const (
	DefaultProbability = 0.7
	DefaultCountdown   = 10 * time.Second

	defaultCheckTimeout = 3 * time.Second
)

// Record is a sponsored item.
type Record struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	LinkURL     string    `json:"link_url"`
	ImageURL    string    `json:"image_url,omitempty"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	IsActive    bool      `json:"is_active"`
}

// ActiveAt reports whether the record's window covers now.
func (r Record) ActiveAt(now time.Time) bool {
	return r.IsActive && !now.Before(r.StartDate) && !now.After(r.EndDate)
}

type Availability struct {
	Available bool
	Ad        *Record
}

// Inventory answers whether a sponsored item is active at a point in time.
type Inventory interface {
	CheckActive(ctx context.Context, now time.Time) (Availability, error)
}

// Decision is the outcome of evaluating the gate for one submission.
type Decision struct {
	Show bool
	Ad   *Record
}

type Gate struct {
	inventory    Inventory
	clock        clock.Clock
	probability  float64
	checkTimeout time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Gate)

func WithClock(c clock.Clock) Option { return func(g *Gate) { g.clock = c } }

func WithRand(r *rand.Rand) Option { return func(g *Gate) { g.rng = r } }

func WithProbability(p float64) Option { return func(g *Gate) { g.probability = p } }

func WithCheckTimeout(d time.Duration) Option { return func(g *Gate) { g.checkTimeout = d } }

// NewGate returns a Gate over inventory. A nil inventory never gates.
func NewGate(inventory Inventory, opts ...Option) *Gate {
	g := &Gate{
		inventory:    inventory,
		clock:        clock.New(),
		probability:  DefaultProbability,
		checkTimeout: defaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return g
}

// ShouldGate fires only when an ad is available, at least one prior turn
// happened and the draw succeeds.
func (g *Gate) ShouldGate(turnIndex int, adAvailable bool) bool {
	if !adAvailable || turnIndex < 1 {
		return false
	}
	return g.draw() < g.probability
}

func (g *Gate) draw() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

// Evaluate checks the inventory and draws for one submission. Inventory errors
// are logged and treated as "no ad available".
func (g *Gate) Evaluate(ctx context.Context, turnIndex int) Decision {
	if g.inventory == nil || turnIndex < 1 {
		return Decision{}
	}

	cctx, cancel := context.WithTimeout(ctx, g.checkTimeout)
	defer cancel()

	avail, err := g.inventory.CheckActive(cctx, g.clock.Now())
	if err != nil {
		logger.WarnWithFields("sponsor availability check failed", logger.Fields{
			"turn_index": turnIndex,
			"error":      err.Error(),
		})
		return Decision{}
	}
	if !g.ShouldGate(turnIndex, avail.Available && avail.Ad != nil) {
		return Decision{}
	}
	return Decision{Show: true, Ad: avail.Ad}
}
