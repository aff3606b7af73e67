// Package chatstack assembles the collaborators shared by every chat session
// of a process from the application config.
package chatstack

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"

	"toolhub/completion"
	"toolhub/config"
	"toolhub/contextwindow"
	"toolhub/internal/logger"
	"toolhub/session"
	"toolhub/sponsor"
	"toolhub/suggestion"
	"toolhub/typing"
)

type Options struct {
	// Inventory answers sponsor availability. Nil never gates.
	Inventory sponsor.Inventory
	Notifier  session.Notifier
	Clock     clock.Clock
	// Completer overrides the configured backend.
	Completer suggestion.Completer
}

// Build returns session deps for cfg. The completion backend is shared by
// replies and suggestions.
func Build(ctx context.Context, cfg config.AppConfig, opts Options) (session.Deps, error) {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	completer := opts.Completer
	if completer == nil {
		client, _, err := completion.NewClientFromConfig(ctx, cfg.LLM)
		if err != nil {
			return session.Deps{}, fmt.Errorf("build completion client: %w", err)
		}
		completer = client
	}

	var counter contextwindow.TokenCounter
	if cfg.Chat.CountTokens {
		tc, err := contextwindow.NewTiktokenCounter()
		if err != nil {
			logger.WarnWithFields("token counting disabled", logger.Fields{"error": err.Error()})
		} else {
			counter = tc
		}
	}

	suggester := suggestion.NewEngine(
		suggestion.NewCompletionService(completer),
		cfg.Suggestions.Timeout,
		cfg.Suggestions.Fallback,
	)
	deps := session.Deps{
		Completer:    completer,
		TokenCounter: counter,
		Pacer:        typing.NewRandomPacer(nil),
		Suggester:    suggester,
		Notifier:     opts.Notifier,
		Clock:        opts.Clock,
	}
	if opts.Inventory != nil {
		deps.Gate = sponsor.NewGate(opts.Inventory,
			sponsor.WithClock(opts.Clock),
			sponsor.WithProbability(cfg.Sponsor.Probability),
		)
	}
	return deps, nil
}

// StaticInventory serves the sponsors listed in the config file, or nil when
// none are listed.
func StaticInventory(cfg config.SponsorConfig) sponsor.Inventory {
	if len(cfg.Static) == 0 {
		return nil
	}
	records := make([]sponsor.Record, 0, len(cfg.Static))
	for _, s := range cfg.Static {
		records = append(records, sponsor.Record{
			ID:          s.ID,
			Title:       s.Title,
			Description: s.Description,
			LinkURL:     s.LinkURL,
			ImageURL:    s.ImageURL,
			StartDate:   s.StartDate,
			EndDate:     s.EndDate,
			IsActive:    s.IsActive,
		})
	}
	return sponsor.NewStaticInventory(records...)
}
