package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"toolhub/activity"
	"toolhub/completion"
	"toolhub/config"
	"toolhub/internal/chatstack"
	"toolhub/internal/logger"
	"toolhub/session"
	"toolhub/suggestion"
)

type cliOptions struct {
	systemPrompt string
	welcome      string
	noTyping     bool
	noSponsors   bool
	suggestions  bool

	completer suggestion.Completer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts cliOptions
	cmd := &cobra.Command{
		Use:   "chatcli",
		Short: "Chat with a tool assistant from the terminal",
		Long: `chatcli runs one chat session against the configured completion backend.
Type a message and press enter. /stop shows the whole reply, /reset starts over,
/click opens the last sponsor link and /quit exits.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config.InitApp()
			cfg := config.GetConfig()
			logger.InitFromEnv("LOG_LEVEL", "warn")

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.systemPrompt, "system", "You are a helpful assistant.", "system prompt of the assistant")
	cmd.Flags().StringVar(&opts.welcome, "welcome", "", "welcome message (defaults to chat.welcome_message)")
	cmd.Flags().BoolVar(&opts.noTyping, "no-typing", false, "show replies at once")
	cmd.Flags().BoolVar(&opts.noSponsors, "no-sponsors", false, "never show sponsor interstitials")
	cmd.Flags().BoolVar(&opts.suggestions, "suggestions", true, "offer follow-up suggestions")
	return cmd
}

func run(ctx context.Context, cfg config.AppConfig, opts cliOptions, in io.Reader, out io.Writer) error {
	stackOpts := chatstack.Options{
		Notifier:  activity.NewDispatcher(nil, activity.LogAnalytics{}, 0),
		Completer: opts.completer,
	}
	if !opts.noSponsors {
		stackOpts.Inventory = chatstack.StaticInventory(cfg.Sponsor)
	}
	deps, err := chatstack.Build(ctx, cfg, stackOpts)
	if err != nil {
		return err
	}

	welcome := opts.welcome
	if welcome == "" {
		welcome = cfg.Chat.WelcomeMessage
	}
	sess, err := session.New(ctx, session.Config{
		ToolID:               "cli",
		Prompt:               completion.Prompt{SystemPrompt: opts.systemPrompt, Model: cfg.LLM.ModelName},
		WelcomeMessage:       welcome,
		ContextLimit:         cfg.Chat.ContextLimit,
		MaxMessageChars:      cfg.Chat.MaxMessageChars,
		SuggestionsEnabled:   opts.suggestions,
		SuggestionCount:      cfg.Suggestions.Count,
		InterstitialDuration: cfg.Sponsor.Countdown,
		CompletionTimeout:    cfg.LLM.Timeout,
		MaxRetries:           cfg.LLM.MaxRetries,
		TypingDisabled:       opts.noTyping || cfg.Typing.Disabled,
	}, deps)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	snapshots, err := sess.Watch(ctx)
	if err != nil {
		return err
	}
	r := newRenderer(out)
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		for snap := range snapshots {
			r.Render(snap)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, sess, r, line); quit {
				_ = sess.Close()
				<-rendered
				return nil
			}
		}
	}
}

// handleLine runs one input line and reports whether the user asked to quit.
func handleLine(ctx context.Context, sess *session.Session, r *renderer, line string) bool {
	var err error
	switch cmd := strings.TrimSpace(line); cmd {
	case "":
		return false
	case "/quit", "/exit":
		return true
	case "/stop":
		err = sess.Stop()
	case "/reset":
		err = sess.Reset()
	case "/click":
		sponsorID := r.LastSponsor()
		if sponsorID == "" {
			r.Note(dimStyle.Render("no sponsor shown yet"))
			return false
		}
		var link string
		link, err = sess.ClickSponsor(ctx, sponsorID)
		if err == nil {
			r.Note(dimStyle.Render("open " + link))
		}
	default:
		err = sess.Submit(ctx, line)
	}
	if err != nil {
		r.Note(noticeStyle.Render(describe(err)))
	}
	return false
}

func describe(err error) string {
	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		return "type a message first"
	case errors.Is(err, session.ErrMessageTooLong):
		return "that message is too long"
	case errors.Is(err, session.ErrTurnInProgress):
		return "wait for the reply, or /stop it"
	case errors.Is(err, session.ErrSponsorNotResolved):
		return "the sponsor countdown has not finished yet"
	default:
		return err.Error()
	}
}
