package session

import (
	"time"

	"toolhub/completion"
	"toolhub/sponsor"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSponsor   Role = "sponsor"
)

// TurnState is the position of a session in its turn cycle.
type TurnState int

const (
	StateIdle TurnState = iota
	StateGating
	StateInterstitial
	StateComposing
	StateStreaming
	// StateErrored is never observed at rest; a failed turn lands in StateIdle.
	StateErrored
)

func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGating:
		return "gating"
	case StateInterstitial:
		return "interstitial"
	case StateComposing:
		return "composing"
	case StateStreaming:
		return "streaming"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

func (s TurnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Message is one entry of the transcript. While IsTyping is set, DisplayContent
// is a prefix of Content that only grows.
type Message struct {
	ID                string          `json:"id"`
	Seq               int64           `json:"seq"`
	Role              Role            `json:"role"`
	Content           string          `json:"content"`
	DisplayContent    string          `json:"display_content"`
	IsTyping          bool            `json:"is_typing"`
	IsSponsorResolved bool            `json:"is_sponsor_resolved,omitempty"`
	Failed            bool            `json:"failed,omitempty"`
	Welcome           bool            `json:"welcome,omitempty"`
	Sponsor           *sponsor.Record `json:"sponsor,omitempty"`
	ResolvesAt        *time.Time      `json:"resolves_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Snapshot is a consistent copy of the session's observable state.
type Snapshot struct {
	ID          string             `json:"id"`
	ToolID      string             `json:"tool_id"`
	Version     uint64             `json:"version"`
	State       TurnState          `json:"state"`
	Messages    []Message          `json:"messages"`
	Suggestions []string           `json:"suggestions"`
	Notice      *completion.Notice `json:"notice,omitempty"`
	TurnCount   int                `json:"turn_count"`
	Closed      bool               `json:"closed"`

	IsLoading   bool `json:"is_loading"`
	IsBotTyping bool `json:"is_bot_typing"`
	IsShowingAd bool `json:"is_showing_ad"`
	CanSend     bool `json:"can_send"`
}

// Last returns the newest message, if any.
func (s Snapshot) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
