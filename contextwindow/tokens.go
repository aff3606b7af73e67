package contextwindow

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenCounter estimates payload size with the cl100k_base encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

func NewTiktokenCounter() (*TiktokenCounter, error) {
	tkm, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load cl100k_base encoding: %w", err)
	}
	return &TiktokenCounter{encoding: tkm}, nil
}

func (c *TiktokenCounter) CountText(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// CountTurns adds a fixed per-message overhead for role and separators.
func (c *TiktokenCounter) CountTurns(turns []Turn) int {
	tokens := 0
	for _, t := range turns {
		tokens += 4
		tokens += c.CountText(t.Text)
		tokens += c.CountText(t.Role)
	}
	return tokens + 3
}
