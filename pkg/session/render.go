package session

import (
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Order selects how rendered turns are arranged.
type Order int

const (
	Chronological Order = iota
	MostRecentFirst
)

// RenderOptions bounds the rendered view of a session.
// Zero limits are unbounded. When several limits are set the tightest wins.
type RenderOptions struct {
	MaxTurns  int
	MaxChars  int
	MaxTokens int
	Order     Order

	// CountTokens overrides the tokenizer used for MaxTokens.
	CountTokens func(string) int
}

var (
	tokenEncoder *tiktoken.Tiktoken
	encoderOnce  sync.Once
	encoderErr   error
)

// CountTokens counts tokens with the cl100k_base encoding, falling back to an estimate.
func CountTokens(text string) int {
	encoderOnce.Do(func() {
		tokenEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	if encoderErr != nil {
		return estimateTokens(text)
	}
	return len(tokenEncoder.Encode(text, nil, nil))
}

func estimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// Render returns the conversation as "Role: content" lines.
// Limits keep the most recent turns; nothing is removed from the session.
func (s *Session) Render(opts RenderOptions) string {
	turns := s.Turns()

	if opts.MaxTurns > 0 && len(turns) > opts.MaxTurns {
		turns = turns[len(turns)-opts.MaxTurns:]
	}

	count := opts.CountTokens
	if count == nil {
		count = CountTokens
	}

	// Walk backwards so budgets favor recent turns.
	lines := make([]string, 0, len(turns))
	chars, tokens := 0, 0
	for i := len(turns) - 1; i >= 0; i-- {
		line := turns[i].Role.Label() + ": " + turns[i].Content

		extra := utf8.RuneCountInString(line)
		if len(lines) > 0 {
			extra++ // newline separator
		}
		if opts.MaxChars > 0 && chars+extra > opts.MaxChars {
			break
		}
		var lineTokens int
		if opts.MaxTokens > 0 {
			lineTokens = count(line)
			if tokens+lineTokens > opts.MaxTokens {
				break
			}
		}

		chars += extra
		tokens += lineTokens
		lines = append(lines, line)
	}

	if opts.Order == Chronological {
		slices.Reverse(lines)
	}
	return strings.Join(lines, "\n")
}
