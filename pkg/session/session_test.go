package session_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conversation() *session.Session {
	s := session.New("chat")
	s.Add(domain.RoleUser, "hi")
	s.Add(domain.RoleAssistant, "hello")
	s.Add(domain.RoleUser, "what is 2+2?")
	s.Add(domain.RoleAssistant, "4")
	return s
}

func TestSession_AppendAndTurns(t *testing.T) {
	s := conversation()
	require.Equal(t, 4, s.Len())

	turns := s.Turns()
	turns[0].Content = "mutated"
	assert.Equal(t, "hi", s.Turns()[0].Content, "Turns must return a copy")

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "4", last.Content)
	assert.False(t, last.CreatedAt.IsZero())
}

func TestSession_GeneratedID(t *testing.T) {
	a, b := session.New(""), session.New("")
	assert.Len(t, a.ID(), 26)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Less(t, a.ID(), b.ID(), "ULIDs are monotonic")
}

func TestSession_Render(t *testing.T) {
	tests := []struct {
		name string
		opts session.RenderOptions
		want string
	}{
		{
			name: "unbounded chronological",
			want: "User: hi\nAssistant: hello\nUser: what is 2+2?\nAssistant: 4",
		},
		{
			name: "max turns keeps most recent",
			opts: session.RenderOptions{MaxTurns: 2},
			want: "User: what is 2+2?\nAssistant: 4",
		},
		{
			name: "most recent first",
			opts: session.RenderOptions{MaxTurns: 2, Order: session.MostRecentFirst},
			want: "Assistant: 4\nUser: what is 2+2?",
		},
		{
			name: "max chars drops older turns whole",
			opts: session.RenderOptions{MaxChars: len("User: what is 2+2?\nAssistant: 4")},
			want: "User: what is 2+2?\nAssistant: 4",
		},
		{
			name: "max chars smaller than last turn",
			opts: session.RenderOptions{MaxChars: 3},
			want: "",
		},
		{
			name: "max tokens with custom counter",
			opts: session.RenderOptions{
				MaxTokens:   6,
				CountTokens: func(s string) int { return len(strings.Fields(s)) },
			},
			want: "User: what is 2+2?\nAssistant: 4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := conversation()
			assert.Equal(t, tt.want, s.Render(tt.opts))
			assert.Equal(t, 4, s.Len(), "rendering must not trim history")
		})
	}
}

func TestSession_RenderEmpty(t *testing.T) {
	assert.Empty(t, session.New("x").Render(session.RenderOptions{MaxTurns: 3}))
}

func TestSession_ConcurrentAppend(t *testing.T) {
	s := session.New("c")
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(domain.RoleUser, "x")
			_ = s.Render(session.RenderOptions{MaxTurns: 5, CountTokens: func(string) int { return 1 }})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
