package session

import (
	"crypto/rand"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new lexicographically sortable session ID.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Session is an append-only conversation. It is safe for concurrent use.
type Session struct {
	id string

	mu        sync.RWMutex
	turns     []domain.Turn
	committed int
}

// New creates an empty session. An empty id gets a generated one.
func New(id string) *Session {
	if id == "" {
		id = NewID()
	}
	return &Session{id: id}
}

// FromTurns rebuilds a session from persisted turns.
// The turns are considered committed.
func FromTurns(id string, turns []domain.Turn) *Session {
	s := New(id)
	s.turns = slices.Clone(turns)
	s.committed = len(s.turns)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Append adds a turn to the end of the conversation.
func (s *Session) Append(turn domain.Turn) {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.mu.Unlock()
}

// Add is a shorthand for Append(domain.NewTurn(role, content)).
func (s *Session) Add(role domain.Role, content string) {
	s.Append(domain.NewTurn(role, content))
}

// Turns returns a copy of all turns, oldest first.
func (s *Session) Turns() []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.turns)
}

// Len returns the number of turns.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Last returns the most recent turn.
func (s *Session) Last() (domain.Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.turns) == 0 {
		return domain.Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

// pending returns the turns appended since the last commit.
func (s *Session) pending() ([]domain.Turn, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.turns[s.committed:]), len(s.turns)
}

func (s *Session) markCommitted(upTo int) {
	s.mu.Lock()
	if upTo > s.committed {
		s.committed = upTo
	}
	s.mu.Unlock()
}
