package session_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/aretw0/conductor/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string][]domain.Turn
	mu   sync.Mutex
}

func (s *SlowStore) Append(ctx context.Context, sessionID string, turns ...domain.Turn) error {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string][]domain.Turn)
	}
	s.data[sessionID] = append(s.data[sessionID], turns...)
	return nil
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()
	turns, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return slices.Clone(turns), nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestManager_OpenUnknownStartsEmpty(t *testing.T) {
	mgr := session.NewManager(&SlowStore{})

	s, err := mgr.Open(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", s.ID())
	assert.Zero(t, s.Len())

	ids, _ := mgr.List(context.Background())
	assert.Empty(t, ids, "opening must not persist anything")
}

func TestManager_CommitOnlyPending(t *testing.T) {
	store := &SlowStore{}
	mgr := session.NewManager(store)
	ctx := context.Background()

	s, err := mgr.Open(ctx, "chat")
	require.NoError(t, err)
	s.Add(domain.RoleUser, "one")
	require.NoError(t, mgr.Commit(ctx, s))
	require.NoError(t, mgr.Commit(ctx, s), "second commit is a no-op")

	s.Add(domain.RoleAssistant, "two")
	require.NoError(t, mgr.Commit(ctx, s))

	reloaded, err := mgr.Load(ctx, "chat")
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
}

func TestManager_UpdateSerializesWriters(t *testing.T) {
	store := &SlowStore{}
	mgr := session.NewManager(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Update(ctx, "race-test", func(_ context.Context, s *session.Session) error {
				s.Add(domain.RoleUser, "ping")
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := mgr.Load(ctx, "race-test")
	require.NoError(t, err)
	assert.Equal(t, 10, s.Len())
}

func TestManager_UpdateFailureCommitsNothing(t *testing.T) {
	mgr := session.NewManager(&SlowStore{})
	boom := errors.New("boom")

	_, err := mgr.Update(context.Background(), "s", func(_ context.Context, s *session.Session) error {
		s.Add(domain.RoleUser, "lost")
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = mgr.Load(context.Background(), "s")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

type countingLocker struct {
	mu       sync.Mutex
	locks    int
	unlocks  int
	failWith error
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if l.failWith != nil {
		return nil, l.failWith
	}
	l.mu.Lock()
	l.locks++
	l.mu.Unlock()
	return func(context.Context) error {
		l.mu.Lock()
		l.unlocks++
		l.mu.Unlock()
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &countingLocker{}
	mgr := session.NewManager(&SlowStore{}, session.WithLocker(locker), session.WithLockTTL(time.Second))

	s := session.New("dist")
	s.Add(domain.RoleUser, "hi")
	require.NoError(t, mgr.Commit(context.Background(), s))
	assert.Equal(t, 1, locker.locks)
	assert.Equal(t, 1, locker.unlocks)

	locker.failWith = errors.New("redis down")
	s.Add(domain.RoleUser, "again")
	assert.ErrorContains(t, mgr.Commit(context.Background(), s), "distributed lock")
}
