package ports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunHistoryStoreContract runs a suite of tests to verify that a HistoryStore implementation
// adheres to the defined interface contract.
func RunHistoryStoreContract(t *testing.T, store HistoryStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405.000000")

	t.Run("Append and Load", func(t *testing.T) {
		first := domain.NewTurn(domain.RoleUser, "what is 2+2?")
		second := domain.NewTurn(domain.RoleAssistant, "4")

		require.NoError(t, store.Append(ctx, sessionID, first))
		require.NoError(t, store.Append(ctx, sessionID, second))

		turns, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, domain.RoleUser, turns[0].Role)
		assert.Equal(t, "what is 2+2?", turns[0].Content)
		assert.Equal(t, "4", turns[1].Content)
		assert.WithinDuration(t, first.CreatedAt, turns[0].CreatedAt, time.Second)
	})

	t.Run("Append Many Keeps Order", func(t *testing.T) {
		id := sessionID + "-batch"
		var batch []domain.Turn
		for i := range 5 {
			batch = append(batch, domain.NewTurn(domain.RoleUser, fmt.Sprintf("msg-%d", i)))
		}
		require.NoError(t, store.Append(ctx, id, batch...))

		turns, err := store.Load(ctx, id)
		require.NoError(t, err)
		require.Len(t, turns, 5)
		for i, turn := range turns {
			assert.Equal(t, fmt.Sprintf("msg-%d", i), turn.Content)
		}
	})

	t.Run("Loaded Turns Are Copies", func(t *testing.T) {
		turns, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		require.NotEmpty(t, turns)
		turns[0].Content = "tampered"

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "what is 2+2?", again[0].Content)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Concurrent Appends", func(t *testing.T) {
		id := sessionID + "-concurrent"
		var wg sync.WaitGroup
		for i := range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.Append(ctx, id, domain.NewTurn(domain.RoleUser, fmt.Sprintf("c-%d", i))))
			}()
		}
		wg.Wait()

		turns, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Len(t, turns, 10)
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-list-1"
		id2 := sessionID + "-list-2"
		require.NoError(t, store.Append(ctx, id1, domain.NewTurn(domain.RoleUser, "a")))
		require.NoError(t, store.Append(ctx, id2, domain.NewTurn(domain.RoleUser, "b")))

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
