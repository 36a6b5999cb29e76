package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/conductor/pkg/adapters/memory"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{`\d{3}-\d{2}-\d{4}`, `(?i)password:\s*\S+`})
	require.NoError(t, err)
	secure := mw(underlying)
	ctx := context.Background()

	turns := []domain.Turn{
		domain.NewTurn(domain.RoleUser, "my ssn is 999-99-9999 and Password: hunter2"),
		domain.NewTurn(domain.RoleAssistant, "noted"),
	}
	require.NoError(t, secure.Append(ctx, "pii", turns...))

	assert.Contains(t, turns[0].Content, "999-99-9999", "caller's turns must not be modified")

	stored, err := underlying.Load(ctx, "pii")
	require.NoError(t, err)
	assert.Equal(t, "my ssn is *** and ***", stored[0].Content)
	assert.Equal(t, "noted", stored[1].Content)
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_RedactsBeforeEncrypting(t *testing.T) {
	underlying := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{"secret"})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	store := middleware.Chain(underlying, pii, enc)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "s", domain.NewTurn(domain.RoleUser, "a secret")))

	loaded, err := store.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "a ***", loaded[0].Content)
}
