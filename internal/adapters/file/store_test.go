package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/conductor/internal/adapters/file"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.HistoryStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunHistoryStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"../escape", "a/b", ".hidden", ""} {
		assert.Error(t, store.Append(ctx, id, domain.NewTurn(domain.RoleUser, "x")), id)
		_, err := store.Load(ctx, id)
		assert.Error(t, err, id)
	}
}

func TestFileStore_CorruptLine(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.jsonl"), []byte("{not json}\n"), 0o644))

	_, err := file.New(dir).Load(context.Background(), "broken")
	assert.ErrorContains(t, err, "line 1")
}

func TestFileStore_ListMissingDir(t *testing.T) {
	ids, err := file.New(filepath.Join(t.TempDir(), "nope")).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
