package apiclient

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	store := NewFileStore(path)
	ctx := context.Background()

	tok, err := store.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, store.Save("tok-1", Profile{ID: 3, Username: "carol", Role: "engineer"}))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err = store.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	user, err := store.User()
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "carol", user.Username)

	cleared, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.True(t, cleared)

	cleared, err = store.Clear(ctx)
	require.NoError(t, err)
	assert.False(t, cleared)
}
