package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	require.NoError(t, s.verifyPragma("journal_mode", "wal"))
	require.NoError(t, s.verifyPragma("user_version", "2"))
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Put(ctx, "k", []byte(`"v"`)))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, found, err := s2.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `"v"`, string(got))
}

func TestOpenSession_IsIsolatedPerProcessInstance(t *testing.T) {
	ctx := context.Background()
	a, err := OpenSession()
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenSession()
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Put(ctx, "k", []byte("1")))

	_, found, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_PutGetDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, found, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Put(ctx, "a", []byte("1")))
	require.NoError(t, s.Put(ctx, "a", []byte("2")))

	got, found, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2", string(got))

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"), "deleting absent key is not an error")

	_, found, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_QuotaRejectsAndKeepsPrevious(t *testing.T) {
	s := createTestStore(t, WithQuota(8))
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", []byte("small")))
	err := s.Put(ctx, "a", []byte("much too large"))
	require.ErrorIs(t, err, ErrQuotaExceeded)

	got, _, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "small", string(got))
}

func TestStore_KeysByPrefix(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "cart:guest", []byte("[]")))
	require.NoError(t, s.Put(ctx, "cart:user-1", []byte("[]")))
	require.NoError(t, s.Put(ctx, "favorites:guest", []byte("[]")))

	keys, err := s.Keys(ctx, "cart:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cart:guest", "cart:user-1"}, keys)
}
