package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:metatest?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE metadata (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);
`)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM metadata`)
	require.NoError(t, err)
	return db
}

func TestSQLiteRepository_GetMissingKey(t *testing.T) {
	repo := NewSQLiteRepository(setupDB(t))

	_, err := repo.Get(context.Background(), KeySessionToken)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteRepository_SetAllThenGet(t *testing.T) {
	repo := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	err := repo.SetAll(ctx, map[string][]byte{
		KeySessionUser:  []byte(`{"id":"u1"}`),
		KeySessionToken: []byte("tok"),
	})
	require.NoError(t, err)

	user, err := repo.Get(ctx, KeySessionUser)
	require.NoError(t, err)
	require.Equal(t, []byte(`{"id":"u1"}`), user)

	token, err := repo.Get(ctx, KeySessionToken)
	require.NoError(t, err)
	require.Equal(t, []byte("tok"), token)
}

func TestSQLiteRepository_SetAllOverwrites(t *testing.T) {
	repo := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SetAll(ctx, map[string][]byte{KeySessionToken: []byte("old")}))
	require.NoError(t, repo.SetAll(ctx, map[string][]byte{KeySessionToken: []byte("new")}))

	token, err := repo.Get(ctx, KeySessionToken)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), token)
}

func TestSQLiteRepository_Clear(t *testing.T) {
	repo := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SetAll(ctx, map[string][]byte{
		KeySessionUser:  []byte("u"),
		KeySessionToken: []byte("t"),
	}))
	require.NoError(t, repo.Clear(ctx))

	_, err := repo.Get(ctx, KeySessionUser)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Get(ctx, KeySessionToken)
	require.ErrorIs(t, err, ErrNotFound)
}
