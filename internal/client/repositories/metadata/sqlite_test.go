package metadata

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE metadata (
  key        TEXT PRIMARY KEY,
  value      BLOB NOT NULL,
  updated_at INTEGER NOT NULL DEFAULT 0
);`)
	require.NoError(t, err)
	return db
}

func newRepo(db *sql.DB, at time.Time) *SQLiteRepository {
	r := NewSQLiteRepository(db)
	r.now = func() time.Time { return at }
	return r
}

func TestPutAndGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, "credential", []byte(`{"token":"t"}`)))

	v, ok, err := r.Get(ctx, "credential")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`{"token":"t"}`), v)
}

func TestGet_Absent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	v, ok, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, v)
}

func TestPut_NilValueStoredAsEmpty(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, "k", nil))

	v, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, v)
}

func TestPut_UpsertRefreshesTimestamp(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	t0 := time.UnixMilli(1_700_000_000_000)
	t1 := t0.Add(time.Hour)

	require.NoError(t, newRepo(db, t0).Put(ctx, "k", []byte("old")))
	require.NoError(t, newRepo(db, t1).Put(ctx, "k", []byte("new")))

	entries, err := NewSQLiteRepository(db).Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte("new"), entries[0].Value)
	assert.True(t, entries[0].UpdatedAt.Equal(t1))
}

func TestEntries_OrderedByKey(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, "identity", []byte{0xBB}))
	require.NoError(t, r.Put(ctx, "credential", []byte{0xAA}))

	entries, err := r.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "credential", entries[0].Key)
	assert.Equal(t, "identity", entries[1].Key)
}

func TestDelete_ManyKeysAndIdempotent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, "a", []byte{1}))
	require.NoError(t, r.Put(ctx, "b", []byte{2}))
	require.NoError(t, r.Put(ctx, "c", []byte{3}))

	require.NoError(t, r.Delete(ctx, "a", "b"))
	require.NoError(t, r.Delete(ctx, "a"))
	require.NoError(t, r.Delete(ctx))

	entries, err := r.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c", entries[0].Key)
}

func TestErrorsAreWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Close())

	_, _, err := r.Get(ctx, "k")
	require.ErrorContains(t, err, "get metadata[k]")

	err = r.Put(ctx, "k", []byte("v"))
	require.ErrorContains(t, err, "put metadata[k]")

	err = r.Delete(ctx, "k")
	require.ErrorContains(t, err, "delete metadata[k]")

	_, err = r.Entries(ctx)
	require.ErrorContains(t, err, "list metadata")
}
