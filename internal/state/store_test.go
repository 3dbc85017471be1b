package state

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/modelgraph/internal/testutil"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func setupTestStore(t *testing.T) (*Store, *clock) {
	t.Helper()
	store := NewStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(context.Background(), ":memory:"))
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.now = c.now
	return store, c
}

func TestStore_OpenMigrate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	store := NewStore(nil)
	require.NoError(t, store.Open(ctx, path))
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))

	v, err := store.MigrationVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.Equal(t, path, store.Path())

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestStore_NotOpen(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)

	assert.ErrorIs(t, store.Migrate(ctx), ErrNotOpen)
	_, err := store.RecordRun(ctx, RunStats{})
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = store.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, store.Put(ctx, "k", "h", 1, 0), ErrNotOpen)
	_, err = store.Get(ctx, "k", "h", new(int))
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = store.Purge(ctx)
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestStore_Runs(t *testing.T) {
	ctx := context.Background()
	store, c := setupTestStore(t)

	latest, err := store.LatestRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	first, err := store.RecordRun(ctx, RunStats{ContentHash: "aa", Models: 3, Edges: 2})
	require.NoError(t, err)
	c.t = c.t.Add(time.Minute)
	second, err := store.RecordRun(ctx, RunStats{ContentHash: "bb", Models: 4, Edges: 5, Cycles: 1, Warnings: 2})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	latest, err = store.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, latest)

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, first.StartedAt, runs[1].StartedAt)
}

func TestStore_Cache(t *testing.T) {
	ctx := context.Background()
	store, c := setupTestStore(t)

	type payload struct {
		Order []string `json:"order"`
	}
	require.NoError(t, store.Put(ctx, "order", "h1", payload{Order: []string{"a", "b"}}, time.Hour))

	var got payload
	ok, err := store.Get(ctx, "order", "h1", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got.Order)

	ok, err = store.Get(ctx, "order", "h2", &got)
	require.NoError(t, err)
	assert.False(t, ok, "hash mismatch is a miss")

	ok, err = store.Get(ctx, "missing", "h1", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "order", "h2", payload{Order: []string{"c"}}, time.Hour))
	ok, err = store.Get(ctx, "order", "h2", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"c"}, got.Order)

	c.t = c.t.Add(2 * time.Hour)
	ok, err = store.Get(ctx, "order", "h2", &got)
	require.NoError(t, err)
	assert.False(t, ok, "expired entry is a miss")

	require.NoError(t, store.Put(ctx, "fresh", "h", 1, 0))
	n, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var v int
	ok, err = store.Get(ctx, "fresh", "h", &v)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	require.NoError(t, store.Clear(ctx))
	ok, err = store.Get(ctx, "fresh", "h", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PutUnencodable(t *testing.T) {
	store, _ := setupTestStore(t)
	err := store.Put(context.Background(), "bad", "h", make(chan int), time.Hour)
	assert.ErrorContains(t, err, "failed to encode cache entry bad")
}

func TestStore_DatabaseErrors(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		call      func(s *Store) error
		errMsg    string
	}{
		{
			name: "record run",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO runs").WillReturnError(assert.AnError)
			},
			call: func(s *Store) error {
				_, err := s.RecordRun(context.Background(), RunStats{})
				return err
			},
			errMsg: "failed to record run",
		},
		{
			name: "latest run",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(selectRun)).WillReturnError(assert.AnError)
			},
			call: func(s *Store) error {
				_, err := s.LatestRun(context.Background())
				return err
			},
			errMsg: "failed to get latest run",
		},
		{
			name: "list runs",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(selectRun)).WillReturnError(assert.AnError)
			},
			call: func(s *Store) error {
				_, err := s.ListRuns(context.Background(), 5)
				return err
			},
			errMsg: "failed to list runs",
		},
		{
			name: "put",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO cache").WillReturnError(assert.AnError)
			},
			call: func(s *Store) error {
				return s.Put(context.Background(), "k", "h", 1, time.Minute)
			},
			errMsg: "failed to store cache entry k",
		},
		{
			name: "get",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT content_hash, payload, expires_at FROM cache").WillReturnError(assert.AnError)
			},
			call: func(s *Store) error {
				_, err := s.Get(context.Background(), "k", "h", new(int))
				return err
			},
			errMsg: "failed to read cache entry k",
		},
		{
			name: "get corrupt payload",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"content_hash", "payload", "expires_at"}).
					AddRow("h", "{not json", time.Now().Add(time.Hour).UnixNano())
				mock.ExpectQuery("SELECT content_hash").WillReturnRows(rows)
			},
			call: func(s *Store) error {
				_, err := s.Get(context.Background(), "k", "h", new(int))
				return err
			},
			errMsg: "failed to decode cache entry k",
		},
		{
			name: "purge",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM cache").WillReturnError(assert.AnError)
			},
			call: func(s *Store) error {
				_, err := s.Purge(context.Background())
				return err
			},
			errMsg: "failed to purge cache",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			tt.setupMock(mock)

			err = tt.call(NewStoreWithDB(db, nil))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash(map[string]string{"x.sql": "select 1", "y.sql": "select 2"})
	b := ContentHash(map[string]string{"y.sql": "select 2", "x.sql": "select 1"})
	c := ContentHash(map[string]string{"x.sql": "select 1", "y.sql": "select 3"})
	d := ContentHash(map[string]string{"x.sqlselect 1": "", "y.sql": "select 2"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Len(t, a, 16)
}
