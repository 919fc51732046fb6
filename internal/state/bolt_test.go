package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/inovacc/subbot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *BoltStore {
	t.Helper()

	db, err := NewBolt(filepath.Join(t.TempDir(), "state", "subbot.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestBoltStore_Marker(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	_, ok, err := db.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ts := time.Date(2024, 3, 5, 17, 4, 9, 0, time.UTC)
	require.NoError(t, db.Save(ctx, ts))

	got, ok, err := db.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, ts.Equal(got))
}

func TestBoltStore_Runs(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	base := time.Date(2024, 3, 5, 17, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		to := base.Add(time.Duration(i) * 15 * time.Minute)

		require.NoError(t, db.RecordRun(ctx, Run{
			ID:         id,
			From:       to.Add(-15 * time.Minute),
			To:         to,
			Objects:    i,
			Qualifying: i,
			FinishedAt: to,
		}))
	}

	runs, err := db.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID, "newest first")
	assert.Equal(t, "a", runs[2].ID)

	runs, err = db.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, []string{"c", "b"}, []string{runs[0].ID, runs[1].ID})
	assert.Equal(t, 2, runs[0].Objects)
}

func TestBoltStore_RecordRunRequiresID(t *testing.T) {
	db := setupTestDB(t)

	require.Error(t, db.RecordRun(context.Background(), Run{}))
}

func TestBoltStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "subbot.db")
	ts := time.Date(2024, 3, 5, 17, 4, 9, 0, time.UTC)

	db, err := NewBolt(path)
	require.NoError(t, err)
	require.NoError(t, db.Save(ctx, ts))
	require.NoError(t, db.Close())

	db, err = NewBolt(path)
	require.NoError(t, err)

	defer func() { _ = db.Close() }()

	got, ok, err := db.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, ts.Equal(got))
}

func TestOpen(t *testing.T) {
	cfg := config.Default()
	cfg.State.Path = filepath.Join(t.TempDir(), "lastrun")

	store, err := Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)
	_, isRecorder := store.(Recorder)
	assert.False(t, isRecorder)

	cfg.State.Backend = config.StateBolt
	cfg.State.Path = filepath.Join(t.TempDir(), "subbot.db")

	store, err = Open(cfg)
	require.NoError(t, err)

	defer func() { _ = store.Close() }()

	_, isRecorder = store.(Recorder)
	assert.True(t, isRecorder)

	cfg.State.Backend = "redis"
	_, err = Open(cfg)
	require.Error(t, err)
}
