package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRunID = "run-1"

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndListByRun(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, testRunID, "src/a.js", "TestEvent", []byte(`{"test":"data"}`), map[string]string{"key": "value"}))
	require.NoError(t, store.Append(ctx, "run-2", "src/b.js", "TestEvent", nil, nil))

	events, err := store.ListByRun(ctx, testRunID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, testRunID, e.RunID())
	assert.Equal(t, "src/a.js", e.Module())
	assert.Equal(t, "TestEvent", e.Type())
	assert.JSONEq(t, `{"test":"data"}`, string(e.Payload()))
	assert.Equal(t, "value", e.Metadata()["key"])
	assert.Positive(t, e.ID())
	assert.WithinDuration(t, time.Now(), e.Timestamp(), time.Minute)

	events, err = store.ListByRun(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "{}", string(events[0].Payload()))
	assert.Nil(t, events[0].Metadata())
}

func TestListByModuleAndRange(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	for _, run := range []string{"r1", "r2", "r3"} {
		require.NoError(t, store.Append(ctx, run, "img/logo.png", TypeRunStarted, nil, nil))
	}
	require.NoError(t, store.Append(ctx, "r4", "other.css", TypeRunStarted, nil, nil))

	events, err := store.ListByModule(ctx, "img/logo.png")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "r1", events[0].RunID())
	assert.Equal(t, "r3", events[2].RunID())

	all, err := store.GetRange(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := store.GetRange(ctx, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPersistentStoreReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), testRunID, "a.js", TypeRunStarted, nil, nil))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	events, err := reopened.ListByRun(context.Background(), testRunID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestAppendAfterCloseFails(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())
	err = store.Append(context.Background(), testRunID, "a.js", TypeRunStarted, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEventAppendFailed))
}

func TestTypedEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	started, err := NewRunStarted(testRunID, "img/a.png", []string{"file"})
	require.NoError(t, err)
	emitted, err := NewFileEmitted(testRunID, "img/a.png", FileEmittedPayload{Hash: "abc", Path: "images/abc.png", Size: 3})
	require.NoError(t, err)
	done, err := NewRunCompleted(testRunID, "img/a.png", RunCompletedPayload{Bytes: 30, Emissions: 1, DurationMS: 2})
	require.NoError(t, err)
	for _, e := range []Event{started, emitted, done} {
		require.NoError(t, AppendEvent(ctx, store, e))
	}

	events, err := store.ListByRun(ctx, testRunID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []string{TypeRunStarted, TypeFileEmitted, TypeRunCompleted},
		[]string{events[0].Type(), events[1].Type(), events[2].Type()})

	var payload FileEmittedPayload
	require.NoError(t, json.Unmarshal(events[1].Payload(), &payload))
	assert.Equal(t, "images/abc.png", payload.Path)
}
