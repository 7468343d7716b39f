package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTripAndList(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	base := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	require.NoError(t, store.Save(Record{ID: "b", StartedAt: base.Add(time.Minute)}))
	require.NoError(t, store.Save(Record{ID: "a", StartedAt: base, Keys: []string{",Return"}}))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "junk.json"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("x"), 0o644))

	loaded, err := store.Load("a")
	require.NoError(t, err)
	assert.Equal(t, []string{",Return"}, loaded.Keys)

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "b", records[1].ID)

	require.NoError(t, store.Delete("a"))
	require.NoError(t, store.Delete("a"))
	_, err = store.Load("a")
	assert.Error(t, err)
}

func TestStoreRejectsEmptyID(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, store.Save(Record{}))
}

func TestJournalLifecycle(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC))
	journal := NewJournal(store, clock)

	journal.Bound("/run/ignored.signal", []string{",Return"})
	records, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, records)

	journal.Begin("20240102-150405", "/tmp/rec.wav", clock.Now())
	journal.Bound("/run/hyprrec-x.signal", []string{",Return", ",Escape"})

	record, err := store.Load("20240102-150405")
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), record.PID)
	assert.Equal(t, "/tmp/rec.wav", record.OutputPath)
	assert.Equal(t, "/run/hyprrec-x.signal", record.SignalFile)
	assert.Equal(t, []string{",Return", ",Escape"}, record.Keys)

	journal.Released()
	record, err = store.Load("20240102-150405")
	require.NoError(t, err)
	assert.Empty(t, record.SignalFile)
	assert.Empty(t, record.Keys)

	journal.End()
	records, err = store.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

type fakeUnbinder struct {
	err   error
	calls [][]string
}

func (f *fakeUnbinder) Unbind(_ context.Context, keys ...string) error {
	f.calls = append(f.calls, keys)
	return f.err
}

func TestSweepCleansDeadSessions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "state"))
	require.NoError(t, err)

	signal := filepath.Join(dir, "hyprrec-1.signal")
	artifact := filepath.Join(dir, "rec.wav")
	require.NoError(t, os.WriteFile(signal, nil, 0o600))
	require.NoError(t, os.WriteFile(artifact, []byte("partial"), 0o644))
	require.NoError(t, store.Save(Record{ID: "dead", PID: 0, SignalFile: signal, OutputPath: artifact, Keys: []string{",Return", ",Escape"}}))
	require.NoError(t, store.Save(Record{ID: "alive", PID: os.Getpid(), OutputPath: artifact}))

	unbinder := &fakeUnbinder{}
	reports, err := Sweep(context.Background(), store, unbinder, SweepOptions{})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	byID := map[string]SweepReport{}
	for _, report := range reports {
		byID[report.Record.ID] = report
	}
	assert.True(t, byID["alive"].Skipped)

	dead := byID["dead"]
	require.NoError(t, dead.Err)
	assert.True(t, dead.Unbound)
	assert.True(t, dead.RemovedSignal)
	assert.True(t, dead.RemovedArtifact)
	assert.Equal(t, [][]string{{",Return", ",Escape"}}, unbinder.calls)

	_, err = store.Load("dead")
	assert.Error(t, err)
	_, err = store.Load("alive")
	assert.NoError(t, err)
}

func TestSweepKeepsRecordWhenUnbindFails(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save(Record{ID: "dead", Keys: []string{",Return"}}))

	reports, err := Sweep(context.Background(), store, &fakeUnbinder{err: errors.New("hyprland not running")}, SweepOptions{KeepArtifacts: true})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Error(t, reports[0].Err)

	_, err = store.Load("dead")
	assert.NoError(t, err)
}

func TestProcessAlive(t *testing.T) {
	t.Parallel()

	assert.True(t, processAlive(os.Getpid()))
	assert.False(t, processAlive(0))
	assert.False(t, processAlive(-1))
}
