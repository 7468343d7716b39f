package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyprrec/internal/domain"
)

func TestTranscriptFinalizerRulesFailure(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	artifact := filepath.Join(t.TempDir(), "recording_1.wav")
	f := newTranscriptFinalizer(&fakeRules{err: errors.New("rules")}, &fakeClipboard{}, events)

	_, err := f.Finalize(context.Background(), artifact, "raw")
	require.Error(t, err)
	assert.Equal(t, []domain.ErrorCode{domain.ErrorCodeRules}, events.snapshotErrorCodes())
	assert.NoFileExists(t, transcriptPath(artifact))
}

func TestTranscriptFinalizerWritesTranscriptAndCopies(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	clipboard := &fakeClipboard{}
	artifact := filepath.Join(t.TempDir(), "recording_1.wav")
	f := newTranscriptFinalizer(&fakeRules{transform: "final text"}, clipboard, events)

	result, err := f.Finalize(context.Background(), artifact, "raw text")
	require.NoError(t, err)
	assert.True(t, result.Copied)
	assert.Equal(t, "final text", clipboard.last())
	assert.Equal(t, strings.TrimSuffix(artifact, ".wav")+".txt", result.Path)

	data, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	assert.Equal(t, "final text\n", string(data))
}

func TestTranscriptFinalizerClipboardFailure(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	clipboard := &fakeClipboard{err: errors.New("clipboard")}
	f := newTranscriptFinalizer(&fakeRules{transform: "final"}, clipboard, events)

	result, err := f.Finalize(context.Background(), filepath.Join(t.TempDir(), "a.mp4"), "raw")
	require.NoError(t, err)
	assert.False(t, result.Copied)
	assert.Equal(t, []domain.ErrorCode{domain.ErrorCodeClipboard}, events.snapshotErrorCodes())
}

func TestTranscriptFinalizerWithoutRulesOrClipboard(t *testing.T) {
	t.Parallel()

	f := newTranscriptFinalizer(nil, nil, &fakeEventSink{})
	result, err := f.Finalize(context.Background(), filepath.Join(t.TempDir(), "a.wav"), "as spoken")
	require.NoError(t, err)
	assert.Equal(t, "as spoken", result.FinalTranscript)
	assert.False(t, result.Copied)
}

type fakeRules struct {
	transform string
	err       error
}

func (f *fakeRules) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.transform != "" {
		return f.transform, nil
	}
	return text, nil
}

type fakeClipboard struct {
	err error

	mu   sync.Mutex
	text string
}

func (f *fakeClipboard) SetText(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
	return nil
}

func (f *fakeClipboard) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text
}
