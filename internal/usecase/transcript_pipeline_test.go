package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyprrec/internal/domain"
	"hyprrec/internal/ports"
)

func TestStreamTranscriberReplaysRecording(t *testing.T) {
	t.Parallel()

	artifact := writeArtifact(t, "recording_1.wav", 3000)
	stream := newScriptedStream(
		domain.TranscriptEvent{Kind: domain.TranscriptKindPartial, Text: "hel"},
		domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, Text: "hello there"},
		domain.TranscriptEvent{Kind: domain.TranscriptKindPartial, Text: "bye"},
	)
	provider := &fakeProvider{stream: stream}
	transcriber := NewStreamTranscriber(provider, ports.StreamingConfig{Channels: 1}, 1024, 0)

	raw, err := transcriber.Transcribe(context.Background(), artifact)

	require.NoError(t, err)
	assert.Equal(t, "hello there bye", raw)
	assert.Equal(t, 3, stream.chunkCount())
	assert.Equal(t, 1, provider.starts)
}

func TestStreamTranscriberReportsSilence(t *testing.T) {
	t.Parallel()

	artifact := writeArtifact(t, "recording_1.wav", 10)
	transcriber := NewStreamTranscriber(&fakeProvider{stream: newScriptedStream()}, ports.StreamingConfig{}, 0, 0)

	_, err := transcriber.Transcribe(context.Background(), artifact)
	assert.ErrorIs(t, err, ErrNoSpeech)
}

func TestStreamTranscriberStartFailure(t *testing.T) {
	t.Parallel()

	artifact := writeArtifact(t, "recording_1.wav", 10)
	transcriber := NewStreamTranscriber(&fakeProvider{err: errors.New("401")}, ports.StreamingConfig{}, 0, 0)

	_, err := transcriber.Transcribe(context.Background(), artifact)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestTranscriptPipelineProcess(t *testing.T) {
	t.Parallel()

	artifact := writeArtifact(t, "recording_1.mp4", 10)
	events := &fakeEventSink{}
	clipboard := &fakeClipboard{}
	pipeline := NewTranscriptPipeline(
		&fakeTranscriber{text: "ship it"},
		&fakeRules{transform: "Ship it."},
		clipboard,
		events,
		TranscriptPipelineConfig{},
	)

	result, err := pipeline.Process(context.Background(), artifact)

	require.NoError(t, err)
	assert.Equal(t, "ship it", result.RawTranscript)
	assert.Equal(t, "Ship it.", result.FinalTranscript)
	assert.True(t, result.Copied)
	assert.Equal(t, filepath.Join(filepath.Dir(artifact), "recording_1.txt"), result.Path)
	assert.FileExists(t, result.Path)
	assert.Empty(t, events.snapshotErrors())
}

func TestTranscriptPipelineTranscriberFailure(t *testing.T) {
	t.Parallel()

	artifact := writeArtifact(t, "recording_1.wav", 10)
	events := &fakeEventSink{}
	pipeline := NewTranscriptPipeline(&fakeTranscriber{err: errors.New("model missing")}, nil, nil, events, TranscriptPipelineConfig{})

	_, err := pipeline.Process(context.Background(), artifact)

	require.Error(t, err)
	assert.Equal(t, []domain.ErrorCode{domain.ErrorCodeTranscription}, events.snapshotErrorCodes())
	assert.NoFileExists(t, transcriptPath(artifact))
}

func writeArtifact(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

type fakeProvider struct {
	stream *scriptedStream
	err    error
	starts int
}

func (f *fakeProvider) StartStreaming(context.Context, ports.StreamingConfig) (ports.StreamingSession, error) {
	f.starts++
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, string) (string, error) {
	return f.text, f.err
}
