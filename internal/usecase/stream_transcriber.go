package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"hyprrec/internal/ports"
)

// ErrNoSpeech is returned when a provider produced no text for a recording.
var ErrNoSpeech = errors.New("no speech detected")

const defaultStreamWaitTimeout = 20 * time.Second

// StreamTranscriber transcribes a saved recording by replaying it through a
// streaming provider.
type StreamTranscriber struct {
	provider    ports.TranscriptionProvider
	cfg         ports.StreamingConfig
	chunkSize   int
	waitTimeout time.Duration
}

func NewStreamTranscriber(provider ports.TranscriptionProvider, cfg ports.StreamingConfig, chunkSize int, waitTimeout time.Duration) *StreamTranscriber {
	if waitTimeout <= 0 {
		waitTimeout = defaultStreamWaitTimeout
	}
	return &StreamTranscriber{provider: provider, cfg: cfg, chunkSize: chunkSize, waitTimeout: waitTimeout}
}

func (s *StreamTranscriber) Transcribe(ctx context.Context, artifactPath string) (string, error) {
	file, err := os.Open(artifactPath)
	if err != nil {
		return "", fmt.Errorf("open recording: %w", err)
	}
	defer file.Close()

	session, err := s.provider.StartStreaming(ctx, s.cfg)
	if err != nil {
		return "", fmt.Errorf("start transcription stream: %w", err)
	}
	defer session.Close()

	aggregator := newTranscriptAggregator()
	consumed := make(chan struct{})
	go consumeTranscriptEvents(session, aggregator, consumed)

	sent, pumpErr := pumpAudioChunks(ctx, file, session, s.chunkSize)
	if pumpErr != nil {
		_ = session.Close()
		<-consumed
		return "", pumpErr
	}
	log.Debugf("streamed %d bytes of %s", sent, artifactPath)

	if err := session.CloseSend(); err != nil {
		log.Warningf("closing transcription stream: %v", err)
	}
	waitErr := waitForStream(session, s.waitTimeout)
	<-consumed

	raw := aggregator.Raw()
	if raw == "" {
		if waitErr != nil {
			return "", waitErr
		}
		return "", ErrNoSpeech
	}
	if waitErr != nil {
		log.Warningf("transcription stream ended with error, keeping partial text: %v", waitErr)
	}
	return raw, nil
}
