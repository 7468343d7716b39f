package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hyprrec/internal/domain"
	"hyprrec/internal/ports"
)

const defaultTranscribeTimeout = 2 * time.Minute

// TranscriptPipelineConfig controls the post-save transcription step.
type TranscriptPipelineConfig struct {
	Timeout time.Duration
}

// TranscriptPipeline transcribes a saved recording, applies rules, writes
// the transcript beside the artifact and optionally copies it.
type TranscriptPipeline struct {
	transcriber ports.Transcriber
	finalizer   transcriptFinalizer
	events      ports.EventSink
	timeout     time.Duration
}

// NewTranscriptPipeline builds a pipeline. rules and clipboard may be nil.
func NewTranscriptPipeline(
	transcriber ports.Transcriber,
	rules ports.RulesEngine,
	clipboard ports.Clipboard,
	events ports.EventSink,
	cfg TranscriptPipelineConfig,
) *TranscriptPipeline {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTranscribeTimeout
	}
	return &TranscriptPipeline{
		transcriber: transcriber,
		finalizer:   newTranscriptFinalizer(rules, clipboard, events),
		events:      events,
		timeout:     cfg.Timeout,
	}
}

func (p *TranscriptPipeline) Process(ctx context.Context, artifactPath string) (domain.TranscriptResult, error) {
	if p.transcriber == nil {
		return domain.TranscriptResult{}, errors.New("no transcriber configured")
	}

	transcribeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	raw, err := p.transcriber.Transcribe(transcribeCtx, artifactPath)
	if err != nil {
		p.events.SessionError(domain.ErrorCodeTranscription, err.Error())
		return domain.TranscriptResult{}, fmt.Errorf("transcribe %s: %w", artifactPath, err)
	}
	log.Infof("transcribed %s in %s", artifactPath, time.Since(started).Round(time.Millisecond))

	return p.finalizer.Finalize(ctx, artifactPath, raw)
}
