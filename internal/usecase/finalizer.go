package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hyprrec/internal/domain"
	"hyprrec/internal/ports"
)

const transcriptSuffix = ".txt"

// transcriptFinalizer turns raw provider text into the transcript stored
// next to the recording.
type transcriptFinalizer struct {
	rules     ports.RulesEngine
	clipboard ports.Clipboard
	events    ports.EventSink
}

func newTranscriptFinalizer(rules ports.RulesEngine, clipboard ports.Clipboard, events ports.EventSink) transcriptFinalizer {
	return transcriptFinalizer{rules: rules, clipboard: clipboard, events: events}
}

func (f transcriptFinalizer) Finalize(ctx context.Context, artifactPath string, raw string) (domain.TranscriptResult, error) {
	result := domain.TranscriptResult{RawTranscript: raw, FinalTranscript: raw}

	if f.rules != nil {
		transformed, err := f.rules.Apply(raw)
		if err != nil {
			f.events.SessionError(domain.ErrorCodeRules, err.Error())
			return result, fmt.Errorf("apply transcript rules: %w", err)
		}
		result.FinalTranscript = transformed
	}

	path := transcriptPath(artifactPath)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(result.FinalTranscript)+"\n"), 0o644); err != nil {
		f.events.SessionError(domain.ErrorCodeTranscription, err.Error())
		return result, fmt.Errorf("write transcript: %w", err)
	}
	result.Path = path

	if f.clipboard == nil {
		return result, nil
	}
	if err := f.clipboard.SetText(ctx, result.FinalTranscript); err != nil {
		log.Warningf("transcript saved to %s but clipboard write failed: %v", path, err)
		f.events.SessionError(domain.ErrorCodeClipboard, "transcript ready but clipboard write failed")
		return result, nil
	}
	result.Copied = true
	return result, nil
}

// transcriptPath places the transcript beside the artifact, e.g.
// recording_x.wav -> recording_x.txt.
func transcriptPath(artifactPath string) string {
	return strings.TrimSuffix(artifactPath, filepath.Ext(artifactPath)) + transcriptSuffix
}
