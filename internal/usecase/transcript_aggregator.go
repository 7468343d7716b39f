package usecase

import (
	"strings"
	"sync"

	"hyprrec/internal/domain"
	"hyprrec/internal/ports"
)

// transcriptAggregator joins final segments, falling back to the latest
// partial when the provider never finalized the tail of the audio.
type transcriptAggregator struct {
	mu      sync.Mutex
	finals  []string
	pending string
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

func (a *transcriptAggregator) Add(event domain.TranscriptEvent) {
	text := strings.TrimSpace(event.Text)
	if text == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if event.Kind == domain.TranscriptKindFinal {
		a.finals = append(a.finals, text)
		a.pending = ""
		return
	}
	a.pending = text
}

// Raw returns every final segment in order plus any partial that arrived
// after the last final.
func (a *transcriptAggregator) Raw() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	parts := append([]string(nil), a.finals...)
	if a.pending != "" {
		parts = append(parts, a.pending)
	}
	return strings.Join(parts, " ")
}

// consumeTranscriptEvents drains the provider stream into the aggregator
// and closes done once the provider stops sending.
func consumeTranscriptEvents(session ports.StreamingSession, aggregator *transcriptAggregator, done chan<- struct{}) {
	defer close(done)

	var partials int
	for event := range session.Events() {
		if strings.TrimSpace(event.Text) == "" {
			continue
		}
		aggregator.Add(event)
		if event.Kind == domain.TranscriptKindPartial {
			partials++
			log.Debugf("partial transcript #%d: %s", partials, event.Text)
		}
	}
}
