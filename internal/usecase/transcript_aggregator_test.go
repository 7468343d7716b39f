package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hyprrec/internal/domain"
)

func TestTranscriptAggregatorKeepsTrailingPartial(t *testing.T) {
	t.Parallel()

	agg := newTranscriptAggregator()
	agg.Add(domain.TranscriptEvent{Kind: domain.TranscriptKindPartial, Text: "hello"})
	agg.Add(domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, Text: "hello world"})
	agg.Add(domain.TranscriptEvent{Kind: domain.TranscriptKindPartial, Text: "and"})
	agg.Add(domain.TranscriptEvent{Kind: domain.TranscriptKindPartial, Text: "and again"})

	assert.Equal(t, "hello world and again", agg.Raw())
}

func TestTranscriptAggregatorFinalReplacesPartial(t *testing.T) {
	t.Parallel()

	agg := newTranscriptAggregator()
	agg.Add(domain.TranscriptEvent{Kind: domain.TranscriptKindPartial, Text: "one tw"})
	agg.Add(domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, Text: "one two"})

	assert.Equal(t, "one two", agg.Raw())
}

func TestTranscriptAggregatorIgnoresEmpty(t *testing.T) {
	t.Parallel()

	agg := newTranscriptAggregator()
	agg.Add(domain.TranscriptEvent{Kind: domain.TranscriptKindPartial, Text: "   "})
	assert.Empty(t, agg.Raw())
}
