package deepgram

import (
	"encoding/json"
	"errors"
	"strings"

	"hyprrec/internal/domain"
)

var closeStreamMessage = []byte(`{"type":"CloseStream"}`)

const (
	messageMetadata      = "Metadata"
	messageError         = "Error"
	messageUtteranceEnd  = "UtteranceEnd"
	messageSpeechStarted = "SpeechStarted"
)

type alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// listenMessage covers the server messages of the live listen API. Older
// gateways put results under results.channels instead of channel.
type listenMessage struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description"`
	RequestID   string `json:"request_id"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []alternative `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// decodeMessage turns one server message into a transcript event. ok is
// false for messages that carry no text; an Error message is returned as err.
func decodeMessage(payload []byte) (event domain.TranscriptEvent, ok bool, err error) {
	var msg listenMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Debugf("ignoring undecodable message: %v", err)
		return event, false, nil
	}

	switch {
	case strings.EqualFold(msg.Type, messageError):
		text := strings.TrimSpace(msg.Message)
		if text == "" {
			text = strings.TrimSpace(msg.Description)
		}
		if text == "" {
			text = "deepgram returned an unknown error"
		}
		return event, false, errors.New(text)
	case strings.EqualFold(msg.Type, messageMetadata):
		log.Debugf("stream metadata, request %s", msg.RequestID)
		return event, false, nil
	case strings.EqualFold(msg.Type, messageUtteranceEnd), strings.EqualFold(msg.Type, messageSpeechStarted):
		return event, false, nil
	}

	text := msg.transcript()
	if text == "" {
		return event, false, nil
	}
	event = domain.TranscriptEvent{Kind: domain.TranscriptKindPartial, Text: text, IsSpeechFinal: msg.SpeechFinal}
	if msg.IsFinal || msg.SpeechFinal {
		event.Kind = domain.TranscriptKindFinal
	}
	return event, true, nil
}

func (m listenMessage) transcript() string {
	if len(m.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(m.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(m.Results.Channels) > 0 && len(m.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(m.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}
