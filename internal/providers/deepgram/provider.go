// Package deepgram replays recordings through Deepgram's live listen
// websocket.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/op/go-logging"

	"hyprrec/internal/ports"
)

var log = logging.MustGetLogger("deepgram")

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("deepgram API key is not configured (set HYPRREC_DEEPGRAM_API_KEY or DEEPGRAM_API_KEY)")

const (
	defaultAPIBase   = "https://api.deepgram.com/v1"
	defaultModel     = "nova-2"
	handshakeTimeout = 15 * time.Second
)

type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

// Provider implements ports.TranscriptionProvider.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
}

var _ ports.TranscriptionProvider = (*Provider)(nil)

func NewProvider(cfg Config) *Provider {
	cfg.APIBaseURL = strings.TrimSpace(cfg.APIBaseURL)
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &Provider{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

func (p *Provider) StartStreaming(ctx context.Context, stream ports.StreamingConfig) (ports.StreamingSession, error) {
	apiKey := strings.TrimSpace(p.cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	target, err := listenURL(p.cfg, stream)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+apiKey)
	conn, resp, err := p.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deepgram handshake failed with %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("connect to deepgram: %w", err)
	}
	log.Debugf("listening via %s", withoutQuery(target))

	return startSession(ctx, conn), nil
}

// listenURL builds the /listen endpoint. An empty Encoding lets Deepgram
// read the container header, in which case sample_rate and channels must
// be omitted.
func listenURL(cfg Config, stream ports.StreamingConfig) (string, error) {
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	u, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid deepgram API base %q: %w", cfg.APIBaseURL, err)
	}

	q := url.Values{}
	q.Set("model", cfg.Model)
	q.Set("smart_format", strconv.FormatBool(cfg.SmartFormat))
	q.Set("interim_results", strconv.FormatBool(stream.InterimResults))
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}
	if stream.Encoding != "" {
		rate, channels := stream.SampleRate, stream.Channels
		if rate <= 0 {
			rate = 16000
		}
		if channels <= 0 {
			channels = 1
		}
		q.Set("encoding", stream.Encoding)
		q.Set("sample_rate", strconv.Itoa(rate))
		q.Set("channels", strconv.Itoa(channels))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func withoutQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	return u.String()
}
