package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const envPrefix = "HYPRREC"

// Capture modes.
const (
	ModeAudio  = "audio"
	ModeScreen = "screen"
)

// Transcription providers.
const (
	ProviderNone     = "none"
	ProviderWhisper  = "whisper"
	ProviderDeepgram = "deepgram"
)

// Config stores runtime configuration.
type Config struct {
	Session    SessionConfig    `mapstructure:"session"`
	Output     OutputConfig     `mapstructure:"output"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	Audio      AudioConfig      `mapstructure:"audio"`
	Screen     ScreenConfig     `mapstructure:"screen"`
	Keys       KeysConfig       `mapstructure:"keys"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Transcribe TranscribeConfig `mapstructure:"transcribe"`
	Whisper    WhisperConfig    `mapstructure:"whisper"`
	Deepgram   DeepgramConfig   `mapstructure:"deepgram"`
	Rules      RulesConfig      `mapstructure:"rules"`
	Log        LogConfig        `mapstructure:"log"`
	State      StateConfig      `mapstructure:"state"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

type SessionConfig struct {
	MaxDuration      time.Duration `mapstructure:"max_duration"`
	ProgressTick     time.Duration `mapstructure:"progress_tick"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	FinalizeTimeout  time.Duration `mapstructure:"finalize_timeout"`
	TeardownTimeout  time.Duration `mapstructure:"teardown_timeout"`
	ProgressTimeout  time.Duration `mapstructure:"progress_timeout"`
	RegisterTimeout  time.Duration `mapstructure:"register_timeout"`
}

type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	Prefix   string `mapstructure:"prefix"`
	Template string `mapstructure:"template"`
}

type CaptureConfig struct {
	Mode string `mapstructure:"mode"`
}

type AudioConfig struct {
	Command     string `mapstructure:"command"`
	InputFormat string `mapstructure:"input_format"`
	InputDevice string `mapstructure:"input_device"`
	SampleRate  int    `mapstructure:"sample_rate"`
	Channels    int    `mapstructure:"channels"`
}

type ScreenConfig struct {
	Command      string `mapstructure:"command"`
	Audio        bool   `mapstructure:"audio"`
	AudioDevice  string `mapstructure:"audio_device"`
	VideoBitrate int    `mapstructure:"video_bitrate"`
	AudioBitrate int    `mapstructure:"audio_bitrate"`
	Cursor       bool   `mapstructure:"cursor"`
}

type KeysConfig struct {
	Commit       string        `mapstructure:"commit"`
	Cancel       string        `mapstructure:"cancel"`
	Hyprctl      string        `mapstructure:"hyprctl"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type NotifyConfig struct {
	Backend        string `mapstructure:"backend"`
	AppName        string `mapstructure:"app_name"`
	SwayOSDCommand string `mapstructure:"swayosd_command"`
}

type TranscribeConfig struct {
	Provider         string        `mapstructure:"provider"`
	Clipboard        bool          `mapstructure:"clipboard"`
	ClipboardCommand string        `mapstructure:"clipboard_command"`
	Timeout          time.Duration `mapstructure:"timeout"`
	ChunkSize        int           `mapstructure:"chunk_size"`
	StreamingGrace   time.Duration `mapstructure:"streaming_grace"`
}

type WhisperConfig struct {
	Command  string `mapstructure:"command"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
	// Args is split on whitespace and appended to the whisper command line.
	Args string `mapstructure:"args"`
}

type DeepgramConfig struct {
	APIKey      string `mapstructure:"api_key"`
	APIBaseURL  string `mapstructure:"api_base"`
	Model       string `mapstructure:"model"`
	Language    string `mapstructure:"language"`
	SmartFormat bool   `mapstructure:"smart_format"`
}

type RulesConfig struct {
	Path           string `mapstructure:"path"`
	IterationLimit int    `mapstructure:"iteration_limit"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type StateConfig struct {
	Dir string `mapstructure:"dir"`
}

// Options selects the config file. An empty File searches the XDG config dir.
type Options struct {
	File string
}

// legacyEnv maps keys to the environment variables older setups export.
var legacyEnv = map[string][]string{
	"deepgram.api_key":      {"DEEPGRAM_API_KEY"},
	"deepgram.api_base":     {"DEEPGRAM_API_BASE"},
	"deepgram.model":        {"DEEPGRAM_MODEL"},
	"deepgram.language":     {"DEEPGRAM_LANGUAGE"},
	"deepgram.smart_format": {"DEEPGRAM_SMART_FORMAT"},
	"whisper.command":       {"WHISPER_COMMAND"},
	"whisper.model":         {"WHISPER_MODEL"},
	"whisper.language":      {"WHISPER_LANGUAGE"},
	"whisper.args":          {"WHISPER_ARGS"},
	"audio.input_device":    {"WHISPER_PULSE_SOURCE", "DEEPGRAM_PULSE_SOURCE"},
}

// Load resolves configuration from env, an optional config file and defaults.
func Load(opts Options) (Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	v := viper.New()
	setDefaults(v, home)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		envs := append([]string{envName(key)}, names...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return Config{}, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if opts.File != "" {
		path, err := homedir.Expand(opts.File)
		if err != nil {
			return Config{}, err
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(Dir(home))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("could not read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("could not unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if strings.TrimSpace(cfg.Rules.Path) == "" {
		cfg.Rules.Path = firstExisting(
			filepath.Join(Dir(home), "substitutions.rules"),
			filepath.Join(home, ".config", "hypr", "whisper-substitutions.rules"),
		)
	}
	cfg.Output.Dir = expand(cfg.Output.Dir)
	cfg.State.Dir = expand(cfg.State.Dir)
	cfg.Rules.Path = expand(cfg.Rules.Path)

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Dir is $XDG_CONFIG_HOME/hyprrec, falling back to ~/.config/hyprrec.
func Dir(home string) string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "hyprrec")
	}
	return filepath.Join(home, ".config", "hyprrec")
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("session.max_duration", 60*time.Second)
	v.SetDefault("session.progress_tick", 50*time.Millisecond)
	v.SetDefault("session.progress_interval", 100*time.Millisecond)
	v.SetDefault("session.finalize_timeout", 30*time.Second)
	v.SetDefault("session.teardown_timeout", 5*time.Second)
	v.SetDefault("session.progress_timeout", 400*time.Millisecond)
	v.SetDefault("session.register_timeout", 10*time.Second)

	v.SetDefault("output.dir", filepath.Join(home, "Recordings"))
	v.SetDefault("output.prefix", "")
	v.SetDefault("output.template", "{{.Prefix}}_{{.ID}}.{{.Ext}}")

	v.SetDefault("capture.mode", ModeAudio)

	v.SetDefault("audio.command", "ffmpeg")
	v.SetDefault("audio.input_format", "pulse")
	v.SetDefault("audio.input_device", "default")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)

	v.SetDefault("screen.command", "gst-launch-1.0")
	v.SetDefault("screen.audio", true)
	v.SetDefault("screen.audio_device", "")
	v.SetDefault("screen.video_bitrate", 8000)
	v.SetDefault("screen.audio_bitrate", 128000)
	v.SetDefault("screen.cursor", true)

	v.SetDefault("keys.commit", ",Return")
	v.SetDefault("keys.cancel", ",Escape")
	v.SetDefault("keys.hyprctl", "hyprctl")
	v.SetDefault("keys.poll_interval", 250*time.Millisecond)

	v.SetDefault("notify.backend", "dbus")
	v.SetDefault("notify.app_name", "hyprrec")
	v.SetDefault("notify.swayosd_command", "swayosd-client")

	v.SetDefault("transcribe.provider", ProviderNone)
	v.SetDefault("transcribe.clipboard", false)
	v.SetDefault("transcribe.clipboard_command", "wl-copy")
	v.SetDefault("transcribe.timeout", 2*time.Minute)
	v.SetDefault("transcribe.chunk_size", 8192)
	v.SetDefault("transcribe.streaming_grace", 5*time.Second)

	v.SetDefault("whisper.command", "whisper")
	v.SetDefault("whisper.model", "")
	v.SetDefault("whisper.language", "")
	v.SetDefault("whisper.args", "")

	v.SetDefault("deepgram.api_key", "")
	v.SetDefault("deepgram.api_base", "https://api.deepgram.com/v1")
	v.SetDefault("deepgram.model", "nova-2")
	v.SetDefault("deepgram.language", "")
	v.SetDefault("deepgram.smart_format", true)

	v.SetDefault("rules.path", "")
	v.SetDefault("rules.iteration_limit", 30)

	v.SetDefault("log.level", "info")
	v.SetDefault("state.dir", filepath.Join(home, ".local", "state", "hyprrec"))
}

// normalize replaces out-of-range values with their defaults.
func (c *Config) normalize() {
	c.Capture.Mode = strings.ToLower(strings.TrimSpace(c.Capture.Mode))
	c.Transcribe.Provider = strings.ToLower(strings.TrimSpace(c.Transcribe.Provider))
	if c.Transcribe.Provider == "" {
		c.Transcribe.Provider = ProviderNone
	}
	c.Notify.Backend = strings.ToLower(strings.TrimSpace(c.Notify.Backend))
	c.Deepgram.APIKey = strings.TrimSpace(c.Deepgram.APIKey)

	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = 1
	}
	if c.Rules.IterationLimit <= 0 {
		c.Rules.IterationLimit = 30
	}
	if c.Transcribe.ChunkSize < 256 {
		c.Transcribe.ChunkSize = 8192
	}
}

// Validate reports settings the session cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Session.MaxDuration <= 0 {
		errs = append(errs, fmt.Errorf("session.max_duration must be positive, got %s", c.Session.MaxDuration))
	}
	if c.Session.ProgressTick <= 0 {
		errs = append(errs, fmt.Errorf("session.progress_tick must be positive, got %s", c.Session.ProgressTick))
	}
	if c.Session.ProgressInterval < 0 {
		errs = append(errs, fmt.Errorf("session.progress_interval cannot be negative, got %s", c.Session.ProgressInterval))
	}
	switch c.Capture.Mode {
	case ModeAudio, ModeScreen:
	default:
		errs = append(errs, fmt.Errorf("capture.mode must be %q or %q, got %q", ModeAudio, ModeScreen, c.Capture.Mode))
	}
	switch c.Transcribe.Provider {
	case ProviderNone, ProviderWhisper, ProviderDeepgram:
	default:
		errs = append(errs, fmt.Errorf("unknown transcribe.provider %q", c.Transcribe.Provider))
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		errs = append(errs, errors.New("output.dir is empty"))
	}
	return errors.Join(errs...)
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func expand(path string) string {
	if path == "" {
		return path
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}
