package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/op/go-logging"
	"github.com/spf13/cobra"

	"hyprrec/internal/config"
	"hyprrec/internal/domain"
	applog "hyprrec/internal/logging"
	"hyprrec/internal/version"
)

var log = logging.MustGetLogger("cli")

// ErrSessionFailed is returned when a session ends with a Failed outcome.
var ErrSessionFailed = errors.New("recording failed")

// SessionRunner runs one recording session with the resolved config.
type SessionRunner interface {
	RunSession(ctx context.Context, cfg config.Config) (domain.SessionResult, error)
}

type Dependencies struct {
	Sessions SessionRunner
	// LogOutput receives log lines; stderr when nil.
	LogOutput io.Writer
	// LookPath resolves executables for doctor; exec.LookPath when nil.
	LookPath func(file string) (string, error)
}

type rootFlags struct {
	configFile  string
	debug       bool
	video       bool
	maxDuration time.Duration
	transcribe  string
	clipboard   bool
}

// rootState is shared between the root pre-run and subcommands.
type rootState struct {
	deps  *Dependencies
	flags rootFlags
	cfg   config.Config
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rt := &rootState{deps: deps}

	rootCmd := &cobra.Command{
		Use:   "hyprrec",
		Short: "Record a bounded audio or screen clip on Hyprland",
		Long: `hyprrec records one clip and stops on a global key press or when the
time limit is reached.

While recording, Return saves and Escape cancels (configurable). Progress is
shown as a desktop notification. Saved recordings can be transcribed.

  hyprrec                      record audio for up to 60s
  hyprrec --video              record the screen through the desktop portal
  hyprrec --transcribe whisper record, then transcribe with whisper`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.record(cmd)
		},
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&rt.flags.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/hyprrec/config.toml)")
	persistent.BoolVar(&rt.flags.debug, "debug", false, "enable debug logging")

	flags := rootCmd.Flags()
	flags.BoolVar(&rt.flags.video, "video", false, "record the screen instead of audio only")
	flags.DurationVar(&rt.flags.maxDuration, "max-duration", 0, "auto-save after this long (default from config, 60s)")
	flags.StringVar(&rt.flags.transcribe, "transcribe", "", "transcribe saved recordings with none, whisper or deepgram")
	flags.BoolVar(&rt.flags.clipboard, "clipboard", false, "copy the transcript to the clipboard")

	rootCmd.AddCommand(newDoctorCmd(rt))
	rootCmd.AddCommand(newCleanupCmd(rt))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func (rt *rootState) prepare(cmd *cobra.Command) error {
	output := rt.deps.LogOutput
	if output == nil {
		output = os.Stderr
	}

	// Redone below once log.level is known.
	if _, err := applog.Setup(applog.Options{Debug: rt.flags.debug, Output: output}); err != nil {
		return err
	}

	cfg, err := config.Load(config.Options{File: rt.flags.configFile})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := rt.applyFlags(cmd, &cfg); err != nil {
		return err
	}
	if _, err := applog.Setup(applog.Options{Level: cfg.Log.Level, Debug: rt.flags.debug, Output: output}); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if cfg.File != "" {
		log.Debugf("using config file %s", cfg.File)
	}
	rt.cfg = cfg
	return nil
}

func (rt *rootState) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if rt.flags.video {
		cfg.Capture.Mode = config.ModeScreen
	}
	if flags.Changed("max-duration") {
		cfg.Session.MaxDuration = rt.flags.maxDuration
	}
	if flags.Changed("transcribe") {
		cfg.Transcribe.Provider = rt.flags.transcribe
	}
	if flags.Changed("clipboard") {
		cfg.Transcribe.Clipboard = rt.flags.clipboard
	}
	return cfg.Validate()
}

func (rt *rootState) record(cmd *cobra.Command) error {
	if rt.deps.Sessions == nil {
		return errors.New("no session runner configured")
	}

	result, err := rt.deps.Sessions.RunSession(cmd.Context(), rt.cfg)
	out := cmd.OutOrStdout()
	switch result.Outcome.Kind {
	case domain.OutcomeSaved:
		fmt.Fprintf(out, "Saved %s (%s)\n", result.Outcome.Path, result.Duration.Round(time.Second))
		return nil
	case domain.OutcomeCancelled:
		fmt.Fprintln(out, "Cancelled, nothing was saved")
		return nil
	case domain.OutcomeFailed:
		if err == nil {
			err = errors.New(result.Outcome.Reason)
		}
		return fmt.Errorf("%w: %w", ErrSessionFailed, err)
	default:
		if err != nil {
			return err
		}
		return errors.New("session ended without an outcome")
	}
}
