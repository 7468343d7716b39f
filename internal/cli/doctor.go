package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hyprrec/internal/config"
	"hyprrec/internal/hypr"
	"hyprrec/internal/notify"
	"hyprrec/internal/state"
)

type check struct {
	name     string
	ok       bool
	detail   string
	optional bool
}

func newDoctorCmd(rt *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lookPath := rt.deps.LookPath
			if lookPath == nil {
				lookPath = exec.LookPath
			}
			checks := runChecks(cmd.Context(), rt.cfg, lookPath)
			if !report(cmd.OutOrStdout(), checks) {
				return errors.New("some prerequisites are missing")
			}
			return nil
		},
	}
}

func runChecks(ctx context.Context, cfg config.Config, lookPath func(string) (string, error)) []check {
	var checks []check
	binary := func(name string, command string, hint string) check {
		path, err := lookPath(command)
		if err != nil {
			return check{name: name, detail: fmt.Sprintf("%s not found. %s", command, hint)}
		}
		return check{name: name, ok: true, detail: path}
	}

	if hypr.Running() {
		checks = append(checks, check{name: "Hyprland session", ok: true, detail: "detected"})
	} else {
		checks = append(checks, check{name: "Hyprland session", detail: "HYPRLAND_INSTANCE_SIGNATURE is not set"})
	}

	hyprctl := binary("hyprctl", cfg.Keys.Hyprctl, "It ships with Hyprland.")
	if hyprctl.ok && hypr.Running() {
		versionCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if v, err := hypr.NewClient(cfg.Keys.Hyprctl).Version(versionCtx); err != nil {
			hyprctl.ok = false
			hyprctl.detail = err.Error()
		} else if v != "" {
			hyprctl.detail = v
		}
		cancel()
	}
	checks = append(checks, hyprctl)

	switch cfg.Capture.Mode {
	case config.ModeScreen:
		checks = append(checks, binary("Screen recorder", cfg.Screen.Command, "Install gstreamer with the pipewire and x264 plugins."))
		checks = append(checks, sessionBusCheck("Screen cast portal"))
	default:
		checks = append(checks, binary("Audio recorder", cfg.Audio.Command, "Install ffmpeg."))
	}

	switch cfg.Notify.Backend {
	case notify.BackendNone:
		checks = append(checks, check{name: "Notifications", ok: true, detail: "disabled"})
	case notify.BackendSwayOSD:
		checks = append(checks, binary("Notifications", cfg.Notify.SwayOSDCommand, "Install swayosd."))
	default:
		checks = append(checks, sessionBusCheck("Notifications"))
	}

	switch cfg.Transcribe.Provider {
	case config.ProviderWhisper:
		checks = append(checks, binary("Transcription", cfg.Whisper.Command, "Install openai-whisper or set whisper.command."))
	case config.ProviderDeepgram:
		if cfg.Deepgram.APIKey != "" {
			checks = append(checks, check{name: "Transcription", ok: true, detail: "deepgram key configured"})
		} else {
			checks = append(checks, check{name: "Transcription", detail: "deepgram key not set. Set HYPRREC_DEEPGRAM_API_KEY or DEEPGRAM_API_KEY"})
		}
	default:
		checks = append(checks, check{name: "Transcription", ok: true, detail: "disabled"})
	}

	if cfg.Transcribe.Provider != config.ProviderNone && cfg.Transcribe.Clipboard {
		fields := strings.Fields(cfg.Transcribe.ClipboardCommand)
		if len(fields) == 0 {
			fields = []string{"wl-copy"}
		}
		checks = append(checks, binary("Clipboard", fields[0], "Install wl-clipboard."))
	}

	checks = append(checks, check{name: "Recordings directory", ok: true, detail: cfg.Output.Dir})

	if store, err := state.NewStore(cfg.State.Dir); err == nil {
		if records, err := store.List(); err == nil && len(records) > 0 {
			checks = append(checks, check{
				name:     "Leftover sessions",
				detail:   fmt.Sprintf("%d found. Run hyprrec cleanup", len(records)),
				optional: true,
			})
		}
	}
	return checks
}

func sessionBusCheck(name string) check {
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		return check{name: name, detail: "DBUS_SESSION_BUS_ADDRESS is not set"}
	}
	return check{name: name, ok: true, detail: "session bus available"}
}

// report prints the checks and whether every required one passed.
func report(w io.Writer, checks []check) bool {
	allOK := true
	for _, c := range checks {
		mark := "✓"
		if !c.ok {
			mark = "✗"
			if c.optional {
				mark = "!"
			} else {
				allOK = false
			}
		}
		fmt.Fprintf(w, "%s %s: %s\n", mark, c.name, c.detail)
	}
	if allOK {
		fmt.Fprintln(w, "\nAll prerequisites met. Ready to record!")
	} else {
		fmt.Fprintln(w, "\nSome prerequisites are missing.")
	}
	return allOK
}
