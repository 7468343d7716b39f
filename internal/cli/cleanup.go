package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"hyprrec/internal/hypr"
	"hyprrec/internal/state"
)

func newCleanupCmd(rt *rootState) *cobra.Command {
	var opts state.SweepOptions

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove keybindings and files left by a session that crashed",
		Long: `cleanup unbinds the keys, deletes the signal file and removes the partial
recording of every session whose process is gone. Sessions that are still
running are skipped unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := state.NewStore(rt.cfg.State.Dir)
			if err != nil {
				return err
			}

			var unbinder state.Unbinder
			if hypr.Running() {
				unbinder = hypr.NewClient(rt.cfg.Keys.Hyprctl)
			} else {
				log.Warning("Hyprland is not running; recorded keybindings cannot be removed")
			}

			reports, err := state.Sweep(cmd.Context(), store, unbinder, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			live := map[string]bool{}
			var failed int
			for _, r := range reports {
				switch {
				case r.Skipped:
					live[r.Record.SignalFile] = true
					fmt.Fprintf(out, "skipped %s: process %d is still running\n", r.Record.ID, r.Record.PID)
				case r.Err != nil:
					failed++
					fmt.Fprintf(out, "incomplete %s: %v\n", r.Record.ID, r.Err)
				default:
					fmt.Fprintf(out, "cleaned %s%s\n", r.Record.ID, describeSweep(r))
				}
			}

			orphans, err := removeOrphanSignalFiles(hypr.RuntimeDir(), live)
			if err != nil {
				log.Warningf("scanning for stray signal files: %v", err)
			}
			for _, path := range orphans {
				fmt.Fprintf(out, "removed stray signal file %s\n", path)
			}

			if len(reports) == 0 && len(orphans) == 0 {
				fmt.Fprintln(out, "nothing to clean up")
			}
			if failed > 0 {
				return fmt.Errorf("%d session(s) could not be cleaned up", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "also clean sessions whose process is still running")
	cmd.Flags().BoolVar(&opts.KeepArtifacts, "keep-artifacts", false, "keep partial recordings on disk")
	return cmd
}

func describeSweep(r state.SweepReport) string {
	var s string
	if r.Unbound {
		s += ", keys unbound"
	}
	if r.RemovedSignal {
		s += ", signal file removed"
	}
	if r.RemovedArtifact {
		s += ", partial recording removed"
	}
	return s
}

// removeOrphanSignalFiles deletes signal files that no live session owns.
func removeOrphanSignalFiles(dir string, live map[string]bool) ([]string, error) {
	matches, err := filepath.Glob(hypr.SignalFilePattern(dir))
	if err != nil {
		return nil, err
	}
	var removed []string
	var errs []error
	for _, path := range matches {
		if live[path] {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}
