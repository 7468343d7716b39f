package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
)

// Unbinder removes global keybindings.
type Unbinder interface {
	Unbind(ctx context.Context, keys ...string) error
}

// SweepOptions controls which records a sweep touches.
type SweepOptions struct {
	// Force also sweeps records whose owning process is still alive.
	Force bool
	// KeepArtifacts leaves partial recordings on disk.
	KeepArtifacts bool
}

// SweepReport describes what one record's cleanup did.
type SweepReport struct {
	Record          Record
	Skipped         bool
	Unbound         bool
	RemovedSignal   bool
	RemovedArtifact bool
	Err             error
}

// Sweep cleans up after sessions whose process died without running its
// teardown. A record is deleted only once its cleanup fully succeeded.
func Sweep(ctx context.Context, store *Store, unbinder Unbinder, opts SweepOptions) ([]SweepReport, error) {
	records, err := store.List()
	if err != nil {
		return nil, err
	}

	reports := make([]SweepReport, 0, len(records))
	for _, record := range records {
		report := SweepReport{Record: record}
		if !opts.Force && processAlive(record.PID) {
			report.Skipped = true
			reports = append(reports, report)
			continue
		}

		report.Err = sweepRecord(ctx, record, unbinder, opts, &report)
		if report.Err == nil {
			report.Err = store.Delete(record.ID)
		}
		if report.Err != nil {
			log.Warningf("cleanup of session %s incomplete: %v", record.ID, report.Err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func sweepRecord(ctx context.Context, record Record, unbinder Unbinder, opts SweepOptions, report *SweepReport) error {
	var errs []error
	if len(record.Keys) > 0 {
		if unbinder == nil {
			errs = append(errs, fmt.Errorf("keys %v are still bound and no hyprctl client is available", record.Keys))
		} else if err := unbinder.Unbind(ctx, record.Keys...); err != nil {
			errs = append(errs, fmt.Errorf("unbind %v: %w", record.Keys, err))
		} else {
			report.Unbound = true
		}
	}

	if record.SignalFile != "" {
		removed, err := removeIfExists(record.SignalFile)
		if err != nil {
			errs = append(errs, err)
		}
		report.RemovedSignal = removed
	}

	if !opts.KeepArtifacts && record.OutputPath != "" {
		removed, err := removeIfExists(record.OutputPath)
		if err != nil {
			errs = append(errs, err)
		}
		report.RemovedArtifact = removed
	}
	return errors.Join(errs...)
}

func removeIfExists(path string) (bool, error) {
	err := os.Remove(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("remove %s: %w", path, err)
	}
}

// processAlive probes pid with signal 0. EPERM still means it exists.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
