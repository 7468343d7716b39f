// Package clipboard writes text to the Wayland clipboard through wl-copy.
package clipboard

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"hyprrec/internal/ports"
)

const defaultCommand = "wl-copy"

// WLCopy pipes text into wl-copy on stdin.
type WLCopy struct {
	command string
	args    []string
}

var _ ports.Clipboard = (*WLCopy)(nil)

// NewWLCopy parses command as a whitespace separated command line,
// e.g. "wl-copy --primary".
func NewWLCopy(command string) *WLCopy {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		fields = []string{defaultCommand}
	}
	return &WLCopy{command: fields[0], args: fields[1:]}
}

func (c *WLCopy) SetText(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return fmt.Errorf("%s: %w", c.command, err)
		}
		return fmt.Errorf("%s: %w: %s", c.command, err, detail)
	}
	return nil
}
