// Package hypr drives Hyprland through hyprctl.
package hypr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("hypr")

// ErrNotRunning is returned when no Hyprland instance is reachable.
var ErrNotRunning = errors.New("no Hyprland instance found: HYPRLAND_INSTANCE_SIGNATURE is unset")

// Client runs hyprctl commands.
type Client struct {
	command string
}

func NewClient(command string) *Client {
	if command == "" {
		command = "hyprctl"
	}
	return &Client{command: command}
}

// Running reports whether the environment points at a Hyprland instance.
func Running() bool {
	return os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != ""
}

// Batch runs commands in a single hyprctl invocation. hyprctl answers "ok"
// per successful command; anything else is an error.
func (c *Client) Batch(ctx context.Context, commands ...string) error {
	if len(commands) == 0 {
		return nil
	}
	for _, command := range commands {
		if strings.Contains(command, ";") {
			return fmt.Errorf("hyprctl command must not contain ';': %q", command)
		}
	}

	out, err := c.run(ctx, "--batch", strings.Join(commands, " ; "))
	if err != nil {
		return err
	}
	return checkBatchOutput(out)
}

// Bind installs keybindings in one batch.
func (c *Client) Bind(ctx context.Context, bindings ...Binding) error {
	commands := make([]string, 0, len(bindings))
	for _, b := range bindings {
		commands = append(commands, b.bindCommand())
	}
	return c.Batch(ctx, commands...)
}

// Unbind removes keybindings previously installed for keys.
func (c *Client) Unbind(ctx context.Context, keys ...string) error {
	commands := make([]string, 0, len(keys))
	for _, key := range keys {
		commands = append(commands, "keyword unbind "+key)
	}
	return c.Batch(ctx, commands...)
}

// Version returns the first line of `hyprctl version`.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "version")
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	return line, nil
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail != "" {
			return "", fmt.Errorf("hyprctl %s: %w: %s", args[0], err, detail)
		}
		return "", fmt.Errorf("hyprctl %s: %w", args[0], err)
	}
	return stdout.String(), nil
}

func checkBatchOutput(out string) error {
	var failures []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "ok" {
			continue
		}
		failures = append(failures, line)
	}
	if len(failures) > 0 {
		return fmt.Errorf("hyprctl rejected command: %s", strings.Join(failures, "; "))
	}
	return nil
}

// Binding maps a key in Hyprland's "MODS,KEY" form to a shell command.
type Binding struct {
	Key   string
	Shell string
}

func (b Binding) bindCommand() string {
	return "keyword bind " + b.Key + ",exec," + b.Shell
}
