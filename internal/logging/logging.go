// Package logging configures the op/go-logging backend shared by every
// package logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/op/go-logging"
	"golang.org/x/term"
)

const (
	plainFormat    = `%{time:15:04:05.000} %{module} %{level:.4s} %{message}`
	colouredFormat = `%{color}%{time:15:04:05.000} %{module} %{level:.4s}%{color:reset} %{message}`

	debugEnv = "HYPRREC_DEBUG"
)

// Options selects level and destination. Color is forced on or off when
// set, otherwise it follows whether Output is a terminal.
type Options struct {
	Level  string
	Debug  bool
	Output io.Writer
	Color  *bool
}

// Setup installs the backend and returns the effective level.
func Setup(opts Options) (logging.Level, error) {
	level := logging.INFO
	if strings.TrimSpace(opts.Level) != "" {
		parsed, err := logging.LogLevel(opts.Level)
		if err != nil {
			return level, err
		}
		level = parsed
	}
	if opts.Debug || DebugFromEnv() {
		level = logging.DEBUG
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	format := plainFormat
	if useColor(out, opts.Color) {
		format = colouredFormat
	}

	backend := logging.NewLogBackend(out, "", 0)
	formatted := logging.NewBackendFormatter(backend, logging.MustStringFormatter(format))
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(level, "")
	logging.SetBackend(leveled)
	return level, nil
}

// DebugFromEnv reports whether HYPRREC_DEBUG asks for debug output.
func DebugFromEnv() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(debugEnv))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func useColor(out io.Writer, forced *bool) bool {
	if forced != nil {
		return *forced
	}
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
