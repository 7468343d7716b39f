package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/op/go-logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupFiltersByLevel(t *testing.T) {
	t.Setenv(debugEnv, "")
	var buf bytes.Buffer

	level, err := Setup(Options{Level: "warning", Output: &buf})
	require.NoError(t, err)
	assert.Equal(t, logging.WARNING, level)

	logger := logging.MustGetLogger("probe")
	logger.Info("hidden")
	logger.Warning("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "probe WARN shown")
	assert.NotContains(t, out, "\x1b[")
}

func TestSetupDebugOverrides(t *testing.T) {
	t.Setenv(debugEnv, "1")
	var buf bytes.Buffer

	level, err := Setup(Options{Level: "error", Output: &buf})
	require.NoError(t, err)
	assert.Equal(t, logging.DEBUG, level)

	t.Setenv(debugEnv, "")
	level, err = Setup(Options{Level: "error", Debug: true, Output: &buf})
	require.NoError(t, err)
	assert.Equal(t, logging.DEBUG, level)
}

func TestSetupForcedColor(t *testing.T) {
	t.Setenv(debugEnv, "")
	var buf bytes.Buffer
	on := true

	_, err := Setup(Options{Output: &buf, Color: &on})
	require.NoError(t, err)
	logging.MustGetLogger("probe").Error("boom")
	assert.True(t, strings.Contains(buf.String(), "\x1b["))
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	_, err := Setup(Options{Level: "chatty"})
	assert.Error(t, err)
}
