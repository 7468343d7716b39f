// Package whisper transcribes recordings with the openai-whisper CLI.
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/op/go-logging"

	"hyprrec/internal/ports"
)

var log = logging.MustGetLogger("whisper")

// Config mirrors the whisper command line.
type Config struct {
	Command  string
	Model    string
	Language string
	Args     []string
}

// Transcriber runs whisper into a scratch directory and returns the text.
type Transcriber struct {
	cfg Config
}

var _ ports.Transcriber = (*Transcriber)(nil)

func NewTranscriber(cfg Config) *Transcriber {
	if strings.TrimSpace(cfg.Command) == "" {
		cfg.Command = "whisper"
	}
	return &Transcriber{cfg: cfg}
}

func (t *Transcriber) Transcribe(ctx context.Context, artifactPath string) (string, error) {
	outDir, err := os.MkdirTemp("", "hyprrec-whisper-")
	if err != nil {
		return "", fmt.Errorf("create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := t.args(artifactPath, outDir)
	log.Debugf("running %s %s", t.cfg.Command, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, t.cfg.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("whisper: %w", ctx.Err())
		}
		return "", fmt.Errorf("whisper failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	text, err := readTranscript(outDir, artifactPath)
	if err != nil {
		return "", fmt.Errorf("%w (stdout: %s)", err, strings.TrimSpace(stdout.String()))
	}
	return strings.TrimSpace(text), nil
}

func (t *Transcriber) args(artifactPath string, outDir string) []string {
	args := []string{artifactPath}
	if model := strings.TrimSpace(t.cfg.Model); model != "" {
		args = append(args, "--model", model)
	}
	if language := strings.TrimSpace(t.cfg.Language); language != "" {
		args = append(args, "--language", language)
	}
	args = append(args, "--output_format", "txt", "--output_dir", outDir)
	return append(args, t.cfg.Args...)
}

// readTranscript finds whisper's output, named after the input either
// without or with its extension depending on the whisper build.
func readTranscript(outDir string, artifactPath string) (string, error) {
	name := filepath.Base(artifactPath)
	candidates := []string{
		filepath.Join(outDir, strings.TrimSuffix(name, filepath.Ext(name))+".txt"),
		filepath.Join(outDir, name+".txt"),
	}
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("whisper did not produce a transcript for %s", name)
}
