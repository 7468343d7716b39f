package usecase

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

// DefaultOutputTemplate names artifacts like recording_20240102-150405.wav.
const DefaultOutputTemplate = "{{.Prefix}}_{{.ID}}.{{.Ext}}"

const sessionIDLayout = "20060102-150405"

// OutputTemplateData holds the variables available to the output template.
type OutputTemplateData struct {
	ID     string
	Prefix string
	Ext    string
	Date   string
	Time   string
}

type outputTemplate struct {
	dir    string
	prefix string
	tmpl   *template.Template
}

func newOutputTemplate(dir string, prefix string, text string) (*outputTemplate, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultOutputTemplate
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = "recording"
	}
	tmpl, err := template.New("output").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid output template: %w", err)
	}
	return &outputTemplate{dir: dir, prefix: prefix, tmpl: tmpl}, nil
}

func (o *outputTemplate) render(id string, startedAt time.Time, ext string) (string, error) {
	data := OutputTemplateData{
		ID:     id,
		Prefix: o.prefix,
		Ext:    strings.TrimPrefix(ext, "."),
		Date:   startedAt.Format("2006-01-02"),
		Time:   startedAt.Format("15-04-05"),
	}

	var buf bytes.Buffer
	if err := o.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing output template: %w", err)
	}
	name := strings.TrimSpace(buf.String())
	if name == "" {
		return "", errors.New("output template rendered an empty file name")
	}
	if !strings.Contains(name, id) {
		return "", fmt.Errorf("output template must include the session id, got %q", name)
	}
	return filepath.Join(o.dir, name), nil
}

func sessionID(now time.Time) string {
	return now.Format(sessionIDLayout)
}
