package config

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// DefaultCommitMessage lists the changed extensions under a summary line.
const DefaultCommitMessage = `Update {{ .Count }} extension(s) from {{ .Repository }}@{{ .Branch }}
{{- if .Changed }}

{{ range .Changed }}- {{ . }}
{{ end }}{{ end }}`

// MessageData is the data a commit message template is executed with.
type MessageData struct {
	Repository string
	Branch     string
	Changed    []string
	Count      int
}

// RenderMessage executes a commit message template. Trailing newlines are
// trimmed.
func RenderMessage(tmpl string, data MessageData) (string, error) {
	t, err := parseMessage(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing commit message template: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func parseMessage(tmpl string) (*template.Template, error) {
	t, err := template.New("commit_message").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parsing commit message template: %w", err)
	}
	return t, nil
}
