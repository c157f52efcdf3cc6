// Package template renders agent prompt templates with interview context.
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Render executes a text/template prompt against the given data and returns
// the rendered string. Missing keys fail the render rather than producing
// "<no value>" inside a prompt.
func Render(templateStr string, data any) (string, error) {
	tmpl, err := template.
		New("prompt").
		Option("missingkey=error").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"join": strings.Join,
			"trim": strings.TrimSpace,
		}).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
