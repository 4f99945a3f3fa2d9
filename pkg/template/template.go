// Package template renders configuration templates and step expressions
// against the execution context. The concrete templating language is
// deliberately hidden behind Render; callers hand in an opaque template
// string and a data mapping.
package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/netpilot/netpilot/pkg/models"
)

// RenderWithContext renders a template against an execution context
// snapshot. Rendering never mutates the context.
func RenderWithContext(input string, executionCtx *models.ExecutionContext) (any, error) {
	return Render(input, executionCtx.Snapshot())
}

// RenderString renders a template and returns the raw rendered text without
// scalar re-parsing; configuration payloads keep their exact shape.
func RenderString(templateStr string, data any) (string, error) {
	tmpl, err := newTemplate(templateStr)
	if err != nil {
		return "", err
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return buf.String(), nil
}

// Render renders a template and coerces the result into the closest scalar
// or structured value: JSON objects and arrays are decoded, numbers and
// booleans parsed, everything else stays a string.
func Render(templateStr string, data any) (any, error) {
	result, err := RenderString(templateStr, data)
	if err != nil {
		return nil, err
	}

	result = strings.TrimSpace(result)

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		if err := json.Unmarshal([]byte(result), &jsonResult); err != nil {
			return nil, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
		}

		return jsonResult, nil
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

func newTemplate(templateStr string) (*template.Template, error) {
	tmpl, err := template.
		New("render").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"join": strings.Join,
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
		}).
		Option("missingkey=zero").
		Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	return tmpl, nil
}
