package models

import (
	"fmt"
	"strings"
)

// ExecutionContext is the working memory of a running execution. Inputs are
// the caller-supplied request values, immutable after creation. Data
// accumulates step outputs monotonically: SetPath creates and overwrites,
// nothing removes.
type ExecutionContext struct {
	ExecutionID string         `json:"execution_id"`
	WorkflowID  string         `json:"workflow_id"`
	Operation   Operation      `json:"operation"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// NewExecutionContext builds a context for one execution run.
func NewExecutionContext(execution *Execution) *ExecutionContext {
	data := make(map[string]any)
	for k, v := range execution.Context {
		data[k] = v
	}

	return &ExecutionContext{
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		Operation:   execution.Operation,
		Inputs:      execution.Inputs,
		Data:        data,
		Meta:        make(map[string]any),
	}
}

// GetPath resolves a dotted path against the context. The path root is the
// accumulated data tree; the reserved prefix "inputs" reads the immutable
// request inputs instead.
func (c *ExecutionContext) GetPath(path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	keys := strings.Split(path, ".")

	var current any = c.Data
	if keys[0] == "inputs" {
		current = c.Inputs
		keys = keys[1:]

		if len(keys) == 0 {
			return current, true
		}
	}

	for _, key := range keys {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// SetPath writes a value at a dotted path into the data tree, creating
// intermediate mappings as needed. Writing through a non-mapping value is an
// error; existing subtrees are never removed.
func (c *ExecutionContext) SetPath(path string, value any) error {
	if path == "" {
		return fmt.Errorf("context path must not be empty")
	}

	if strings.HasPrefix(path, "inputs.") || path == "inputs" {
		return fmt.Errorf("context path %q is read-only: inputs are immutable after creation", path)
	}

	keys := strings.Split(path, ".")

	if c.Data == nil {
		c.Data = make(map[string]any)
	}

	current := c.Data
	for _, key := range keys[:len(keys)-1] {
		next, ok := current[key]
		if !ok {
			child := make(map[string]any)
			current[key] = child
			current = child

			continue
		}

		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("context path %q: %q is not a mapping", path, key)
		}

		current = child
	}

	current[keys[len(keys)-1]] = value

	return nil
}

// Snapshot returns the mapping handed to template rendering and condition
// evaluation: the data tree plus reserved top-level views. The caller must
// treat the snapshot as read-only.
func (c *ExecutionContext) Snapshot() map[string]any {
	snap := make(map[string]any, len(c.Data)+3)
	for k, v := range c.Data {
		snap[k] = v
	}

	snap["inputs"] = c.Inputs
	snap["meta"] = c.Meta
	snap["execution"] = map[string]any{
		"id":          c.ExecutionID,
		"workflow_id": c.WorkflowID,
		"operation":   string(c.Operation),
	}

	return snap
}
