// Package file provides file-based persistence for development and tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/netpilot/netpilot/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the
// file system. Each record is stored as one JSON file under a per-kind
// directory below root.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	taskRepo      *TaskRepository
	providerRepo  *ProviderRepository
	executionRepo *ExecutionRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  NewWorkflowRepository(cleanRoot),
		taskRepo:      NewTaskRepository(cleanRoot),
		providerRepo:  NewProviderRepository(cleanRoot),
		executionRepo: NewExecutionRepository(cleanRoot),
	}
}

func (fp *Persistence) Workflows() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) Tasks() persistence.TaskRepository {
	return fp.taskRepo
}

func (fp *Persistence) Providers() persistence.ProviderRepository {
	return fp.providerRepo
}

func (fp *Persistence) Executions() persistence.ExecutionRepository {
	return fp.executionRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

func writeJSON(dir, id string, record any) error {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", id, err)
	}

	err = os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write record %s: %w", id, err)
	}

	return nil
}

// readJSON loads one record; notFound is returned untouched when the file
// does not exist so callers keep their sentinel errors.
func readJSON(dir, id string, record any, notFound error) error {
	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if os.IsNotExist(err) {
		return notFound
	}

	if err != nil {
		return fmt.Errorf("failed to read record %s: %w", id, err)
	}

	err = json.Unmarshal(data, record)
	if err != nil {
		return fmt.Errorf("failed to unmarshal record %s: %w", id, err)
	}

	return nil
}

func removeJSON(dir, id string, notFound error) error {
	err := os.Remove(filepath.Join(dir, id+".json"))
	if os.IsNotExist(err) {
		return notFound
	}

	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}

	return nil
}

// listIDs returns the record IDs present in dir. A missing directory is an
// empty repository, not an error.
func listIDs(dir string) ([]string, error) {
	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list records in %s: %w", dir, err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, file := range jsonFiles {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}
