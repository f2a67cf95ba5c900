// Package file provides file-based persistence, one JSON document per
// entity, for development setups without a database.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/routinehq/routine/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root             string
	workflowRepo     *WorkflowRepository
	executionRepo    *ExecutionRepository
	checkpointRepo   *CheckpointRepository
	deadLetterRepo   *DeadLetterRepository
	changeLogRepo    *ChangeLogRepository
	notificationRepo *NotificationRepository
	artifactRepo     *ArtifactRepository
}

// NewPersistence creates a file store rooted at the given directory. A
// leading file:// scheme is accepted and stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	_ = os.MkdirAll(cleanRoot, 0750)

	return &Persistence{
		root:             cleanRoot,
		workflowRepo:     &WorkflowRepository{c: newCollection(cleanRoot, "workflows")},
		executionRepo:    &ExecutionRepository{c: newCollection(cleanRoot, "executions")},
		checkpointRepo:   &CheckpointRepository{c: newCollection(cleanRoot, "checkpoints")},
		deadLetterRepo:   &DeadLetterRepository{c: newCollection(cleanRoot, "dead_letters")},
		changeLogRepo:    &ChangeLogRepository{c: newCollection(cleanRoot, "change_entries")},
		notificationRepo: &NotificationRepository{c: newCollection(cleanRoot, "notifications")},
		artifactRepo:     &ArtifactRepository{c: newCollection(cleanRoot, "artifacts")},
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) CheckpointRepository() persistence.CheckpointRepository {
	return p.checkpointRepo
}

func (p *Persistence) DeadLetterRepository() persistence.DeadLetterRepository {
	return p.deadLetterRepo
}

func (p *Persistence) ChangeLogRepository() persistence.ChangeLogRepository {
	return p.changeLogRepo
}

func (p *Persistence) NotificationRepository() persistence.NotificationRepository {
	return p.notificationRepo
}

func (p *Persistence) ArtifactRepository() persistence.ArtifactRepository {
	return p.artifactRepo
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file persistence there is
// nothing to clean up.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// collection is one directory of JSON documents. Its mutex serializes
// read-modify-write operations such as checkpoint resolution.
type collection struct {
	dir string
	mu  sync.RWMutex
}

func newCollection(root, name string) *collection {
	return &collection{dir: path.Join(root, name)}
}

func (c *collection) write(id string, value any) error {
	if err := os.MkdirAll(c.dir, 0750); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", c.dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	return os.WriteFile(path.Join(c.dir, id+".json"), data, 0600)
}

// read loads one document into value, reporting false when it is absent.
func (c *collection) read(id string, value any) (bool, error) {
	filePath := filepath.Clean(path.Join(c.dir, id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s: %w", id, err)
	}

	if err := json.Unmarshal(body, value); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", id, err)
	}

	return true, nil
}

func (c *collection) ids() ([]string, error) {
	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(c.dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.dir, err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, file := range jsonFiles {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}

func (c *collection) remove(id string) error {
	err := os.Remove(path.Join(c.dir, id+".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}

	return nil
}

// loadAll reads every document in the collection.
func loadAll[T any](c *collection) ([]*T, error) {
	ids, err := c.ids()
	if err != nil {
		return nil, err
	}

	values := make([]*T, 0, len(ids))

	for _, id := range ids {
		value := new(T)

		found, err := c.read(id, value)
		if err != nil {
			return nil, err
		}

		if found {
			values = append(values, value)
		}
	}

	return values, nil
}
