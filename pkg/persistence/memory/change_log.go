package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/routinehq/routine/pkg/models"
)

// ChangeLogRepository keeps the append-only change history in memory.
type ChangeLogRepository struct {
	mu      sync.RWMutex
	entries map[string]*models.ChangeEntry
}

func NewChangeLogRepository() *ChangeLogRepository {
	return &ChangeLogRepository{entries: make(map[string]*models.ChangeEntry)}
}

func (r *ChangeLogRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.ChangeEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	r.mu.RLock()

	entries := make([]*models.ChangeEntry, 0)

	for _, entry := range r.entries {
		if entry.WorkflowID == workflowID {
			entries = append(entries, clone(entry))
		}
	}

	r.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

func (r *ChangeLogRepository) GetByID(_ context.Context, id string) (*models.ChangeEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, nil
	}

	return clone(entry), nil
}

func (r *ChangeLogRepository) Append(_ context.Context, entry *models.ChangeEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[entry.ID] = clone(entry)

	return nil
}
