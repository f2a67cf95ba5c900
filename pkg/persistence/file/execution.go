package file

import (
	"context"
	"sort"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

// ExecutionRepository stores run records as JSON documents.
type ExecutionRepository struct {
	c *collection
}

func (r *ExecutionRepository) List(_ context.Context, opts persistence.ListExecutionsOptions) ([]*models.Execution, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	r.c.mu.RLock()
	all, err := loadAll[models.Execution](r.c)
	r.c.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Execution, 0, len(all))

	for _, execution := range all {
		if opts.UserID != "" && execution.UserID != opts.UserID {
			continue
		}

		if opts.WorkflowID != "" && execution.WorkflowID != opts.WorkflowID {
			continue
		}

		if opts.Status != nil && execution.Status != *opts.Status {
			continue
		}

		filtered = append(filtered, execution)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].StartedAt.After(filtered[j].StartedAt)
	})

	startIdx := opts.Offset
	if startIdx >= len(filtered) {
		return []*models.Execution{}, nil
	}

	endIdx := min(startIdx+opts.Limit, len(filtered))

	return filtered[startIdx:endIdx], nil
}

func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	var execution models.Execution

	found, err := r.c.read(id, &execution)
	if err != nil || !found {
		return nil, err
	}

	return &execution, nil
}

func (r *ExecutionRepository) Save(_ context.Context, execution *models.Execution) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	return r.c.write(execution.ID, execution)
}
