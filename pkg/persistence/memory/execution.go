package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

// ExecutionRepository keeps run records in a mutex-guarded map.
type ExecutionRepository struct {
	mu         sync.RWMutex
	executions map[string]*models.Execution
}

func NewExecutionRepository() *ExecutionRepository {
	return &ExecutionRepository{executions: make(map[string]*models.Execution)}
}

func (r *ExecutionRepository) List(_ context.Context, opts persistence.ListExecutionsOptions) ([]*models.Execution, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	r.mu.RLock()

	filtered := make([]*models.Execution, 0, len(r.executions))

	for _, execution := range r.executions {
		if opts.UserID != "" && execution.UserID != opts.UserID {
			continue
		}

		if opts.WorkflowID != "" && execution.WorkflowID != opts.WorkflowID {
			continue
		}

		if opts.Status != nil && execution.Status != *opts.Status {
			continue
		}

		filtered = append(filtered, clone(execution))
	}

	r.mu.RUnlock()

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
	r.mu.RLock()
	defer r.mu.RUnlock()

	execution, ok := r.executions[id]
	if !ok {
		return nil, nil
	}

	return clone(execution), nil
}

func (r *ExecutionRepository) Save(_ context.Context, execution *models.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.executions[execution.ID] = clone(execution)

	return nil
}
