package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

// CheckpointRepository keeps checkpoint requests in a mutex-guarded map. The
// mutex doubles as the atomicity guard for Resolve.
type CheckpointRepository struct {
	mu          sync.RWMutex
	checkpoints map[string]*models.CheckpointRequest
}

func NewCheckpointRepository() *CheckpointRepository {
	return &CheckpointRepository{checkpoints: make(map[string]*models.CheckpointRequest)}
}

func (r *CheckpointRepository) ListPending(_ context.Context, userID string) ([]*models.CheckpointRequest, error) {
	r.mu.RLock()

	pending := make([]*models.CheckpointRequest, 0)

	for _, request := range r.checkpoints {
		if request.Status != models.CheckpointStatusPending {
			continue
		}

		if userID != "" && request.UserID != userID {
			continue
		}

		pending = append(pending, clone(request))
	}

	r.mu.RUnlock()

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.After(pending[j].CreatedAt)
	})

	return pending, nil
}

func (r *CheckpointRepository) GetByID(_ context.Context, id string) (*models.CheckpointRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	request, ok := r.checkpoints[id]
	if !ok {
		return nil, nil
	}

	return clone(request), nil
}

func (r *CheckpointRepository) Save(_ context.Context, request *models.CheckpointRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checkpoints[request.ID] = clone(request)

	return nil
}

// Resolve applies the resolution if and only if the request is still
// pending. The write lock spans check and mutation, so concurrent reviewers
// serialize and exactly one wins.
func (r *CheckpointRepository) Resolve(_ context.Context, id string, resolution persistence.CheckpointResolution) (*models.CheckpointRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.checkpoints[id]
	if !ok {
		return nil, persistence.NewStoreError("Resolve", "checkpoint", id, persistence.ErrCheckpointNotFound)
	}

	if request.Status != models.CheckpointStatusPending {
		return nil, persistence.NewStoreError("Resolve", "checkpoint", id, persistence.ErrCheckpointAlreadyResolved)
	}

	request.Status = resolution.Status
	request.Decision = resolution.Decision
	request.EditedAction = clone(resolution.EditedAction)
	request.RejectionReason = resolution.RejectionReason
	request.ResolvedBy = resolution.ResolvedBy
	resolvedAt := resolution.ResolvedAt.UTC()
	request.ResolvedAt = &resolvedAt

	return clone(request), nil
}
