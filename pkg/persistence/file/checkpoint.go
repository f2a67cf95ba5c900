package file

import (
	"context"
	"sort"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

// CheckpointRepository stores checkpoint requests as JSON documents. The
// collection mutex makes Resolve a serialized read-modify-write.
type CheckpointRepository struct {
	c *collection
}

func (r *CheckpointRepository) ListPending(_ context.Context, userID string) ([]*models.CheckpointRequest, error) {
	r.c.mu.RLock()
	all, err := loadAll[models.CheckpointRequest](r.c)
	r.c.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	pending := make([]*models.CheckpointRequest, 0, len(all))

	for _, request := range all {
		if request.Status != models.CheckpointStatusPending {
			continue
		}

		if userID != "" && request.UserID != userID {
			continue
		}

		pending = append(pending, request)
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.After(pending[j].CreatedAt)
	})

	return pending, nil
}

func (r *CheckpointRepository) GetByID(_ context.Context, id string) (*models.CheckpointRequest, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	return r.getLocked(id)
}

func (r *CheckpointRepository) getLocked(id string) (*models.CheckpointRequest, error) {
	var request models.CheckpointRequest

	found, err := r.c.read(id, &request)
	if err != nil || !found {
		return nil, err
	}

	return &request, nil
}

func (r *CheckpointRepository) Save(_ context.Context, request *models.CheckpointRequest) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	return r.c.write(request.ID, request)
}

func (r *CheckpointRepository) Resolve(_ context.Context, id string, resolution persistence.CheckpointResolution) (*models.CheckpointRequest, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	request, err := r.getLocked(id)
	if err != nil {
		return nil, err
	}

	if request == nil {
		return nil, persistence.NewStoreError("Resolve", "checkpoint", id, persistence.ErrCheckpointNotFound)
	}

	if request.Status != models.CheckpointStatusPending {
		return nil, persistence.NewStoreError("Resolve", "checkpoint", id, persistence.ErrCheckpointAlreadyResolved)
	}

	request.Status = resolution.Status
	request.Decision = resolution.Decision
	request.EditedAction = resolution.EditedAction
	request.RejectionReason = resolution.RejectionReason
	request.ResolvedBy = resolution.ResolvedBy
	resolvedAt := resolution.ResolvedAt.UTC()
	request.ResolvedAt = &resolvedAt

	if err := r.c.write(id, request); err != nil {
		return nil, err
	}

	return request, nil
}
