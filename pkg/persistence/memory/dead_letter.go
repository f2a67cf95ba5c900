package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

// DeadLetterRepository keeps dead letters in a mutex-guarded map.
type DeadLetterRepository struct {
	mu      sync.RWMutex
	entries map[string]*models.DeadLetterEntry
}

func NewDeadLetterRepository() *DeadLetterRepository {
	return &DeadLetterRepository{entries: make(map[string]*models.DeadLetterEntry)}
}

func (r *DeadLetterRepository) List(_ context.Context, userID string, status *models.DeadLetterStatus) ([]*models.DeadLetterEntry, error) {
	r.mu.RLock()

	entries := make([]*models.DeadLetterEntry, 0)

	for _, entry := range r.entries {
		if userID != "" && entry.UserID != userID {
			continue
		}

		if status != nil && entry.Status != *status {
			continue
		}

		entries = append(entries, clone(entry))
	}

	r.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	return entries, nil
}

func (r *DeadLetterRepository) GetByID(_ context.Context, id string) (*models.DeadLetterEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, nil
	}

	return clone(entry), nil
}

func (r *DeadLetterRepository) Save(_ context.Context, entry *models.DeadLetterEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[entry.ID] = clone(entry)

	return nil
}

// MarkResolved acknowledges an entry exactly once. It never re-runs the
// workflow; resubmission is a separate, explicit run.
func (r *DeadLetterRepository) MarkResolved(_ context.Context, id, resolvedBy string, at time.Time) (*models.DeadLetterEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, persistence.NewStoreError("MarkResolved", "dead letter", id, persistence.ErrDeadLetterNotFound)
	}

	if entry.Status != models.DeadLetterStatusPending {
		return nil, persistence.NewStoreError("MarkResolved", "dead letter", id, persistence.ErrDeadLetterAlreadyResolved)
	}

	entry.Status = models.DeadLetterStatusResolved
	entry.ResolvedBy = resolvedBy
	resolvedAt := at.UTC()
	entry.ResolvedAt = &resolvedAt

	return clone(entry), nil
}
