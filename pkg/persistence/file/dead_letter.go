package file

import (
	"context"
	"sort"
	"time"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

// DeadLetterRepository stores dead letters as JSON documents.
type DeadLetterRepository struct {
	c *collection
}

func (r *DeadLetterRepository) List(_ context.Context, userID string, status *models.DeadLetterStatus) ([]*models.DeadLetterEntry, error) {
	r.c.mu.RLock()
	all, err := loadAll[models.DeadLetterEntry](r.c)
	r.c.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	entries := make([]*models.DeadLetterEntry, 0, len(all))

	for _, entry := range all {
		if userID != "" && entry.UserID != userID {
			continue
		}

		if status != nil && entry.Status != *status {
			continue
		}

		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	return entries, nil
}

func (r *DeadLetterRepository) GetByID(_ context.Context, id string) (*models.DeadLetterEntry, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	return r.getLocked(id)
}

func (r *DeadLetterRepository) getLocked(id string) (*models.DeadLetterEntry, error) {
	var entry models.DeadLetterEntry

	found, err := r.c.read(id, &entry)
	if err != nil || !found {
		return nil, err
	}

	return &entry, nil
}

func (r *DeadLetterRepository) Save(_ context.Context, entry *models.DeadLetterEntry) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	return r.c.write(entry.ID, entry)
}

func (r *DeadLetterRepository) MarkResolved(_ context.Context, id, resolvedBy string, at time.Time) (*models.DeadLetterEntry, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	entry, err := r.getLocked(id)
	if err != nil {
		return nil, err
	}

	if entry == nil {
		return nil, persistence.NewStoreError("MarkResolved", "dead letter", id, persistence.ErrDeadLetterNotFound)
	}

	if entry.Status != models.DeadLetterStatusPending {
		return nil, persistence.NewStoreError("MarkResolved", "dead letter", id, persistence.ErrDeadLetterAlreadyResolved)
	}

	entry.Status = models.DeadLetterStatusResolved
	entry.ResolvedBy = resolvedBy
	resolvedAt := at.UTC()
	entry.ResolvedAt = &resolvedAt

	if err := r.c.write(id, entry); err != nil {
		return nil, err
	}

	return entry, nil
}
