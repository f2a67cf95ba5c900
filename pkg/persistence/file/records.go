package file

import (
	"context"
	"sort"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

// ChangeLogRepository stores the append-only change history as JSON
// documents.
type ChangeLogRepository struct {
	c *collection
}

func (r *ChangeLogRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.ChangeEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	r.c.mu.RLock()
	all, err := loadAll[models.ChangeEntry](r.c)
	r.c.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	entries := make([]*models.ChangeEntry, 0, len(all))

	for _, entry := range all {
		if entry.WorkflowID == workflowID {
			entries = append(entries, entry)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

func (r *ChangeLogRepository) GetByID(_ context.Context, id string) (*models.ChangeEntry, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	var entry models.ChangeEntry

	found, err := r.c.read(id, &entry)
	if err != nil || !found {
		return nil, err
	}

	return &entry, nil
}

func (r *ChangeLogRepository) Append(_ context.Context, entry *models.ChangeEntry) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	return r.c.write(entry.ID, entry)
}

// NotificationRepository stores notifications as JSON documents.
type NotificationRepository struct {
	c *collection
}

func (r *NotificationRepository) List(_ context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	r.c.mu.RLock()
	all, err := loadAll[models.Notification](r.c)
	r.c.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	notifications := make([]*models.Notification, 0, len(all))

	for _, notification := range all {
		if userID != "" && notification.UserID != userID {
			continue
		}

		if unreadOnly && notification.Read {
			continue
		}

		notifications = append(notifications, notification)
	}

	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})

	return notifications, nil
}

func (r *NotificationRepository) GetByID(_ context.Context, id string) (*models.Notification, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	return r.getLocked(id)
}

func (r *NotificationRepository) getLocked(id string) (*models.Notification, error) {
	var notification models.Notification

	found, err := r.c.read(id, &notification)
	if err != nil || !found {
		return nil, err
	}

	return &notification, nil
}

func (r *NotificationRepository) Save(_ context.Context, notification *models.Notification) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	return r.c.write(notification.ID, notification)
}

func (r *NotificationRepository) MarkRead(_ context.Context, id string) (*models.Notification, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	notification, err := r.getLocked(id)
	if err != nil {
		return nil, err
	}

	if notification == nil {
		return nil, persistence.NewStoreError("MarkRead", "notification", id, persistence.ErrNotificationNotFound)
	}

	notification.Read = true

	if err := r.c.write(id, notification); err != nil {
		return nil, err
	}

	return notification, nil
}

// ArtifactRepository stores artifacts as JSON documents.
type ArtifactRepository struct {
	c *collection
}

func (r *ArtifactRepository) List(_ context.Context, userID, executionID string) ([]*models.Artifact, error) {
	r.c.mu.RLock()
	all, err := loadAll[models.Artifact](r.c)
	r.c.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	artifacts := make([]*models.Artifact, 0, len(all))

	for _, artifact := range all {
		if userID != "" && artifact.UserID != userID {
			continue
		}

		if executionID != "" && artifact.ExecutionID != executionID {
			continue
		}

		artifacts = append(artifacts, artifact)
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})

	return artifacts, nil
}

func (r *ArtifactRepository) GetByID(_ context.Context, id string) (*models.Artifact, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	var artifact models.Artifact

	found, err := r.c.read(id, &artifact)
	if err != nil || !found {
		return nil, err
	}

	return &artifact, nil
}

func (r *ArtifactRepository) Save(_ context.Context, artifact *models.Artifact) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	return r.c.write(artifact.ID, artifact)
}
