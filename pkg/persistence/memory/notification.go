package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

// NotificationRepository keeps notifications in a mutex-guarded map.
type NotificationRepository struct {
	mu            sync.RWMutex
	notifications map[string]*models.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{notifications: make(map[string]*models.Notification)}
}

func (r *NotificationRepository) List(_ context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	r.mu.RLock()

	notifications := make([]*models.Notification, 0)

	for _, notification := range r.notifications {
		if userID != "" && notification.UserID != userID {
			continue
		}

		if unreadOnly && notification.Read {
			continue
		}

		notifications = append(notifications, clone(notification))
	}

	r.mu.RUnlock()

	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})

	return notifications, nil
}

func (r *NotificationRepository) GetByID(_ context.Context, id string) (*models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notification, ok := r.notifications[id]
	if !ok {
		return nil, nil
	}

	return clone(notification), nil
}

func (r *NotificationRepository) Save(_ context.Context, notification *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notifications[notification.ID] = clone(notification)

	return nil
}

func (r *NotificationRepository) MarkRead(_ context.Context, id string) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	notification, ok := r.notifications[id]
	if !ok {
		return nil, persistence.NewStoreError("MarkRead", "notification", id, persistence.ErrNotificationNotFound)
	}

	notification.Read = true

	return clone(notification), nil
}
