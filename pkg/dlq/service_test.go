package dlq_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/routinehq/routine/pkg/dlq"
	"github.com/routinehq/routine/pkg/eventbus"
	"github.com/routinehq/routine/pkg/events"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
	"github.com/routinehq/routine/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	published []eventbus.Event
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

func newService() (*dlq.Service, *memory.Persistence, *capturePublisher) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := memory.NewPersistence()
	publisher := &capturePublisher{}

	service := dlq.NewService(store.DeadLetterRepository(), store.NotificationRepository(), publisher, logger)

	return service, store, publisher
}

func pushParams() dlq.PushParams {
	return dlq.PushParams{
		UserID:       "user-1",
		WorkflowID:   "wf-1",
		WorkflowName: "Ticket triage",
		ExecutionID:  "exec-1",
		Reason:       "connector failed: server returned status 502",
		Attempts:     3,
	}
}

func TestService_PushRecordsEntryAndNotifies(t *testing.T) {
	t.Parallel()

	service, store, publisher := newService()

	entry, err := service.Push(context.Background(), pushParams())
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, models.DeadLetterStatusPending, entry.Status)
	assert.Equal(t, 3, entry.Attempts)

	notifications, err := store.NotificationRepository().List(context.Background(), "user-1", false)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationDeadLetter, notifications[0].Kind)
	assert.Contains(t, notifications[0].Title, "Ticket triage")
	assert.Contains(t, notifications[0].Title, "3 attempts")

	require.Len(t, publisher.published, 1)
	event, ok := publisher.published[0].(*events.DeadLetterCreated)
	require.True(t, ok)
	assert.Equal(t, entry.ID, event.DeadLetterID)
	assert.Equal(t, events.DeadLetterCreatedEvent, event.GetType())
}

func TestService_PushWithoutEventBus(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := memory.NewPersistence()
	service := dlq.NewService(store.DeadLetterRepository(), store.NotificationRepository(), nil, logger)

	_, err := service.Push(context.Background(), pushParams())
	require.NoError(t, err)
}

func TestService_MarkResolvedIsSingleUse(t *testing.T) {
	t.Parallel()

	service, _, _ := newService()

	entry, err := service.Push(context.Background(), pushParams())
	require.NoError(t, err)

	resolved, err := service.MarkResolved(context.Background(), entry.ID, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeadLetterStatusResolved, resolved.Status)
	assert.Equal(t, "operator-1", resolved.ResolvedBy)
	assert.NotNil(t, resolved.ResolvedAt)

	_, err = service.MarkResolved(context.Background(), entry.ID, "operator-2")
	require.ErrorIs(t, err, persistence.ErrDeadLetterAlreadyResolved)

	_, err = service.MarkResolved(context.Background(), "dlq-missing", "operator-1")
	require.ErrorIs(t, err, persistence.ErrDeadLetterNotFound)
}

func TestService_ListFiltersByStatus(t *testing.T) {
	t.Parallel()

	service, _, _ := newService()

	first, err := service.Push(context.Background(), pushParams())
	require.NoError(t, err)

	second, err := service.Push(context.Background(), pushParams())
	require.NoError(t, err)

	_, err = service.MarkResolved(context.Background(), first.ID, "operator-1")
	require.NoError(t, err)

	pending := models.DeadLetterStatusPending

	entries, err := service.List(context.Background(), "user-1", &pending)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, second.ID, entries[0].ID)

	all, err := service.List(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
