package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
	"github.com/routinehq/routine/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	tables := []string{
		"workflow_branches", "workflow_steps", "workflows",
		"executions", "checkpoints", "dead_letters",
		"change_entries", "notifications", "artifacts",
		"schema_migrations",
	}
	for _, table := range tables {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("routine_test"),
			postgres.WithUsername("routine"),
			postgres.WithPassword("routine"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = store.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return store, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	for _, table := range []string{"workflows", "workflow_steps", "workflow_branches", "executions", "checkpoints", "dead_letters", "notifications", "artifacts"} {
		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	err := store.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestWorkflowRepository_SaveAndRetrieve(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	workflow := &models.Workflow{
		ID:          "wf-pg-1",
		UserID:      "user-1",
		Name:        "Inbox triage",
		Description: "Label and forward urgent mail",
		Status:      models.WorkflowStatusReady,
		Trigger: &models.TriggerSpec{
			Type:    models.TriggerTypeSchedule,
			Enabled: true,
			Cron:    "0 9 * * *",
		},
		Steps: []*models.Step{
			{ID: "collect", Title: "Collect messages", Kind: models.StepKindTransform},
			{ID: "triage", Title: "Classify severity", Kind: models.StepKindTransform},
			{ID: "notify", Title: "Notify channel", Kind: models.StepKindConnectorAction, ActionID: "slack.post"},
		},
		PlanGraph: &models.PlanGraph{
			EntryStepID: "collect",
			Branches: []*models.Branch{
				{
					ID:         "br-1",
					FromStepID: "triage",
					ToStepID:   "notify",
					Label:      "urgent",
					Priority:   0,
					Condition: &models.Condition{
						SourcePath: "triage.severity",
						Operator:   models.OperatorStringEquals,
						Value:      "high",
					},
				},
			},
		},
	}

	require.NoError(t, store.WorkflowRepository().Save(ctx, workflow))

	loaded, err := store.WorkflowRepository().GetByID(ctx, "wf-pg-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, "Inbox triage", loaded.Name)
	assert.Equal(t, models.WorkflowStatusReady, loaded.Status)
	require.NotNil(t, loaded.Trigger)
	assert.Equal(t, "0 9 * * *", loaded.Trigger.Cron)

	require.Len(t, loaded.Steps, 3)
	assert.Equal(t, "collect", loaded.Steps[0].ID)
	assert.Equal(t, "triage", loaded.Steps[1].ID)
	assert.Equal(t, "notify", loaded.Steps[2].ID)

	require.NotNil(t, loaded.PlanGraph)
	assert.Equal(t, "collect", loaded.PlanGraph.EntryStepID)
	require.Len(t, loaded.PlanGraph.Branches, 1)
	require.NotNil(t, loaded.PlanGraph.Branches[0].Condition)
	assert.Equal(t, models.OperatorStringEquals, loaded.PlanGraph.Branches[0].Condition.Operator)

	missing, err := store.WorkflowRepository().GetByID(ctx, "wf-missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWorkflowRepository_ListFiltersAndPaginates(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	for _, workflow := range []*models.Workflow{
		{ID: "wf-a", UserID: "user-1", Name: "Workflow A", Status: models.WorkflowStatusReady},
		{ID: "wf-b", UserID: "user-1", Name: "Workflow B", Status: models.WorkflowStatusDraft},
		{ID: "wf-c", UserID: "user-2", Name: "Workflow C", Status: models.WorkflowStatusReady},
	} {
		require.NoError(t, store.WorkflowRepository().Save(ctx, workflow))
	}

	result, err := store.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.TotalCount)
	assert.Len(t, result.Workflows, 2)
	assert.False(t, result.HasNextPage)

	ready := models.WorkflowStatusReady
	result, err = store.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{Status: &ready})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.TotalCount)

	result, err = store.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{Limit: 2, SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, result.Workflows, 2)
	assert.Equal(t, "Workflow A", result.Workflows[0].Name)
	assert.True(t, result.HasNextPage)

	_, err = store.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{SortBy: "name; DROP TABLE workflows"})
	require.Error(t, err)
}

func TestExecutionRepository_RoundTrip(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	started := time.Now().UTC().Truncate(time.Millisecond)
	execution := &models.Execution{
		ID:          "exec-pg-1",
		WorkflowID:  "wf-pg-1",
		UserID:      "user-1",
		TriggerType: models.TriggerTypeManual,
		Status:      models.ExecutionStatusRunning,
		StartedAt:   started,
		Context: &models.RunContext{
			WorkflowID:  "wf-pg-1",
			ExecutionID: "exec-pg-1",
			StepOutputs: map[string]any{
				"collect": map[string]any{"output": map[string]any{"count": float64(3)}},
			},
		},
	}
	execution.AppendResult(models.StepResult{
		StepID: "collect",
		Title:  "Collect messages",
		Status: models.StepResultStatusSucceeded,
	})

	require.NoError(t, store.ExecutionRepository().Save(ctx, execution))

	execution.Finalize(models.ExecutionStatusCompleted, started.Add(2*time.Second))
	require.NoError(t, store.ExecutionRepository().Save(ctx, execution))

	loaded, err := store.ExecutionRepository().GetByID(ctx, "exec-pg-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	require.Len(t, loaded.StepResults, 1)
	assert.Equal(t, "collect", loaded.StepResults[0].StepID)
	require.NotNil(t, loaded.Context)
	assert.Contains(t, loaded.Context.StepOutputs, "collect")
	require.NotNil(t, loaded.FinishedAt)
	assert.Equal(t, int64(2000), loaded.DurationMs)

	listed, err := store.ExecutionRepository().List(ctx, persistence.ListExecutionsOptions{WorkflowID: "wf-pg-1"})
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestCheckpointRepository_ResolveIsSingleUse(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	request := &models.CheckpointRequest{
		ID:          "chk-pg-1",
		UserID:      "user-1",
		WorkflowID:  "wf-pg-1",
		ExecutionID: "exec-pg-1",
		StepID:      "review",
		RiskLevel:   models.RiskLevelHigh,
		ProposedAction: &models.ProposedAction{
			Title:    "Post summary to #ops",
			ActionID: "slack.post",
		},
		Status:    models.CheckpointStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CheckpointRepository().Save(ctx, request))

	pending, err := store.CheckpointRepository().ListPending(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	resolved, err := store.CheckpointRepository().Resolve(ctx, "chk-pg-1", persistence.CheckpointResolution{
		Status:     models.CheckpointStatusApproved,
		Decision:   models.DecisionApprove,
		ResolvedBy: "user-1",
		ResolvedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.CheckpointStatusApproved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = store.CheckpointRepository().Resolve(ctx, "chk-pg-1", persistence.CheckpointResolution{
		Status:     models.CheckpointStatusRejected,
		Decision:   models.DecisionReject,
		ResolvedBy: "user-2",
		ResolvedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, persistence.ErrCheckpointAlreadyResolved)

	_, err = store.CheckpointRepository().Resolve(ctx, "chk-missing", persistence.CheckpointResolution{
		Status:     models.CheckpointStatusApproved,
		Decision:   models.DecisionApprove,
		ResolvedBy: "user-1",
		ResolvedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, persistence.ErrCheckpointNotFound)

	pending, err = store.CheckpointRepository().ListPending(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeadLetterRepository_MarkResolved(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	entry := &models.DeadLetterEntry{
		ID:          "dlq-pg-1",
		UserID:      "user-1",
		WorkflowID:  "wf-pg-1",
		ExecutionID: "exec-pg-9",
		Status:      models.DeadLetterStatusPending,
		Reason:      "connector unavailable",
		Attempts:    3,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.DeadLetterRepository().Save(ctx, entry))

	resolved, err := store.DeadLetterRepository().MarkResolved(ctx, "dlq-pg-1", "user-1", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, models.DeadLetterStatusResolved, resolved.Status)
	assert.Equal(t, "user-1", resolved.ResolvedBy)

	_, err = store.DeadLetterRepository().MarkResolved(ctx, "dlq-pg-1", "user-2", time.Now().UTC())
	require.ErrorIs(t, err, persistence.ErrDeadLetterAlreadyResolved)

	pendingStatus := models.DeadLetterStatusPending
	pending, err := store.DeadLetterRepository().List(ctx, "user-1", &pendingStatus)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestChangeLogRepository_AppendAndList(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	base := time.Now().UTC().Add(-time.Minute)
	for i, changeType := range []models.ChangeType{models.ChangeTypeCreated, models.ChangeTypeUpdated} {
		entry := &models.ChangeEntry{
			ID:         "chg-pg-" + string(rune('a'+i)),
			WorkflowID: "wf-pg-1",
			UserID:     "user-1",
			ChangeType: changeType,
			Snapshot:   &models.WorkflowSnapshot{Name: "Inbox triage"},
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.ChangeLogRepository().Append(ctx, entry))
	}

	entries, err := store.ChangeLogRepository().ListByWorkflow(ctx, "wf-pg-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ChangeTypeUpdated, entries[0].ChangeType)
	require.NotNil(t, entries[0].Snapshot)
	assert.Equal(t, "Inbox triage", entries[0].Snapshot.Name)
}

func TestNotificationRepository_MarkRead(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	notification := &models.Notification{
		ID:        "ntf-pg-1",
		UserID:    "user-1",
		Kind:      models.NotificationRunCompleted,
		Title:     "Inbox triage finished",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.NotificationRepository().Save(ctx, notification))

	unread, err := store.NotificationRepository().List(ctx, "user-1", true)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	marked, err := store.NotificationRepository().MarkRead(ctx, "ntf-pg-1")
	require.NoError(t, err)
	assert.True(t, marked.Read)

	unread, err = store.NotificationRepository().List(ctx, "user-1", true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	_, err = store.NotificationRepository().MarkRead(ctx, "ntf-missing")
	require.ErrorIs(t, err, persistence.ErrNotificationNotFound)
}

func TestArtifactRepository_RoundTrip(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	artifact := &models.Artifact{
		ID:          "art-pg-1",
		UserID:      "user-1",
		WorkflowID:  "wf-pg-1",
		ExecutionID: "exec-pg-1",
		StepID:      "publish",
		Name:        "daily-digest.md",
		ContentType: "text/markdown",
		Content:     []byte("# Digest\n\n3 urgent messages"),
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.ArtifactRepository().Save(ctx, artifact))

	loaded, err := store.ArtifactRepository().GetByID(ctx, "art-pg-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, []byte("# Digest\n\n3 urgent messages"), loaded.Content)

	listed, err := store.ArtifactRepository().List(ctx, "user-1", "exec-pg-1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
