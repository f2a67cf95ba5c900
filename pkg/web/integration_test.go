package web_test

import (
	"net/http"
	"testing"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReviewJourney_Integration drives a workflow with a human checkpoint
// through the whole API surface: save, run, review, approve, inspect the
// resulting artifact and notifications.
func TestReviewJourney_Integration(t *testing.T) {
	t.Parallel()

	app, _, _ := setupTestApp(t)

	var (
		workflowID   string
		executionID  string
		checkpointID string
	)

	t.Run("save workflow", func(t *testing.T) {
		body := web.SaveWorkflowRequest{
			Name:        "Incident digest",
			Description: "Collects incidents and publishes a reviewed digest",
			Status:      models.WorkflowStatusReady,
			Trigger:     &models.TriggerSpec{Type: models.TriggerTypeManual, Enabled: true},
			Steps: []*models.Step{
				{ID: "collect", Title: "Collect incidents", Kind: models.StepKindTransform, InputTemplate: `{"topic": "{{ .trigger.topic }}", "sources": 3}`},
				{ID: "review", Title: "Review findings", Kind: models.StepKindCheckpoint, Description: "Summarize findings"},
				{ID: "summarize", Title: "Summarize findings", Kind: models.StepKindTransform, InputTemplate: `{"digest": "Digest of {{ .steps.collect.output.topic }}"}`},
				{ID: "publish", Title: "Publish digest", Kind: models.StepKindArtifact, InputTemplate: `{"digest": "{{ .steps.summarize.output.digest }}"}`},
			},
		}

		resp, err := app.Test(apiRequest(t, http.MethodPost, "/workflows", body))
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var workflow models.Workflow

		decodeBody(t, resp, &workflow)
		require.NotEmpty(t, workflow.ID)

		workflowID = workflow.ID
	})

	t.Run("run pauses at the checkpoint", func(t *testing.T) {
		resp, err := app.Test(apiRequest(t, http.MethodPost, "/workflows/"+workflowID+"/run", web.RunWorkflowRequest{
			TriggerData: map[string]any{"topic": "incidents"},
		}))
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var execution models.Execution

		decodeBody(t, resp, &execution)
		assert.Equal(t, models.ExecutionStatusCheckpointRequired, execution.Status)
		require.Len(t, execution.StepResults, 2)
		assert.Equal(t, "collect", execution.StepResults[0].StepID)
		assert.Equal(t, "review", execution.StepResults[1].StepID)

		executionID = execution.ID
	})

	t.Run("checkpoint is listed as pending", func(t *testing.T) {
		resp, err := app.Test(apiRequest(t, http.MethodGet, "/checkpoints", nil))
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Checkpoints []*models.CheckpointRequest `json:"checkpoints"`
		}

		decodeBody(t, resp, &result)
		require.Len(t, result.Checkpoints, 1)

		request := result.Checkpoints[0]
		assert.Equal(t, executionID, request.ExecutionID)
		assert.Equal(t, "review", request.StepID)
		require.NotNil(t, request.ProposedAction)
		assert.Equal(t, "Summarize findings", request.ProposedAction.Title)

		checkpointID = request.ID
	})

	t.Run("approval resumes and completes the run", func(t *testing.T) {
		resp, err := app.Test(apiRequest(t, http.MethodPost, "/checkpoints/"+checkpointID+"/resolve", web.ResolveCheckpointRequest{
			Decision: models.DecisionApprove,
		}))
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var execution models.Execution

		decodeBody(t, resp, &execution)
		assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
		require.Len(t, execution.StepResults, 4)
		assert.Contains(t, execution.StepResults[2].Summary, "Digest of incidents")
	})

	t.Run("artifact is stored", func(t *testing.T) {
		resp, err := app.Test(apiRequest(t, http.MethodGet, "/artifacts?execution_id="+executionID, nil))
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Artifacts []*models.Artifact `json:"artifacts"`
		}

		decodeBody(t, resp, &result)
		require.Len(t, result.Artifacts, 1)
		assert.Equal(t, "Publish digest", result.Artifacts[0].Name)
		assert.Contains(t, string(result.Artifacts[0].Content), "Digest of incidents")
	})

	t.Run("notifications cover the review", func(t *testing.T) {
		resp, err := app.Test(apiRequest(t, http.MethodGet, "/notifications", nil))
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Notifications []*models.Notification `json:"notifications"`
		}

		decodeBody(t, resp, &result)

		kinds := make([]models.NotificationKind, 0, len(result.Notifications))
		for _, notification := range result.Notifications {
			kinds = append(kinds, notification.Kind)
		}

		assert.Contains(t, kinds, models.NotificationCheckpointPending)
		assert.Contains(t, kinds, models.NotificationRunCompleted)
	})

	t.Run("second resolution conflicts", func(t *testing.T) {
		resp, err := app.Test(apiRequest(t, http.MethodPost, "/checkpoints/"+checkpointID+"/resolve", web.ResolveCheckpointRequest{
			Decision:        models.DecisionReject,
			RejectionReason: "already handled",
		}))
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("cancel archives the workflow", func(t *testing.T) {
		resp, err := app.Test(apiRequest(t, http.MethodPost, "/workflows/"+workflowID+"/cancel", nil))
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var workflow models.Workflow

		decodeBody(t, resp, &workflow)
		assert.Equal(t, models.WorkflowStatusArchived, workflow.Status)
		require.NotNil(t, workflow.ArchivedAt)

		rerun, err := app.Test(apiRequest(t, http.MethodPost, "/workflows/"+workflowID+"/run", nil))
		require.NoError(t, err)

		defer func() { _ = rerun.Body.Close() }()

		assert.Equal(t, http.StatusConflict, rerun.StatusCode)
	})
}

// TestApprovalJourney_Integration covers the connector-driven approval pause,
// which suspends the run without creating a checkpoint request.
func TestApprovalJourney_Integration(t *testing.T) {
	t.Parallel()

	app, _, _ := setupTestApp(t)

	var workflowID string

	t.Run("save workflow", func(t *testing.T) {
		body := web.SaveWorkflowRequest{
			Name:   "Large refund",
			Status: models.WorkflowStatusReady,
			Steps: []*models.Step{
				{ID: "refund", Title: "Issue refund", Kind: models.StepKindConnectorAction, ActionID: "test.approve", InputTemplate: `{"amount": 900}`},
			},
		}

		resp, err := app.Test(apiRequest(t, http.MethodPost, "/workflows", body))
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var workflow models.Workflow

		decodeBody(t, resp, &workflow)
		workflowID = workflow.ID
	})

	t.Run("run pauses for approval", func(t *testing.T) {
		resp, err := app.Test(apiRequest(t, http.MethodPost, "/workflows/"+workflowID+"/run", nil))
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var execution models.Execution

		decodeBody(t, resp, &execution)
		assert.Equal(t, models.ExecutionStatusApprovalRequired, execution.Status)
		assert.Nil(t, execution.FinishedAt)
	})

	t.Run("approvals endpoint lists the paused run", func(t *testing.T) {
		resp, err := app.Test(apiRequest(t, http.MethodGet, "/approvals", nil))
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Approvals []*models.Execution `json:"approvals"`
		}

		decodeBody(t, resp, &result)
		require.Len(t, result.Approvals, 1)
		assert.Equal(t, workflowID, result.Approvals[0].WorkflowID)
	})
}
