package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routinehq/routine/pkg/models"
)

func TestRender_SimpleExpression(t *testing.T) {
	data := map[string]any{
		"name":   "Alice",
		"age":    30,
		"active": true,
	}

	result, err := Render("{{ .name }}", data)
	require.NoError(t, err)
	assert.Equal(t, "Alice", result)

	// Booleans re-parse to bool.
	result, err = Render("{{ .active }}", data)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	// Numbers re-parse to float64.
	result, err = Render("{{ .age }}", data)
	require.NoError(t, err)
	assert.Equal(t, 30.0, result)
}

func TestRender_JSONOutput(t *testing.T) {
	result, err := Render(`{"subject": "{{ .subject }}", "count": {{ .count }}}`, map[string]any{
		"subject": "weekly digest",
		"count":   3,
	})
	require.NoError(t, err)

	parsed, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "weekly digest", parsed["subject"])
	assert.Equal(t, 3.0, parsed["count"])
}

func TestRender_MalformedJSONErrors(t *testing.T) {
	_, err := Render(`{"count": {{ .v }}}`, map[string]any{"v": "not json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse json")
}

func TestRender_ParseError(t *testing.T) {
	_, err := Render("{{ .unclosed", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse template")
}

func TestRenderWithContext(t *testing.T) {
	rctx := &models.RunContext{
		WorkflowID:  "wf-1",
		ExecutionID: "exec-1",
		TriggerData: map[string]any{"channel": "email"},
	}
	rctx.RecordOutput("fetch", map[string]any{
		"output": map[string]any{"count": 3},
	})

	result, err := RenderWithContext("{{ .steps.fetch.output.count }} items via {{ .trigger.channel }}", rctx)
	require.NoError(t, err)
	assert.Equal(t, "3 items via email", result)

	// The current alias follows the latest recorded output.
	result, err = RenderWithContext("{{ .current.output.count }}", rctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, result)

	result, err = RenderWithContext("{{ .execution.id }}", rctx)
	require.NoError(t, err)
	assert.Equal(t, "exec-1", result)
}

func TestRenderHelpers(t *testing.T) {
	result, err := Render("{{ now }}", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result)

	result, err = Render("{{ rand 10 }}", nil)
	require.NoError(t, err)

	num, ok := result.(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, num, 0.0)
	assert.Less(t, num, 10.0)
}
