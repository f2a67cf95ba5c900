// Package template renders step input templates against the accumulated run
// context.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/routinehq/routine/pkg/models"
)

// RenderWithContext renders input with the run context exposed as template
// data: step outputs by id under .steps, the latest output under .current,
// trigger data under .trigger.
func RenderWithContext(input string, rctx *models.RunContext) (any, error) {
	data := map[string]any{
		"steps":   rctx.StepOutputs,
		"current": rctx.Current,
		"trigger": rctx.TriggerData,
		"env":     envVars(),
		"execution": map[string]any{
			"id":          rctx.ExecutionID,
			"workflow_id": rctx.WorkflowID,
		},
	}

	return Render(input, data)
}

// Render executes a text/template over data. Results that look like JSON,
// numbers or booleans are re-parsed so templates can produce structured step
// input, not just strings.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("input").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}

				num := make([]byte, 1)
				if _, err := rand.Read(num); err != nil {
					return 0
				}

				return int(num[0]) % max
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		if err := json.Unmarshal([]byte(result), &jsonResult); err != nil {
			return nil, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
		}

		return jsonResult, nil
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

func envVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	return envMap
}
