package builtin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/routinehq/routine/pkg/connector"
	"github.com/routinehq/routine/pkg/template"
)

// ActionTransform is the id of the data transform action.
const ActionTransform = "data.transform"

// Transform returns the data.transform action. It renders a template
// expression over the input data and returns the result.
func Transform(logger *slog.Logger) (*connector.Action, connector.HandlerFunc) {
	action := &connector.Action{
		ID:          ActionTransform,
		Name:        "Transform",
		Description: "Renders a template expression over the input data.",
		PayloadSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "Template expression applied to the input.",
					"examples": []string{
						"{{ .name }}",
						"{{ len .items }}",
					},
				},
				"input": map[string]any{
					"description": "Input data for the expression. Defaults to the whole payload.",
				},
			},
			"required": []string{"expression"},
		},
	}

	handler := func(ctx context.Context, payload map[string]any, _ string) (*connector.Result, error) {
		expression, _ := payload["expression"].(string)

		input, exists := payload["input"]
		if !exists {
			input = payload
		}

		rendered, err := template.Render(expression, input)
		if err != nil {
			return &connector.Result{
				OK:           false,
				Summary:      "transform failed",
				ErrorMessage: fmt.Sprintf("transformation failed: %v", err),
			}, nil
		}

		logger.DebugContext(ctx, "Transform applied", "action", ActionTransform)

		return &connector.Result{
			OK:      true,
			Summary: "transform applied",
			Data:    map[string]any{"result": rendered},
		}, nil
	}

	return action, handler
}
