package builtin

import (
	"context"
	"log/slog"

	"github.com/routinehq/routine/pkg/connector"
)

// ActionLogMessage is the id of the log message action.
const ActionLogMessage = "log.message"

// LogMessage returns the log.message action. It writes a message to the
// service log, useful for smoke testing plans.
func LogMessage(logger *slog.Logger) (*connector.Action, connector.HandlerFunc) {
	action := &connector.Action{
		ID:          ActionLogMessage,
		Name:        "Log Message",
		Description: "Writes a message to the service log.",
		PayloadSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{
					"type":        "string",
					"description": "Message to log.",
				},
				"level": map[string]any{
					"type":        "string",
					"description": "Log level: debug, info, warn or error. Defaults to info.",
				},
			},
			"required": []string{"message"},
		},
	}

	handler := func(ctx context.Context, payload map[string]any, userID string) (*connector.Result, error) {
		message, _ := payload["message"].(string)

		level, _ := payload["level"].(string)
		if level == "" {
			level = "info"
		}

		entry := logger.With("action", ActionLogMessage, "user_id", userID)

		switch level {
		case "debug":
			entry.DebugContext(ctx, message)
		case "warn":
			entry.WarnContext(ctx, message)
		case "error":
			entry.ErrorContext(ctx, message)
		default:
			entry.InfoContext(ctx, message)
		}

		return &connector.Result{
			OK:      true,
			Summary: message,
			Data:    map[string]any{"message": message, "level": level},
		}, nil
	}

	return action, handler
}
