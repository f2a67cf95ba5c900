// Package builtin provides the connector actions shipped with the engine.
package builtin

import (
	"log/slog"

	"github.com/routinehq/routine/pkg/connector"
)

// Register wires the built-in actions into the registry.
func Register(registry *connector.Registry, logger *slog.Logger) error {
	builders := []func(*slog.Logger) (*connector.Action, connector.HandlerFunc){
		HTTPRequest,
		LogMessage,
		Transform,
	}

	for _, build := range builders {
		action, handler := build(logger)

		if err := registry.Register(action, handler); err != nil {
			return err
		}
	}

	return nil
}
