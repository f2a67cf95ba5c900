// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/routinehq/routine/pkg/connector"
	"github.com/routinehq/routine/pkg/connector/builtin"
)

// NewConnectorRegistry builds the action registry with the built-in actions
// installed.
func NewConnectorRegistry(logger *slog.Logger) (*connector.Registry, error) {
	registry := connector.NewRegistry()

	if err := builtin.Register(registry, logger); err != nil {
		return nil, err
	}

	return registry, nil
}
