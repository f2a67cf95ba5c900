// Package compiler defines the natural-language workflow compiler boundary.
// The engine delegates prompt-based workflow creation here; language-model
// integration plugs in behind the Compiler interface.
package compiler

import (
	"context"

	"github.com/routinehq/routine/pkg/models"
)

// Compiler turns a natural-language prompt into a workflow skeleton: name,
// steps and trigger. The engine assigns identity, ownership and status
// before persisting.
type Compiler interface {
	Compile(ctx context.Context, userID, prompt string) (*models.Workflow, error)
}
