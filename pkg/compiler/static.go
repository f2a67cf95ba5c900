package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/routinehq/routine/pkg/models"
)

// ErrEmptyPrompt is returned when the prompt contains no usable clauses.
var ErrEmptyPrompt = errors.New("prompt is empty")

const maxNameLength = 60

var urlPattern = regexp.MustCompile(`https?://[^\s"']+`)

// Static is a deterministic rule-based compiler. It splits the prompt into
// clauses and maps each clause onto a step by keyword: review words become
// checkpoints, fetch words become HTTP requests, publish words become
// artifacts, the rest log. It keeps development and tests independent of any
// language-model service.
type Static struct {
	logger *slog.Logger
}

// NewStatic creates a rule-based compiler.
func NewStatic(logger *slog.Logger) *Static {
	return &Static{logger: logger.With("module", "compiler")}
}

// Compile builds a draft workflow skeleton from the prompt.
func (s *Static) Compile(ctx context.Context, userID, prompt string) (*models.Workflow, error) {
	clauses := splitClauses(prompt)
	if len(clauses) == 0 {
		return nil, ErrEmptyPrompt
	}

	steps := make([]*models.Step, 0, len(clauses))
	for i, clause := range clauses {
		steps = append(steps, buildStep(i+1, clause))
	}

	workflow := &models.Workflow{
		UserID:       userID,
		Name:         workflowName(clauses[0]),
		Description:  fmt.Sprintf("Drafted from a prompt (%d steps).", len(steps)),
		SourcePrompt: prompt,
		Status:       models.WorkflowStatusDraft,
		Trigger:      &models.TriggerSpec{Type: models.TriggerTypeManual, Enabled: true},
		Steps:        steps,
	}

	s.logger.InfoContext(ctx, "Compiled prompt into workflow skeleton", "user_id", userID, "steps", len(steps))

	return workflow, nil
}

// splitClauses breaks a prompt into step-sized clauses on newlines, "then"
// connectors and sentence boundaries.
func splitClauses(prompt string) []string {
	normalized := strings.NewReplacer(
		", then ", "\n",
		" then ", "\n",
		"; ", "\n",
		". ", "\n",
	).Replace(prompt)

	var clauses []string

	for _, line := range strings.Split(normalized, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), "."))
		if line != "" {
			clauses = append(clauses, line)
		}
	}

	return clauses
}

func buildStep(position int, clause string) *models.Step {
	lower := strings.ToLower(clause)

	step := &models.Step{
		ID:    fmt.Sprintf("step-%d", position),
		Title: truncate(clause, maxNameLength),
	}

	switch {
	case containsAny(lower, "review", "approve", "confirm", "sign off"):
		step.Kind = models.StepKindCheckpoint
		step.Description = "Pauses the run for review before continuing."
	case containsAny(lower, "summarize", "transform", "convert", "format", "extract"):
		step.Kind = models.StepKindTransform
		step.InputTemplate = "{{ .current }}"
	case containsAny(lower, "fetch", "http", "call", "download", "request", "api"):
		step.Kind = models.StepKindConnectorAction
		step.ActionID = "http.request"

		if url := urlPattern.FindString(clause); url != "" {
			step.InputTemplate = fmt.Sprintf(`{"url": %q}`, url)
		}
	case containsAny(lower, "save", "export", "publish", "report", "store"):
		step.Kind = models.StepKindArtifact
	default:
		step.Kind = models.StepKindConnectorAction
		step.ActionID = "log.message"
		step.InputTemplate = fmt.Sprintf(`{"message": %q}`, clause)
	}

	return step
}

func workflowName(clause string) string {
	name := truncate(strings.TrimSpace(clause), maxNameLength)
	if len(name) < 3 {
		return "Generated workflow"
	}

	return name
}

func containsAny(text string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}

	return false
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	return string(runes[:limit-3]) + "..."
}
