// Package history records workflow change entries and computes structural
// diffs between them.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

// ErrEntryNotFound is returned when a change entry id is unknown.
var ErrEntryNotFound = errors.New("change entry not found")

// Service appends change entries on workflow mutations and serves the
// history and diff queries over them.
type Service struct {
	repo   persistence.ChangeLogRepository
	logger *slog.Logger
}

// NewService creates a change history service.
func NewService(repo persistence.ChangeLogRepository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With("module", "history"),
	}
}

// Record appends a change entry for the workflow, summarizing the structural
// diff against the previous entry's snapshot.
func (s *Service) Record(ctx context.Context, workflow *models.Workflow, changeType models.ChangeType) (*models.ChangeEntry, error) {
	snapshot := Snapshot(workflow)

	var diff *models.PlanDiff

	previous, err := s.latest(ctx, workflow.ID)
	if err != nil {
		return nil, err
	}

	if previous != nil && previous.Snapshot != nil {
		diff = DiffSnapshots(previous.Snapshot, snapshot)
	}

	entry := &models.ChangeEntry{
		ID:         fmt.Sprintf("chg-%s", uuid.New().String()[:8]),
		WorkflowID: workflow.ID,
		UserID:     workflow.UserID,
		ChangeType: changeType,
		Summary:    summarize(changeType, diff, len(workflow.Steps)),
		Snapshot:   snapshot,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append change entry: %w", err)
	}

	s.logger.InfoContext(ctx, "Change entry recorded",
		"workflow_id", workflow.ID,
		"change_type", changeType,
		"summary", entry.Summary)

	return entry, nil
}

// List returns the workflow's change history, newest first.
func (s *Service) List(ctx context.Context, workflowID string, limit int) ([]*models.ChangeEntry, error) {
	return s.repo.ListByWorkflow(ctx, workflowID, limit)
}

// Diff computes the structural difference from the left entry to the right
// one.
func (s *Service) Diff(ctx context.Context, leftID, rightID string) (*models.PlanDiff, error) {
	left, err := s.get(ctx, leftID)
	if err != nil {
		return nil, err
	}

	right, err := s.get(ctx, rightID)
	if err != nil {
		return nil, err
	}

	return DiffSnapshots(left.Snapshot, right.Snapshot), nil
}

func (s *Service) get(ctx context.Context, id string) (*models.ChangeEntry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}

	return entry, nil
}

func (s *Service) latest(ctx context.Context, workflowID string) (*models.ChangeEntry, error) {
	entries, err := s.repo.ListByWorkflow(ctx, workflowID, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to load change history: %w", err)
	}

	if len(entries) == 0 {
		return nil, nil
	}

	return entries[0], nil
}

// Snapshot freezes the editable parts of a workflow. The copy is deep enough
// that later edits to the workflow never rewrite recorded history.
func Snapshot(workflow *models.Workflow) *models.WorkflowSnapshot {
	snapshot := &models.WorkflowSnapshot{
		Name:        workflow.Name,
		Description: workflow.Description,
	}

	if workflow.Trigger != nil {
		trigger := *workflow.Trigger
		snapshot.Trigger = &trigger
	}

	for _, step := range workflow.Steps {
		copied := *step
		snapshot.Steps = append(snapshot.Steps, &copied)
	}

	if workflow.PlanGraph != nil {
		for _, branch := range workflow.PlanGraph.Branches {
			copied := *branch

			if branch.Condition != nil {
				condition := *branch.Condition
				copied.Condition = &condition
			}

			snapshot.Branches = append(snapshot.Branches, &copied)
		}
	}

	return snapshot
}

// DiffSnapshots compares two snapshots by id with content equality. Pure
// reordering of identical steps or branches reports no change.
func DiffSnapshots(left, right *models.WorkflowSnapshot) *models.PlanDiff {
	if left == nil {
		left = &models.WorkflowSnapshot{}
	}

	if right == nil {
		right = &models.WorkflowSnapshot{}
	}

	diff := &models.PlanDiff{}
	diff.AddedStepIDs, diff.RemovedStepIDs, diff.ChangedStepIDs = diffByID(stepFingerprints(left.Steps), stepFingerprints(right.Steps))
	diff.AddedBranchIDs, diff.RemovedBranchIDs, diff.ChangedBranchIDs = diffByID(branchFingerprints(left.Branches), branchFingerprints(right.Branches))

	return diff
}

func stepFingerprints(steps []*models.Step) map[string]string {
	prints := make(map[string]string, len(steps))

	for _, step := range steps {
		if step != nil {
			prints[step.ID] = fingerprint(step)
		}
	}

	return prints
}

func branchFingerprints(branches []*models.Branch) map[string]string {
	prints := make(map[string]string, len(branches))

	for _, branch := range branches {
		if branch != nil {
			prints[branch.ID] = fingerprint(branch)
		}
	}

	return prints
}

func fingerprint(value any) string {
	data, _ := json.Marshal(value)

	return string(data)
}

func diffByID(left, right map[string]string) (added, removed, changed []string) {
	for id, print := range right {
		leftPrint, exists := left[id]

		switch {
		case !exists:
			added = append(added, id)
		case leftPrint != print:
			changed = append(changed, id)
		}
	}

	for id := range left {
		if _, exists := right[id]; !exists {
			removed = append(removed, id)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(changed)

	return added, removed, changed
}

func summarize(changeType models.ChangeType, diff *models.PlanDiff, stepCount int) string {
	switch changeType {
	case models.ChangeTypeCreated:
		return fmt.Sprintf("Created with %d steps", stepCount)
	case models.ChangeTypeArchived:
		return "Archived"
	case models.ChangeTypeUpdated:
	}

	if diff == nil || diff.Empty() {
		return "Saved without structural changes"
	}

	var parts []string

	parts = appendCount(parts, len(diff.AddedStepIDs), "step added", "steps added")
	parts = appendCount(parts, len(diff.RemovedStepIDs), "step removed", "steps removed")
	parts = appendCount(parts, len(diff.ChangedStepIDs), "step changed", "steps changed")
	parts = appendCount(parts, len(diff.AddedBranchIDs), "branch added", "branches added")
	parts = appendCount(parts, len(diff.RemovedBranchIDs), "branch removed", "branches removed")
	parts = appendCount(parts, len(diff.ChangedBranchIDs), "branch changed", "branches changed")

	return "Saved: " + strings.Join(parts, ", ")
}

func appendCount(parts []string, count int, singular, plural string) []string {
	switch {
	case count == 1:
		return append(parts, "1 "+singular)
	case count > 1:
		return append(parts, fmt.Sprintf("%d %s", count, plural))
	default:
		return parts
	}
}
