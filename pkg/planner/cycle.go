package planner

import "github.com/routinehq/routine/pkg/models"

// DetectCycle reports whether the plan's effective edges (branches plus
// implicit fall-through) contain a cycle. When they do, the returned path
// lists the step ids along the cycle, ending where it re-enters.
func DetectCycle(wf *models.Workflow) (bool, []string) {
	adjacency := edges(wf)
	visited := make(map[string]bool, len(wf.Steps))
	onStack := make(map[string]bool, len(wf.Steps))
	stack := make([]string, 0, len(wf.Steps))

	var walk func(stepID string) []string

	walk = func(stepID string) []string {
		visited[stepID] = true
		onStack[stepID] = true
		stack = append(stack, stepID)

		for _, next := range adjacency[stepID] {
			if !visited[next] {
				if path := walk(next); path != nil {
					return path
				}
			} else if onStack[next] {
				return cyclePath(stack, next)
			}
		}

		onStack[stepID] = false
		stack = stack[:len(stack)-1]

		return nil
	}

	for _, step := range wf.Steps {
		if visited[step.ID] {
			continue
		}

		if path := walk(step.ID); path != nil {
			return true, path
		}
	}

	return false, nil
}

// cyclePath trims the DFS stack to the segment forming the cycle and closes
// it with the re-entered step.
func cyclePath(stack []string, reentry string) []string {
	start := 0

	for i, id := range stack {
		if id == reentry {
			start = i

			break
		}
	}

	path := make([]string, 0, len(stack)-start+1)
	path = append(path, stack[start:]...)
	path = append(path, reentry)

	return path
}
