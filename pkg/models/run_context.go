package models

import "strings"

// CurrentStepAlias addresses the most recent step output in source paths.
const CurrentStepAlias = "current"

// RunContext accumulates the data visible to steps and branch conditions
// during one execution: trigger data plus the output of every completed
// step, keyed by step id, with "current" aliasing the latest one.
type RunContext struct {
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id"`
	UserID      string         `json:"user_id"`
	TriggerType TriggerType    `json:"trigger_type"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	StepOutputs map[string]any `json:"step_outputs,omitempty"`
	Current     any            `json:"current,omitempty"`
}

// RecordOutput stores a completed step's context entry and moves the
// "current" alias to it.
func (r *RunContext) RecordOutput(stepID string, entry map[string]any) {
	if r.StepOutputs == nil {
		r.StepOutputs = make(map[string]any)
	}

	r.StepOutputs[stepID] = entry
	r.Current = entry
}

// Lookup resolves a dot path against the context. The first segment selects
// a step id, the "current" alias, or "trigger" for trigger data; the rest
// walk nested maps. Returns false when any segment is missing or empty.
func (r *RunContext) Lookup(path string) (any, bool) {
	segments := strings.Split(path, ".")

	var value any

	switch segments[0] {
	case "":
		return nil, false
	case CurrentStepAlias:
		value = r.Current
	case "trigger":
		value = anyMap(r.TriggerData)
	default:
		if r.StepOutputs == nil {
			return nil, false
		}

		stored, ok := r.StepOutputs[segments[0]]
		if !ok {
			return nil, false
		}

		value = stored
	}

	for _, segment := range segments[1:] {
		if segment == "" {
			return nil, false
		}

		node, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}

		value, ok = node[segment]
		if !ok {
			return nil, false
		}
	}

	return value, true
}

func anyMap(m map[string]any) any {
	if m == nil {
		return nil
	}

	return m
}
