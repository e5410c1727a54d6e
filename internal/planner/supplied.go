package planner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"pagi/internal/types"
)

// ParseSuppliedPlan parses model output of the form
//
//	[{"agent_type": "SearchAgent", "input_data": ...}, ...]
//
// A string input_data is used verbatim; any other JSON value is re-serialized in compact
// form, and a missing one becomes "". The top level must be a non-empty array and every
// element an object with a non-empty string agent_type. Failures are *types.PlanParseError.
func ParseSuppliedPlan(text string) (types.Plan, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	var elems []json.RawMessage
	if err := dec.Decode(&elems); err != nil {
		return nil, &types.PlanParseError{Reason: "top level is not a JSON array", Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &types.PlanParseError{Reason: "trailing data after plan array"}
	}
	if len(elems) == 0 {
		return nil, &types.PlanParseError{Reason: "plan is empty"}
	}

	plan := make(types.Plan, 0, len(elems))
	for i, raw := range elems {
		task, err := parseTask(raw)
		if err != nil {
			return nil, &types.PlanParseError{Reason: fmt.Sprintf("task %d", i), Err: err}
		}
		plan = append(plan, task)
	}
	return plan, nil
}

func parseTask(raw json.RawMessage) (types.Task, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return types.Task{}, errors.New("not a JSON object")
	}

	agentRaw, ok := fields["agent_type"]
	if !ok {
		return types.Task{}, errors.New("missing agent_type")
	}
	var agentType string
	if err := json.Unmarshal(agentRaw, &agentType); err != nil {
		return types.Task{}, errors.New("agent_type is not a string")
	}
	if strings.TrimSpace(agentType) == "" {
		return types.Task{}, errors.New("agent_type is empty")
	}

	input, err := inputString(fields["input_data"])
	if err != nil {
		return types.Task{}, err
	}
	return types.Task{AgentType: agentType, InputData: input}, nil
}

func inputString(raw json.RawMessage) (string, error) {
	if raw == nil {
		return "", nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("input_data: %w", err)
		}
		return s, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", fmt.Errorf("input_data: %w", err)
	}
	return buf.String(), nil
}
