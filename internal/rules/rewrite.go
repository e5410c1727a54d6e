package rules

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"pagi/internal/types"
)

// Fields added to every rerun variant payload.
const (
	FieldDeep               = "deep"
	FieldRerunVariant       = "rerun_variant"
	FieldSymbolicDirectives = "symbolic_directives"
	FieldRaw                = "raw"
)

// rerunVariants is the number of deep rerun variants emitted after each search task.
const rerunVariants = 2

// WantsDeepRerun reports whether any directive asks for a deep rerun.
func WantsDeepRerun(directives []string) bool {
	for _, d := range directives {
		if strings.Contains(strings.ToLower(d), "deep") {
			return true
		}
	}
	return false
}

// ApplyDirectives rewrites plan for directives. Without a deep rerun directive the plan
// is returned as is. Otherwise every SearchAgent task is followed, in place, by two
// variants whose payload carries the deep marker, the variant ordinal and the full
// directive list. Other tasks are copied through unchanged.
func ApplyDirectives(plan types.Plan, directives []string) types.Plan {
	if !WantsDeepRerun(directives) {
		return plan
	}

	out := make(types.Plan, 0, len(plan))
	for _, task := range plan {
		out = append(out, task)
		if task.AgentType != types.AgentTypeSearch {
			continue
		}
		for variant := 1; variant <= rerunVariants; variant++ {
			out = append(out, types.Task{
				AgentType: types.AgentTypeSearch,
				InputData: rerunPayload(task.InputData, variant, directives),
			})
		}
	}
	return out
}

// rerunPayload decodes input as a JSON object, or wraps it as {"raw": input} when it is
// not one, and sets the rerun fields.
func rerunPayload(input string, variant int, directives []string) string {
	payload := decodeObject(input)
	if payload == nil {
		payload = map[string]interface{}{FieldRaw: input}
	}

	list := make([]string, len(directives))
	copy(list, directives)
	payload[FieldDeep] = true
	payload[FieldRerunVariant] = variant
	payload[FieldSymbolicDirectives] = list

	return encodeCompact(payload)
}

// decodeObject returns input as a JSON object with numbers kept verbatim, or nil.
func decodeObject(input string) map[string]interface{} {
	dec := json.NewDecoder(strings.NewReader(input))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil
	}
	// Trailing data, including a stray closing delimiter, means input was not a single value.
	if _, err := dec.Token(); err != io.EOF {
		return nil
	}
	return obj
}

// encodeCompact serializes v with sorted keys and no HTML escaping.
func encodeCompact(v interface{}) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		// Payloads are built from decoded JSON and plain strings; encoding cannot fail.
		return "{}"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
