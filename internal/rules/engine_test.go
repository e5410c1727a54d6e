package rules

import (
	"context"
	"encoding/json"
	"testing"

	"pagi/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(types.DefaultRules)
	require.NoError(t, err)
	return e
}

func analysis(content string) types.AgentFact {
	return types.AgentFact{AgentID: "ReflectiveAgent", Timestamp: 1, FactType: "AnalysisResult", Content: content}
}

func TestMatchDirectivesDefaultRule(t *testing.T) {
	e := newDefaultEngine(t)
	ctx := context.Background()

	got, err := e.MatchDirectives(ctx, []types.AgentFact{analysis("Failure: SearchAgent timeout")})
	require.NoError(t, err)
	assert.Equal(t, []string{"Rerun: Deep Search"}, got)

	// Case-sensitive containment.
	got, err = e.MatchDirectives(ctx, []types.AgentFact{analysis("failure: lower case")})
	require.NoError(t, err)
	assert.Empty(t, got)

	// Fact type must match exactly.
	other := analysis("Failure")
	other.FactType = "AnalysisResults"
	got, err = e.MatchDirectives(ctx, []types.AgentFact{other})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = e.MatchDirectives(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatchDirectivesSortedDeduplicatedDeterministic(t *testing.T) {
	rules := []types.PAGIRule{
		{ID: "r1", ConditionFactType: "AnalysisResult", ConditionKeyword: "Failure", ActionDirective: "Rerun: Deep Search"},
		{ID: "r2", ConditionFactType: "AnalysisResult", ConditionKeyword: "timeout", ActionDirective: "Increase timeout"},
		{ID: "r3", ConditionFactType: "SensorReading", ConditionKeyword: "overheat", ActionDirective: "Abort actuation"},
		{ID: "r4", ConditionFactType: "AnalysisResult", ConditionKeyword: "Failure", ActionDirective: "Increase timeout"},
	}
	e, err := NewEngine(rules)
	require.NoError(t, err)

	facts := []types.AgentFact{
		analysis("Failure: SearchAgent timeout"),
		analysis("Failure again"),
		{FactType: "SensorReading", Content: "motor overheat detected"},
		{FactType: "SensorReading", Content: "nominal"},
	}
	want := []string{"Abort actuation", "Increase timeout", "Rerun: Deep Search"}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		got, err := e.MatchDirectives(ctx, facts)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("run %d directives mismatch (-want +got):\n%s", i, diff)
		}
		// Reverse the input; output must not depend on fact order.
		for l, r := 0, len(facts)-1; l < r; l, r = l+1, r-1 {
			facts[l], facts[r] = facts[r], facts[l]
		}
	}
}

func TestMatchDirectivesContentIsOpaque(t *testing.T) {
	rules := []types.PAGIRule{{ID: "r", ConditionFactType: "Note", ConditionKeyword: ":-", ActionDirective: "d"}}
	e, err := NewEngine(rules)
	require.NoError(t, err)

	got, err := e.MatchDirectives(context.Background(), []types.AgentFact{
		{FactType: "Note", Content: `"quoted" /name p(X) :- q(X).`},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, got)
}

func TestNewEngineCopiesRules(t *testing.T) {
	rules := []types.PAGIRule{{ID: "r", ConditionFactType: "T", ConditionKeyword: "k", ActionDirective: "d"}}
	e, err := NewEngine(rules)
	require.NoError(t, err)
	rules[0].ActionDirective = "mutated"
	assert.Equal(t, "d", e.Rules()[0].ActionDirective)

	empty, err := NewEngine(nil)
	require.NoError(t, err)
	got, err := empty.MatchDirectives(context.Background(), []types.AgentFact{analysis("Failure")})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func basePlan() types.Plan {
	return types.Plan{
		{AgentType: types.AgentTypeSearch, InputData: `{"query":"q1"}`},
		{AgentType: types.AgentTypeCalendar, InputData: `{"title":"t"}`},
		{AgentType: "NotesAgent", InputData: "plain text"},
		{AgentType: types.AgentTypeSearch, InputData: "not json"},
	}
}

func TestApplyDirectivesPassThrough(t *testing.T) {
	plan := basePlan()
	for _, directives := range [][]string{nil, {}, {"Increase timeout"}, {"Abort actuation", "shallow pass"}} {
		got := ApplyDirectives(plan, directives)
		require.Len(t, got, len(plan))
		// Same backing array: nothing was copied or re-serialized.
		assert.Same(t, &plan[0], &got[0])
		assert.Equal(t, plan, got)
	}
}

func TestApplyDirectivesExpandsSearchTasksInPlace(t *testing.T) {
	directives := []string{"Increase timeout", "Rerun: Deep Search"}
	got := ApplyDirectives(basePlan(), directives)

	wantTypes := []string{
		types.AgentTypeSearch, types.AgentTypeSearch, types.AgentTypeSearch,
		types.AgentTypeCalendar,
		"NotesAgent",
		types.AgentTypeSearch, types.AgentTypeSearch, types.AgentTypeSearch,
	}
	if diff := cmp.Diff(wantTypes, got.AgentTypes()); diff != "" {
		t.Fatalf("agent types mismatch (-want +got):\n%s", diff)
	}

	// Originals and non-search tasks are untouched.
	assert.Equal(t, `{"query":"q1"}`, got[0].InputData)
	assert.Equal(t, `{"title":"t"}`, got[3].InputData)
	assert.Equal(t, "plain text", got[4].InputData)
	assert.Equal(t, "not json", got[5].InputData)

	assert.Equal(t,
		`{"deep":true,"query":"q1","rerun_variant":1,"symbolic_directives":["Increase timeout","Rerun: Deep Search"]}`,
		got[1].InputData)
	assert.Equal(t,
		`{"deep":true,"query":"q1","rerun_variant":2,"symbolic_directives":["Increase timeout","Rerun: Deep Search"]}`,
		got[2].InputData)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(got[6].InputData), &raw))
	assert.Equal(t, "not json", raw["raw"])
	assert.Equal(t, true, raw["deep"])
	assert.Equal(t, float64(1), raw["rerun_variant"])
}

func TestApplyDirectivesPayloadEdgeCases(t *testing.T) {
	directives := []string{"DEEP dive"}
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"overwrites fields", `{"deep":false,"rerun_variant":9,"keep":1}`,
			`{"deep":true,"keep":1,"rerun_variant":1,"symbolic_directives":["DEEP dive"]}`},
		{"array is not an object", `[1,2]`,
			`{"deep":true,"raw":"[1,2]","rerun_variant":1,"symbolic_directives":["DEEP dive"]}`},
		{"null is not an object", `null`,
			`{"deep":true,"raw":"null","rerun_variant":1,"symbolic_directives":["DEEP dive"]}`},
		{"trailing data", `{"a":1} junk`,
			`{"deep":true,"raw":"{\"a\":1} junk","rerun_variant":1,"symbolic_directives":["DEEP dive"]}`},
		{"stray closing bracket", `{"a":1}]`,
			`{"deep":true,"raw":"{\"a\":1}]","rerun_variant":1,"symbolic_directives":["DEEP dive"]}`},
		{"stray closing brace", `{"a":1}}`,
			`{"deep":true,"raw":"{\"a\":1}}","rerun_variant":1,"symbolic_directives":["DEEP dive"]}`},
		{"large numbers kept verbatim", `{"id":12345678901234567890}`,
			`{"deep":true,"id":12345678901234567890,"rerun_variant":1,"symbolic_directives":["DEEP dive"]}`},
		{"no html escaping", `{"q":"a<b & c"}`,
			`{"deep":true,"q":"a<b & c","rerun_variant":1,"symbolic_directives":["DEEP dive"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyDirectives(types.Plan{{AgentType: types.AgentTypeSearch, InputData: tt.input}}, directives)
			require.Len(t, got, 3)
			assert.Equal(t, tt.input, got[0].InputData)
			assert.Equal(t, tt.want, got[1].InputData)
		})
	}
}

func TestApplyDirectivesWithoutSearchTasks(t *testing.T) {
	plan := types.Plan{{AgentType: types.AgentTypeCalendar, InputData: "{}"}}
	got := ApplyDirectives(plan, []string{"Rerun: Deep Search"})
	assert.Equal(t, plan, got)

	assert.Empty(t, ApplyDirectives(types.Plan{}, []string{"deep"}))
}
