// Package rules implements symbolic rule matching over stored facts and the plan
// rewriting driven by the resulting directives.
//
// Matching runs in two stages. The Mangle kernel joins facts to rules on fact type,
// then each candidate is kept only if its content contains the rule keyword
// (case-sensitive substring). Directives come back deduplicated and sorted ascending.
package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pagi/internal/logging"
	"pagi/internal/mangle"
	"pagi/internal/types"

	"go.uber.org/zap"
)

// schema joins stored facts to rules on fact type. Keyword containment is checked
// afterwards, outside the kernel.
const schema = `
Decl agent_fact(FactType, Content).
Decl pagi_rule(Id, FactType, Keyword, Directive).
Decl rule_candidate(Directive, Keyword, Content).

rule_candidate(Directive, Keyword, Content) :-
	agent_fact(FactType, Content),
	pagi_rule(_, FactType, Keyword, Directive).
`

// Engine matches facts against a fixed rule set.
// The rule set is fixed at construction and never mutated; Engine is safe for concurrent use.
type Engine struct {
	rules  []types.PAGIRule
	kernel *mangle.Engine
}

// NewEngine builds an engine over rules. A nil or empty slice yields an engine that
// never emits directives.
func NewEngine(rules []types.PAGIRule) (*Engine, error) {
	// Fact volume is bounded by the store, not by the kernel.
	kernel, err := mangle.NewEngine(mangle.Config{}, schema)
	if err != nil {
		return nil, fmt.Errorf("rules kernel: %w", err)
	}
	owned := make([]types.PAGIRule, len(rules))
	copy(owned, rules)
	return &Engine{rules: owned, kernel: kernel}, nil
}

// Rules returns a copy of the configured rule set.
func (e *Engine) Rules() []types.PAGIRule {
	out := make([]types.PAGIRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// MatchDirectives returns the action directive of every rule matched by at least one
// fact, deduplicated and sorted ascending. The result is deterministic for a given
// fact set regardless of fact order.
func (e *Engine) MatchDirectives(ctx context.Context, facts []types.AgentFact) ([]string, error) {
	if len(facts) == 0 || len(e.rules) == 0 {
		return []string{}, nil
	}

	input := make([]mangle.Fact, 0, len(facts)+len(e.rules))
	for _, f := range facts {
		input = append(input, mangle.Fact{
			Predicate: "agent_fact",
			Args:      []interface{}{f.FactType, f.Content},
		})
	}
	for _, r := range e.rules {
		input = append(input, mangle.Fact{
			Predicate: "pagi_rule",
			Args:      []interface{}{r.ID, r.ConditionFactType, r.ConditionKeyword, r.ActionDirective},
		})
	}

	result, err := e.kernel.Evaluate(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("match directives: %w", err)
	}
	candidates, err := result.GetFacts("rule_candidate")
	if err != nil {
		return nil, fmt.Errorf("match directives: %w", err)
	}

	seen := make(map[string]struct{})
	for _, c := range candidates {
		directive, _ := c.Args[0].(string)
		keyword, _ := c.Args[1].(string)
		content, _ := c.Args[2].(string)
		if strings.Contains(content, keyword) {
			seen[directive] = struct{}{}
		}
	}

	directives := make([]string, 0, len(seen))
	for d := range seen {
		directives = append(directives, d)
	}
	sort.Strings(directives)

	logging.KernelDebug("directives matched",
		zap.Int("facts", len(facts)),
		zap.Int("candidates", len(candidates)),
		zap.Strings("directives", directives))
	return directives, nil
}
