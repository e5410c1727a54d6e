package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"pagi/internal/auth"
	"pagi/internal/logging"
	"pagi/internal/rules"
	"pagi/internal/types"

	"go.uber.org/zap"
)

type finish func(tier string, plan types.Plan) (types.Plan, error)

func (p *Planner) fallback(ctx context.Context, gate *auth.Gatekeeper, identity types.AgentIdentity, prompt string, done finish) (types.Plan, error) {
	if plan, ok := p.securityPlan(prompt); ok {
		return done(TierSecurity, plan)
	}
	if strings.TrimSpace(prompt) != p.cfg.CanonicalPrompt {
		return nil, types.ErrNoPlanMatched
	}

	// One read serves both the rule match and the reflection lookup.
	facts, err := p.readFacts(ctx, gate, identity)
	if err != nil {
		return nil, err
	}

	base := BasePlan()
	directives, err := p.rules.MatchDirectives(ctx, facts)
	if err != nil {
		return nil, err
	}
	if len(directives) > 0 {
		return done(TierDirectives, rules.ApplyDirectives(base, directives))
	}

	if reflection, ok := LatestReflection(facts, types.AgentTypeSearch); ok {
		if WantsSplit(reflection.NewDirective) {
			logging.Planner("applying reflection directive",
				zap.String("directive", reflection.NewDirective))
			return done(TierReflection, SplitPlan(reflection.NewDirective))
		}
		logging.PlannerDebug("latest reflection not applicable",
			zap.String("directive", reflection.NewDirective))
	}
	return done(TierBase, base)
}

var (
	searchPayload = map[string]string{
		"query":       "top anti-aging compounds",
		"deliverable": "summary of leading compounds with citations",
	}
	calendarPayload = map[string]string{
		"title":     "Anti-aging compounds research review",
		"timeframe": "next week",
		"agenda":    "Present research findings and next steps",
	}
	// Query and deliverable of each parallel search subtask.
	splitSearches = [][2]string{
		{"top anti-aging compounds overview", "high-level summary"},
		{"anti-aging: rapamycin metformin spermidine", "mechanisms + evidence"},
		{"anti-aging: senolytics fisetin quercetin", "senolytic candidates summary"},
	}
)

// BasePlan is the two-task plan for the canonical prompt: research, then schedule.
func BasePlan() types.Plan {
	return types.Plan{
		{AgentType: types.AgentTypeSearch, InputData: encodePayload(searchPayload)},
		{AgentType: types.AgentTypeCalendar, InputData: encodePayload(calendarPayload)},
	}
}

// SplitPlan replaces the single search with three parallel subtasks carrying directive,
// followed by the unchanged scheduling task.
func SplitPlan(directive string) types.Plan {
	plan := make(types.Plan, 0, len(splitSearches)+1)
	for _, s := range splitSearches {
		plan = append(plan, types.Task{
			AgentType: types.AgentTypeSearch,
			InputData: encodePayload(map[string]string{
				"query":             s[0],
				"deliverable":       s[1],
				"directive_applied": directive,
			}),
		})
	}
	return append(plan, types.Task{AgentType: types.AgentTypeCalendar, InputData: encodePayload(calendarPayload)})
}

// WantsSplit reports whether a reflection directive asks for split or concurrent work.
func WantsSplit(directive string) bool {
	d := strings.ToLower(directive)
	return strings.Contains(d, "split") || strings.Contains(d, "concurr")
}

// LatestReflection returns the reflection addressed to target with the greatest
// timestamp. facts must be in store order, so on a timestamp tie the later write wins.
// Reflection facts whose content does not decode are ignored.
func LatestReflection(facts []types.AgentFact, target string) (types.ReflectionFact, bool) {
	var (
		latest types.ReflectionFact
		ts     uint64
		found  bool
	)
	for _, f := range facts {
		if f.FactType != types.FactTypeReflection {
			continue
		}
		r, err := f.Reflection()
		if err != nil || r.TargetAgent != target {
			continue
		}
		if !found || f.Timestamp >= ts {
			latest, ts, found = r, f.Timestamp, true
		}
	}
	return latest, found
}

func encodePayload(m map[string]string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return "{}"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
