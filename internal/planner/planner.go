// Package planner turns a prompt, and optionally a model-supplied plan, into an ordered
// task list.
//
// Tiers are evaluated in order and the first match wins:
//
//  1. security fast-path: a prompt naming a SIEM/EDR vendor goes to the triage agent;
//  2. an empty supplied plan, or the disable variable, skips to tier 4;
//  3. the supplied plan is parsed and rewritten by the rule engine;
//  4. the deterministic fallback recognizes the canonical prompt, applying rule
//     directives first and the latest SearchAgent reflection second.
//
// A parse failure in tier 3 falls through to tier 4. Only tier 4 can fail with
// types.ErrNoPlanMatched. Every successful return is a non-empty plan.
package planner

import (
	"context"
	"fmt"
	"strings"

	"pagi/internal/auth"
	"pagi/internal/config"
	"pagi/internal/logging"
	"pagi/internal/rules"
	"pagi/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tier names reported in plan_tier audit events.
const (
	TierSecurity   = "security"
	TierSupplied   = "supplied"
	TierDirectives = "fallback_directives"
	TierReflection = "fallback_reflection"
	TierBase       = "fallback_base"
)

// FactSource is the read side of the fact store.
type FactSource interface {
	Query(ctx context.Context, startTS uint64) ([]types.AgentFact, error)
}

// Planner produces plans. It holds no mutable state and is safe for concurrent use.
type Planner struct {
	cfg      config.PlannerConfig
	keywords []string
	rules    *rules.Engine
	facts    FactSource
}

// New returns a planner reading facts from facts and rewriting plans with engine.
func New(cfg config.PlannerConfig, engine *rules.Engine, facts FactSource) *Planner {
	keywords := make([]string, 0, len(cfg.SecurityKeywords))
	for _, k := range cfg.SecurityKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	return &Planner{cfg: cfg, keywords: keywords, rules: engine, facts: facts}
}

// Plan runs the tiers for prompt. suppliedPlan is the raw model output, possibly empty.
// Reading stored facts requires ReadFacts; the security fast-path reads nothing and
// needs no scope.
func (p *Planner) Plan(ctx context.Context, identity types.AgentIdentity, prompt, suppliedPlan string) (types.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reqID := uuid.NewString()
	audit := logging.AuditWithRequest(reqID)
	gate := auth.NewGatekeeper(reqID)
	timer := logging.StartTimer(logging.CategoryPlanner, "Plan")
	defer timer.Stop()

	done := func(tier string, plan types.Plan) (types.Plan, error) {
		audit.PlanTier(identity.ID, tier, len(plan))
		return plan, nil
	}

	// Tier 1.
	if plan, ok := p.securityPlan(prompt); ok {
		return done(TierSecurity, plan)
	}

	// Tiers 2 and 3.
	switch {
	case strings.TrimSpace(suppliedPlan) == "":
		logging.PlannerDebug("no supplied plan", zap.String("req", reqID))
	case p.cfg.SuppliedPlanDisabled():
		logging.Planner("supplied plan disabled by environment",
			zap.String("req", reqID), zap.String("env", p.cfg.DisableEnv))
	default:
		parsed, err := ParseSuppliedPlan(suppliedPlan)
		if err != nil {
			logging.Planner("supplied plan rejected, using fallback",
				zap.String("req", reqID), zap.Error(err))
			break
		}
		facts, err := p.readFacts(ctx, gate, identity)
		if err != nil {
			return nil, err
		}
		directives, err := p.rules.MatchDirectives(ctx, facts)
		if err != nil {
			return nil, err
		}
		return done(TierSupplied, rules.ApplyDirectives(parsed, directives))
	}

	// Tier 4.
	return p.fallback(ctx, gate, identity, prompt, done)
}

// securityPlan routes prompts naming a security vendor to the triage agent.
func (p *Planner) securityPlan(prompt string) (types.Plan, bool) {
	lowered := strings.ToLower(prompt)
	for _, k := range p.keywords {
		if strings.Contains(lowered, k) {
			return types.Plan{{AgentType: p.cfg.TriageAgent, InputData: prompt}}, true
		}
	}
	return nil, false
}

func (p *Planner) readFacts(ctx context.Context, gate *auth.Gatekeeper, identity types.AgentIdentity) ([]types.AgentFact, error) {
	if err := gate.Check(identity, types.ScopeReadFacts); err != nil {
		return nil, err
	}
	facts, err := p.facts.Query(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("read facts: %w", err)
	}
	return facts, nil
}
