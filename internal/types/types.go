// Package types provides the shared data model of the PAGI core.
// Types in this package are plain records with no storage or transport dependencies,
// so every other package can import it without cycles.
package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// PLANNING TYPES
// =============================================================================

// Well-known agent types referenced by the planner.
const (
	AgentTypeSearch   = "SearchAgent"
	AgentTypeCalendar = "CalendarAgent"
	AgentTypeSecurity = "CybersecurityAgent"
)

// Task is a unit of work created by the planner and dispatched to one agent.
type Task struct {
	// AgentType names the agent implementation to run (e.g. "SearchAgent").
	AgentType string `json:"agent_type"`
	// InputData is an opaque payload, usually a JSON object, interpreted by the agent.
	InputData string `json:"input_data"`
}

// Plan is the ordered task list returned for one prompt. Order is significant.
type Plan []Task

// AgentTypes returns the agent type of every task, in plan order.
func (p Plan) AgentTypes() []string {
	out := make([]string, len(p))
	for i, t := range p {
		out[i] = t.AgentType
	}
	return out
}

// =============================================================================
// FACT TYPES
// =============================================================================

// FactTypeReflection marks an AgentFact whose content is a serialized ReflectionFact.
const FactTypeReflection = "ReflectionFact"

// AgentFact is an immutable, timestamped record an agent contributes to the knowledge base.
type AgentFact struct {
	AgentID   string `json:"agent_id"`
	Timestamp uint64 `json:"timestamp"` // unix seconds
	FactType  string `json:"fact_type"`
	Content   string `json:"content"`
}

// ReflectionFact is a self-critique plus a suggested behavioral change for one agent type.
type ReflectionFact struct {
	TargetAgent  string `json:"target_agent"`
	Critique     string `json:"critique"`
	NewDirective string `json:"new_directive"`
}

// NewReflectionFact wraps a reflection into the AgentFact form it is stored as.
func NewReflectionFact(agentID string, ts uint64, r ReflectionFact) (AgentFact, error) {
	content, err := json.Marshal(r)
	if err != nil {
		return AgentFact{}, fmt.Errorf("encode reflection: %w", err)
	}
	return AgentFact{
		AgentID:   agentID,
		Timestamp: ts,
		FactType:  FactTypeReflection,
		Content:   string(content),
	}, nil
}

// Reflection decodes the ReflectionFact carried by f.
// It fails when f is not a reflection or its content is not a valid reflection record.
func (f AgentFact) Reflection() (ReflectionFact, error) {
	var r ReflectionFact
	if f.FactType != FactTypeReflection {
		return r, fmt.Errorf("fact type %q is not %s", f.FactType, FactTypeReflection)
	}
	if err := json.Unmarshal([]byte(f.Content), &r); err != nil {
		return r, fmt.Errorf("decode reflection: %w", err)
	}
	return r, nil
}

// PAGIRule is a symbolic IF fact_type AND content-contains-keyword THEN directive rule.
type PAGIRule struct {
	ID                string `json:"id" yaml:"id"`
	ConditionFactType string `json:"condition_fact_type" yaml:"condition_fact_type"`
	ConditionKeyword  string `json:"condition_keyword" yaml:"condition_keyword"`
	ActionDirective   string `json:"action_directive" yaml:"action_directive"`
}

// DefaultRules is the built-in rule set: failed analyses trigger a deep search rerun.
var DefaultRules = []PAGIRule{
	{
		ID:                "rule_failure_rerun_deep",
		ConditionFactType: "AnalysisResult",
		ConditionKeyword:  "Failure",
		ActionDirective:   "Rerun: Deep Search",
	},
}

// =============================================================================
// IDENTITY TYPES
// =============================================================================

// AuthScope is a named capability an identity may hold. Scopes are flat.
type AuthScope string

const (
	ScopeReadFacts      AuthScope = "ReadFacts"
	ScopeWriteFacts     AuthScope = "WriteFacts"
	ScopeWritePolicy    AuthScope = "WritePolicy"
	ScopeExternalAPI    AuthScope = "ExternalAPI"
	ScopeRoboticsAction AuthScope = "RoboticsAction"
)

// AllScopes lists every scope in declaration order.
var AllScopes = []AuthScope{
	ScopeReadFacts,
	ScopeWriteFacts,
	ScopeWritePolicy,
	ScopeExternalAPI,
	ScopeRoboticsAction,
}

// ParseScope resolves a scope name case-insensitively.
func ParseScope(s string) (AuthScope, error) {
	for _, scope := range AllScopes {
		if strings.EqualFold(string(scope), strings.TrimSpace(s)) {
			return scope, nil
		}
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// AgentIdentity is the caller presented to the gatekeeper.
type AgentIdentity struct {
	ID     string
	Scopes map[AuthScope]struct{}
}

// NewIdentity builds an identity holding exactly the given scopes.
func NewIdentity(id string, scopes ...AuthScope) AgentIdentity {
	set := make(map[AuthScope]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return AgentIdentity{ID: id, Scopes: set}
}

// Has reports whether the identity was granted scope.
func (id AgentIdentity) Has(scope AuthScope) bool {
	_, ok := id.Scopes[scope]
	return ok
}

// ScopeList returns the granted scopes sorted by name.
func (id AgentIdentity) ScopeList() []AuthScope {
	out := make([]AuthScope, 0, len(id.Scopes))
	for s := range id.Scopes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
