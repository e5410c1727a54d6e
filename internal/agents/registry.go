// Package agents maps agent type names to implementations for the orchestration layer.
package agents

import (
	"fmt"
	"sort"
	"sync"

	"pagi/internal/types"
)

// Registry maps agent_type strings to Agent implementations. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]types.Agent
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]types.Agent)}
}

// Register adds agent under agentType. Registering the same type twice is an error.
func (r *Registry) Register(agentType string, agent types.Agent) error {
	if agentType == "" {
		return fmt.Errorf("agent type must not be empty")
	}
	if agent == nil {
		return fmt.Errorf("agent %s is nil", agentType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[agentType]; exists {
		return fmt.Errorf("agent %s already registered", agentType)
	}
	r.agents[agentType] = agent
	return nil
}

// Lookup returns the agent registered for agentType.
func (r *Registry) Lookup(agentType string) (types.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentType]
	return a, ok
}

// Types returns the registered agent types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.agents))
	for t := range r.agents {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Missing returns the agent types plan needs that are not registered, in first-use order.
func (r *Registry) Missing(plan types.Plan) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var missing []string
	for _, t := range plan {
		if _, ok := r.agents[t.AgentType]; ok || seen[t.AgentType] {
			continue
		}
		seen[t.AgentType] = true
		missing = append(missing, t.AgentType)
	}
	return missing
}
