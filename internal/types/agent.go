package types

import "context"

// CoreHandle is the shared view of the core an agent receives. Agents never own the
// core's resources; they read and write facts through the gatekeeper.
type CoreHandle interface {
	RecordFact(ctx context.Context, identity AgentIdentity, fact AgentFact) error
	Facts(ctx context.Context, identity AgentIdentity, startTS uint64) ([]AgentFact, error)
}

// Agent is the contract every task executor satisfies.
type Agent interface {
	// Run processes one task input (commonly JSON) and returns a result string.
	Run(ctx context.Context, identity AgentIdentity, core CoreHandle, input string) (string, error)
}

// AgentFunc adapts a plain function to the Agent interface.
type AgentFunc func(ctx context.Context, identity AgentIdentity, core CoreHandle, input string) (string, error)

func (f AgentFunc) Run(ctx context.Context, identity AgentIdentity, core CoreHandle, input string) (string, error) {
	return f(ctx, identity, core, input)
}
