// Package core wires the PAGI core: the fact store behind the capability gate, the rule
// engine, the tiered planner and the status channel lifecycle.
//
// A Core is shared by every agent running against it and is safe for concurrent use.
// It owns its store only when it opened it (Open); a Core built with New over an
// existing store is a secondary instance that never owns the store or the channel
// artifact of another instance.
package core

import (
	"context"
	"fmt"
	"net"
	"sync"

	"pagi/internal/auth"
	"pagi/internal/config"
	"pagi/internal/ipc"
	"pagi/internal/logging"
	"pagi/internal/planner"
	"pagi/internal/rules"
	"pagi/internal/store"
	"pagi/internal/types"

	"go.uber.org/zap"
)

// Options configures a Core built over an existing store.
type Options struct {
	Rules   []types.PAGIRule
	Planner config.PlannerConfig
	IPCName string
}

// DefaultOptions returns the default rule set, planner settings and channel name.
func DefaultOptions() Options {
	rules := make([]types.PAGIRule, len(types.DefaultRules))
	copy(rules, types.DefaultRules)
	return Options{
		Rules:   rules,
		Planner: config.DefaultPlannerConfig(),
		IPCName: config.DefaultIPCName(),
	}
}

// Core is the shared reasoning core.
type Core struct {
	store     *store.FactStore
	ownsStore bool
	rules     *rules.Engine
	planner   *planner.Planner
	ipc       *ipc.Lifecycle

	closeMu sync.Mutex
	closed  bool
}

var _ types.CoreHandle = (*Core)(nil)

// New builds a core over an already-open store. The caller keeps ownership of st.
func New(st *store.FactStore, opts Options) (*Core, error) {
	engine, err := rules.NewEngine(opts.Rules)
	if err != nil {
		return nil, err
	}
	return &Core{
		store:   st,
		rules:   engine,
		planner: planner.New(opts.Planner, engine, st),
		ipc:     ipc.New(opts.IPCName),
	}, nil
}

// Open opens the store described by cfg and builds a core that owns it.
// The status channel is not bound; call InitIPC at startup.
func Open(ctx context.Context, cfg *config.Config) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}
	c, err := New(st, Options{
		Rules:   cfg.EffectiveRules(),
		Planner: cfg.Planner,
		IPCName: cfg.IPC.Name,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	c.ownsStore = true

	logging.Get(logging.CategoryBoot).Info("core opened",
		zap.String("name", cfg.Name),
		zap.String("store", st.Path()),
		zap.Int("rules", len(c.rules.Rules())))
	return c, nil
}

// Store returns the underlying fact store, for building secondary instances with New.
func (c *Core) Store() *store.FactStore {
	return c.store
}

// RecordFact durably records fact on behalf of identity. It requires WriteFacts, or
// RoboticsAction under the write policy exception.
func (c *Core) RecordFact(ctx context.Context, identity types.AgentIdentity, fact types.AgentFact) error {
	if err := auth.CheckWrite(identity); err != nil {
		return err
	}
	if err := c.store.Record(ctx, fact); err != nil {
		return err
	}
	logging.Audit().FactRecorded(identity.ID, fact.FactType, fact.Timestamp)
	return nil
}

// RecordReflection stores r as a ReflectionFact authored by identity.
func (c *Core) RecordReflection(ctx context.Context, identity types.AgentIdentity, ts uint64, r types.ReflectionFact) error {
	fact, err := types.NewReflectionFact(identity.ID, ts, r)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return c.RecordFact(ctx, identity, fact)
}

// Facts returns every fact with timestamp >= startTS in timestamp order. Requires ReadFacts.
func (c *Core) Facts(ctx context.Context, identity types.AgentIdentity, startTS uint64) ([]types.AgentFact, error) {
	if err := auth.Check(identity, types.ScopeReadFacts); err != nil {
		return nil, err
	}
	return c.store.Query(ctx, startTS)
}

// MatchDirectives runs the rule set over facts.
func (c *Core) MatchDirectives(ctx context.Context, facts []types.AgentFact) ([]string, error) {
	return c.rules.MatchDirectives(ctx, facts)
}

// Plan produces the task list for prompt. See package planner for the tiers.
func (c *Core) Plan(ctx context.Context, identity types.AgentIdentity, prompt, suppliedPlan string) (types.Plan, error) {
	return c.planner.Plan(ctx, identity, prompt, suppliedPlan)
}

// InitIPC binds the status channel. It is idempotent; a failure leaves the rest of the
// core usable.
func (c *Core) InitIPC() error {
	return c.ipc.Init()
}

// TakeIPCListener hands the bound listener to one caller; later calls return nil.
func (c *Core) TakeIPCListener() net.Listener {
	return c.ipc.TakeListener()
}

// IPCName returns the channel address agents should dial.
func (c *Core) IPCName() string {
	return c.ipc.Name()
}

// Close tears the core down: flush the store, release the listener if still held,
// unlink the channel if this instance bound it, and close the store if owned.
// A flush failure is returned immediately and nothing else is released, so the
// caller can see that facts may not be durable. Close is idempotent once it succeeds.
func (c *Core) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}

	if err := c.store.Flush(context.Background()); err != nil {
		logging.Get(logging.CategoryBoot).Error("flush failed during shutdown, aborting teardown", zap.Error(err))
		return fmt.Errorf("core teardown: %w", err)
	}

	err := c.ipc.Close()
	if err != nil {
		logging.IPC("status channel teardown incomplete", zap.Error(err))
	}
	if c.ownsStore {
		if cerr := c.store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close: %v", types.ErrStorage, cerr)
		}
	}
	c.closed = true

	logging.Get(logging.CategoryBoot).Info("core closed")
	return err
}
