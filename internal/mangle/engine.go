// Package mangle wraps the Google Mangle (Datalog) engine for the rule kernel.
//
// A program is parsed and analyzed once; each Evaluate call runs it to fixpoint over
// a fresh in-memory fact store, so concurrent evaluations share nothing mutable.
package mangle

import (
	"context"
	"fmt"
	"strings"

	"pagi/internal/logging"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
	"go.uber.org/zap"
)

// Config holds Mangle engine configuration.
type Config struct {
	// FactLimit caps the number of input facts per evaluation; 0 disables the cap.
	FactLimit int `json:"fact_limit"`
}

// Fact represents a single fact in the knowledge graph.
type Fact struct {
	Predicate string        `json:"predicate"`
	Args      []interface{} `json:"args"`
}

// Engine is an analyzed Mangle program, safe for concurrent Evaluate calls.
type Engine struct {
	config         Config
	programInfo    *analysis.ProgramInfo
	predicateIndex map[string]ast.PredicateSym
}

// NewEngine parses and analyzes schema (declarations plus rules).
func NewEngine(cfg Config, schema string) (*Engine, error) {
	unit, err := parse.Unit(strings.NewReader(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze schema: %w", err)
	}

	index := make(map[string]ast.PredicateSym, len(programInfo.Decls))
	for sym := range programInfo.Decls {
		index[sym.Symbol] = sym
	}

	logging.KernelDebug("mangle program loaded",
		zap.Int("decls", len(programInfo.Decls)),
		zap.Int("rules", len(programInfo.Rules)))

	return &Engine{
		config:         cfg,
		programInfo:    programInfo,
		predicateIndex: index,
	}, nil
}

// Result is the fixpoint of one evaluation.
type Result struct {
	store          factstore.FactStore
	predicateIndex map[string]ast.PredicateSym
}

// Evaluate loads facts into a fresh store and runs the program to fixpoint.
func (e *Engine) Evaluate(ctx context.Context, facts []Fact) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.config.FactLimit > 0 && len(facts) > e.config.FactLimit {
		return nil, fmt.Errorf("fact limit exceeded: %d > %d", len(facts), e.config.FactLimit)
	}

	timer := logging.StartTimer(logging.CategoryKernel, "Evaluate")
	defer timer.Stop()

	store := factstore.NewSimpleInMemoryStore()
	for _, f := range facts {
		atom, err := e.factToAtom(f)
		if err != nil {
			return nil, err
		}
		store.Add(atom)
	}

	stats, err := mengine.EvalProgramWithStats(e.programInfo, store)
	if err != nil {
		return nil, fmt.Errorf("evaluate program: %w", err)
	}
	logging.KernelDebug("mangle evaluation complete",
		zap.Int("input_facts", len(facts)),
		zap.Any("stats", stats))

	return &Result{store: store, predicateIndex: e.predicateIndex}, nil
}

func (e *Engine) factToAtom(f Fact) (ast.Atom, error) {
	sym, ok := e.predicateIndex[f.Predicate]
	if !ok {
		return ast.Atom{}, fmt.Errorf("predicate %s is not declared in schema", f.Predicate)
	}
	if len(f.Args) != sym.Arity {
		return ast.Atom{}, fmt.Errorf("predicate %s expects %d args, got %d", f.Predicate, sym.Arity, len(f.Args))
	}

	args := make([]ast.BaseTerm, len(f.Args))
	for i, raw := range f.Args {
		term, err := convertValueToTerm(raw)
		if err != nil {
			return ast.Atom{}, fmt.Errorf("predicate %s arg %d: %w", f.Predicate, i, err)
		}
		args[i] = term
	}
	return ast.Atom{Predicate: sym, Args: args}, nil
}

// convertValueToTerm maps Go values to Mangle constants. Strings always become string
// constants, never name constants, since fact content is arbitrary text.
func convertValueToTerm(value interface{}) (ast.BaseTerm, error) {
	switch v := value.(type) {
	case string:
		return ast.String(v), nil
	case int:
		return ast.Number(int64(v)), nil
	case int64:
		return ast.Number(v), nil
	case uint64:
		return ast.Number(int64(v)), nil
	case bool:
		if v {
			return ast.TrueConstant, nil
		}
		return ast.FalseConstant, nil
	default:
		return nil, fmt.Errorf("unsupported fact argument type %T", v)
	}
}

// GetFacts returns every fact of predicate in the evaluated store.
func (r *Result) GetFacts(predicate string) ([]Fact, error) {
	sym, ok := r.predicateIndex[predicate]
	if !ok {
		return nil, fmt.Errorf("predicate %s is not declared", predicate)
	}

	var results []Fact
	err := r.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		args := make([]interface{}, len(atom.Args))
		for i, arg := range atom.Args {
			args[i] = termToValue(arg)
		}
		results = append(results, Fact{Predicate: predicate, Args: args})
		return nil
	})
	return results, err
}

func termToValue(term ast.BaseTerm) interface{} {
	c, ok := term.(ast.Constant)
	if !ok {
		return fmt.Sprintf("%v", term)
	}
	switch c.Type {
	case ast.StringType, ast.NameType, ast.BytesType:
		return c.Symbol
	case ast.NumberType:
		return c.NumValue
	default:
		return c.String()
	}
}
