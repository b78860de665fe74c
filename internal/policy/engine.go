package policy

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

//go:embed policy.rego
var defaultModule string

const decisionQuery = "data.compliancehub.authz.decision"

// DefaultModule returns the rego source compiled into the binary.
func DefaultModule() string { return defaultModule }

// Engine evaluates the access table with OPA. A failed evaluation denies.
type Engine struct {
	mu       sync.RWMutex
	prepared rego.PreparedEvalQuery
	source   string
	logger   *slog.Logger
}

// NewEngine compiles src, or the embedded policy when src is empty.
func NewEngine(ctx context.Context, src string, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{logger: logger}
	if src == "" {
		src = defaultModule
	}
	if err := e.Load(ctx, src); err != nil {
		return nil, err
	}
	return e, nil
}

// NewEngineFromFile compiles the rego module at path.
func NewEngineFromFile(ctx context.Context, path string, logger *slog.Logger) (*Engine, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return NewEngine(ctx, string(src), logger)
}

// Load compiles src and swaps it in. The previous policy stays active when
// compilation fails.
func (e *Engine) Load(ctx context.Context, src string) error {
	module, err := ast.ParseModuleWithOpts("policy.rego", src, ast.ParserOptions{RegoVersion: ast.RegoV1})
	if err != nil {
		return fmt.Errorf("parse policy: %w", err)
	}
	prepared, err := rego.New(
		rego.Query(decisionQuery),
		rego.ParsedModule(module),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("compile policy: %w", err)
	}

	e.mu.Lock()
	e.prepared = prepared
	e.source = src
	e.mu.Unlock()
	return nil
}

// LoadFile reads path and calls Load.
func (e *Engine) LoadFile(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}
	return e.Load(ctx, string(src))
}

// Source returns the rego currently in effect.
func (e *Engine) Source() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.source
}

func (e *Engine) Authorize(ctx context.Context, action Action, p Principal) Decision {
	e.mu.RLock()
	prepared := e.prepared
	e.mu.RUnlock()

	input := map[string]any{
		"action": string(action),
		"principal": map[string]any{
			"user_id":    p.UserID.String(),
			"role":       string(p.Role),
			"factory_id": string(p.FactoryID),
		},
	}
	results, err := prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		e.logger.ErrorContext(ctx, "policy evaluation failed", "action", action, "error", err)
		return Denied(ReasonPolicyError)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Denied(ReasonPolicyError)
	}
	payload, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		e.logger.ErrorContext(ctx, "unexpected policy result", "type", fmt.Sprintf("%T", results[0].Expressions[0].Value))
		return Denied(ReasonPolicyError)
	}
	if allow, _ := payload["allow"].(bool); allow {
		return Allowed()
	}
	reason, _ := payload["reason"].(string)
	if reason == "" {
		reason = ReasonPolicyError
	}
	return Denied(reason)
}
