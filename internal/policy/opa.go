package policy

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/jaqcquesndav/Wanzo-admin/internal/config"
)

// decisionQuery reads the console package as one object so that bundles which
// omit reason still evaluate.
const decisionQuery = `decision := {"allow": object.get(data.wanzo.console, "allow", false), "reason": object.get(data.wanzo.console, "reason", "")}`

const defaultEvaluationTimeout = 100 * time.Millisecond

//go:embed default.rego
var defaultPolicy string

// Input is the document policies see as input.
type Input struct {
	Role   string `json:"role"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Allow  bool
	Reason string
}

func deny(reason string) Decision { return Decision{Reason: reason} }

// Evaluator decides console route access by role using OPA. Policies come from
// a bundle directory or, without one, from the built-in policy.
type Evaluator struct {
	cfg func() config.PolicyConfig

	mu       sync.RWMutex
	prepared *rego.PreparedEvalQuery
	source   string
}

// NewEvaluator creates an evaluator with nothing compiled; it denies every
// request until Load succeeds.
func NewEvaluator(cfg func() config.PolicyConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

func (e *Evaluator) Enabled() bool { return e.cfg().Enabled }

// Source names where the compiled policies came from.
func (e *Evaluator) Source() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.source
}

// Load compiles the configured policies. On failure the previously compiled
// policies stay in effect.
func (e *Evaluator) Load() error {
	bundle := e.cfg().BundlePath
	modules := map[string]string{"default.rego": defaultPolicy}
	source := "builtin"

	if bundle != "" {
		found, err := LoadRegoFiles(bundle)
		if err != nil {
			return fmt.Errorf("load rego files: %w", err)
		}
		if len(found) == 0 {
			slog.Warn("policy bundle has no rego files, using built-in policy", "path", bundle)
		} else {
			modules, source = found, bundle
		}
	}

	if err := e.compile(modules, source); err != nil {
		return err
	}
	slog.Info("opa policies loaded", "modules", len(modules), "source", source)
	return nil
}

// LoadFromModules compiles the given module sources, keyed by file name.
func (e *Evaluator) LoadFromModules(modules map[string]string) error {
	return e.compile(modules, "modules")
}

func (e *Evaluator) compile(modules map[string]string, source string) error {
	opts := []func(*rego.Rego){rego.Query(decisionQuery)}
	for name, src := range modules {
		opts = append(opts, rego.Module(name, src))
	}

	prepared, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("prepare rego: %w", err)
	}

	e.mu.Lock()
	e.prepared = &prepared
	e.source = source
	e.mu.Unlock()
	return nil
}

// Evaluate decides one request. Missing policies and malformed results deny.
func (e *Evaluator) Evaluate(ctx context.Context, input Input) (Decision, error) {
	e.mu.RLock()
	prepared := e.prepared
	e.mu.RUnlock()

	if prepared == nil {
		return deny("no policies loaded"), nil
	}

	timeout := e.cfg().EvaluationTimeout
	if timeout <= 0 {
		timeout = defaultEvaluationTimeout
	}
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rs, err := prepared.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		return deny("policy evaluation error"), fmt.Errorf("evaluate policy: %w", err)
	}
	if len(rs) == 0 {
		return deny("no policy result"), nil
	}

	out, ok := rs[0].Bindings["decision"].(map[string]interface{})
	if !ok {
		return deny("unexpected policy result format"), nil
	}
	allow, _ := out["allow"].(bool)
	reason, _ := out["reason"].(string)
	return Decision{Allow: allow, Reason: reason}, nil
}
