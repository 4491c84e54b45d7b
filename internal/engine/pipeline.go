// Package engine implements the ordered decision pipeline and the scoring
// of personalized rules. The pipeline holds no call-scoped mutable state;
// every Run is a pure function of its inputs plus shared read state, so it
// is safe under arbitrary concurrency.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"authgate/internal/catalog"
	"authgate/internal/domain"
	"authgate/internal/rules"
)

// Step is one named, ordered unit of the decision pipeline. Evaluate
// returns a non-nil decision to terminate the pipeline, or (nil, nil) to
// fall through to the next step.
type Step interface {
	Name() string
	Evaluate(ctx context.Context, req domain.AccessRequest, tr *Trace) (*domain.Decision, error)
}

// Trace accumulates ordered human-readable markers while a traced call
// runs. A nil Trace discards everything, so steps can append
// unconditionally.
type Trace struct {
	lines []string
}

// Add appends a marker. Safe on a nil receiver.
func (t *Trace) Add(line string) {
	if t == nil {
		return
	}
	t.lines = append(t.lines, line)
}

// Lines returns the accumulated markers. Nil receiver yields nil.
func (t *Trace) Lines() []string {
	if t == nil {
		return nil
	}
	return t.lines
}

// Deps are the collaborators the default steps consult.
type Deps struct {
	Accounts AccountProvider
	Rules    rules.Store
	Catalog  *catalog.Provider
}

// Pipeline evaluates ordered steps until one is definitive. The step list
// is copy-on-write: readers load an immutable snapshot, writers swap in a
// new slice under the mutex. Readers never observe a partial mutation.
type Pipeline struct {
	mu       sync.Mutex
	steps    atomic.Pointer[[]Step]
	registry map[string]Step

	logger  *slog.Logger
	errSink func(step string, err error)
	now     func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithErrorSink registers a callback invoked for every step failure, after
// logging and before the failure is downgraded to an exception decision.
func WithErrorSink(sink func(step string, err error)) Option {
	return func(p *Pipeline) {
		p.errSink = sink
	}
}

// WithImplicitGrants overrides the fixed action sets granted per inferred
// relationship.
func WithImplicitGrants(grants map[domain.Relationship][]string) Option {
	return func(p *Pipeline) {
		if step, ok := p.registry[StepImplicit].(*implicitStep); ok {
			step.grants = grants
		}
	}
}

// WithClock sets the time source for rule validity windows and block
// expiry. Tests inject a fixed clock.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New builds a pipeline with the default step order: account gates,
// personalized, role, implicit, default.
func New(deps Deps, opts ...Option) *Pipeline {
	p := &Pipeline{
		logger: slog.Default(),
		now:    time.Now,
	}

	defaults := []Step{
		&accountGatesStep{accounts: deps.Accounts, catalog: deps.Catalog, pipeline: p},
		&personalizedStep{rules: deps.Rules, pipeline: p},
		&roleStep{accounts: deps.Accounts, catalog: deps.Catalog},
		&implicitStep{accounts: deps.Accounts, grants: defaultImplicitGrants()},
		&defaultStep{},
	}
	p.registry = make(map[string]Step, len(defaults))
	for _, step := range defaults {
		p.registry[step.Name()] = step
	}

	for _, opt := range opts {
		opt(p)
	}

	active := make([]Step, len(defaults))
	copy(active, defaults)
	p.steps.Store(&active)
	return p
}

// Run evaluates the pipeline for one request. It never returns an error:
// step failures and panics are downgraded to a deny decision with source
// "exception". When withTrace is set the returned decision carries the
// ordered trace markers.
func (p *Pipeline) Run(ctx context.Context, req domain.AccessRequest, withTrace bool) domain.Decision {
	var tr *Trace
	if withTrace {
		tr = &Trace{}
	}

	steps := *p.steps.Load()
	for _, step := range steps {
		decision, err := p.evalStep(ctx, step, req, tr)
		if err != nil {
			p.logger.ErrorContext(ctx, "pipeline step failed",
				"step", step.Name(),
				"action", req.Action,
				"user_id", req.User,
				"error", err,
			)
			if p.errSink != nil {
				p.errSink(step.Name(), err)
			}
			tr.Add(fmt.Sprintf("exception: step=%s", step.Name()))
			return domain.Decision{
				Allowed: false,
				Source:  domain.SourceException,
				Reason:  fmt.Sprintf("internal error in step %s", step.Name()),
				Trace:   tr.Lines(),
			}
		}
		if decision != nil {
			decision.Trace = tr.Lines()
			return *decision
		}
	}

	// Only reachable when the default step has been removed at runtime.
	// Fail closed without the default step's trace marker.
	return domain.Decision{
		Allowed: false,
		Source:  domain.SourceDefault,
		Reason:  "no applicable rule",
		Trace:   tr.Lines(),
	}
}

// evalStep confines panics to the step boundary.
func (p *Pipeline) evalStep(ctx context.Context, step Step, req domain.AccessRequest, tr *Trace) (decision *domain.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			decision = nil
			err = fmt.Errorf("%w: %s panicked: %v", ErrStepFailed, step.Name(), r)
		}
	}()
	return step.Evaluate(ctx, req, tr)
}

// AddStep appends a registered step implementation to the active order.
// Rejects names already present in the order and names with no registered
// implementation.
func (p *Pipeline) AddStep(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	step, ok := p.registry[name]
	if !ok {
		return fmt.Errorf("unknown pipeline step %q", name)
	}
	current := *p.steps.Load()
	for _, s := range current {
		if s.Name() == name {
			return fmt.Errorf("pipeline step %q already present", name)
		}
	}

	next := make([]Step, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, step)
	p.steps.Store(&next)
	return nil
}

// RemoveStep removes a step from the active order by name.
func (p *Pipeline) RemoveStep(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := *p.steps.Load()
	for i, s := range current {
		if s.Name() == name {
			next := make([]Step, 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			p.steps.Store(&next)
			return nil
		}
	}
	return fmt.Errorf("pipeline step %q not present", name)
}

// ListSteps returns the active step names in evaluation order.
func (p *Pipeline) ListSteps() []string {
	current := *p.steps.Load()
	names := make([]string, len(current))
	for i, s := range current {
		names[i] = s.Name()
	}
	return names
}

// DebugPersonalized reports how every rule for (user, action) fared in
// candidacy filtering and scoring, without touching any cache.
func (p *Pipeline) DebugPersonalized(ctx context.Context, req domain.AccessRequest) ([]RuleScore, error) {
	p.mu.Lock()
	step, ok := p.registry[StepPersonalized].(*personalizedStep)
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("personalized step not registered")
	}
	all, err := step.rules.ListForUserAction(ctx, req.User, req.Action)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuleStore, err)
	}
	return DebugScores(all, req, p.now()), nil
}

// RegisterStep makes a custom step implementation available to AddStep.
// Registering a name twice is rejected so built-in steps cannot be
// shadowed.
func (p *Pipeline) RegisterStep(step Step) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.registry[step.Name()]; ok {
		return fmt.Errorf("pipeline step %q already registered", step.Name())
	}
	p.registry[step.Name()] = step
	return nil
}
