// Package stage defines the Stage contract every concrete pipeline step
// implements, plus a Registry that looks stages up by name in pipeline
// order — grounded on the teacher's Node[S] interface (graph/node.go),
// specialized from an arbitrary state type to domain.WorkflowState and
// from a predicate-routed DAG to a fixed, named sequence.
package stage

import (
	"context"

	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
)

// Outcome is what a Stage's Execute returns: the result to record, and
// whether the orchestrator must suspend for external input before any
// later stage can run.
type Outcome struct {
	Result domain.StageResult

	// Pause is non-empty when the orchestrator must transition to the
	// named awaiting-* status and return control to the caller. Empty
	// means execution continues to the next stage.
	Pause domain.Status
}

// Stage is a named unit that reads a state snapshot, performs work
// against the Runner, and returns a StageResult. Execute must not mutate
// state; the orchestrator is the sole owner of WorkflowState mutation.
type Stage interface {
	// Name is the stage's entry in the spec §4.4 vocabulary.
	Name() string

	// Preconditions reports whether state is ready for this stage to
	// run, returning human-readable reasons when it is not.
	Preconditions(state *domain.WorkflowState) (ok bool, reasons []string)

	// Execute performs the stage's work. r is nil for purely offline
	// stages that never call the external runner.
	Execute(ctx context.Context, state *domain.WorkflowState, r runner.Runner) Outcome
}

// Registry looks stages up by name and preserves pipeline order.
type Registry struct {
	order []string
	byName map[string]Stage
}

// NewRegistry builds a Registry from stages in pipeline order.
func NewRegistry(stages ...Stage) *Registry {
	reg := &Registry{byName: make(map[string]Stage, len(stages))}
	for _, s := range stages {
		reg.order = append(reg.order, s.Name())
		reg.byName[s.Name()] = s
	}
	return reg
}

// Get returns the stage registered under name, or nil if unknown.
func (r *Registry) Get(name string) Stage {
	return r.byName[name]
}

// Order returns the registered stage names in pipeline order.
func (r *Registry) Order() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Next returns the stage name immediately following name in pipeline
// order, or "" when name is the last stage or unknown.
func (r *Registry) Next(name string) string {
	for i, n := range r.order {
		if n == name && i+1 < len(r.order) {
			return r.order[i+1]
		}
	}
	return ""
}
