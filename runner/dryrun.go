package runner

import (
	"context"
	"sync"
)

// Call records one invocation against a DryRun runner: the method name
// and the request value passed in, for assertions in property and
// determinism tests.
type Call struct {
	Method  string
	Request interface{}
}

// DryRun satisfies Runner with pre-programmed responses and records every
// call it receives. No orchestrator test is permitted to invoke a real
// runner process; DryRun is the only implementation exercised by tests.
type DryRun struct {
	mu    sync.Mutex
	calls []Call

	CompileFunc  func(eaSourcePath string) (CompileResult, error)
	RunSingleFunc func(req RunSingleRequest) (RunResult, error)
	RunSweepFunc  func(req RunSweepRequest) (SweepResult, error)
}

// NewDryRun returns a DryRun with no programmed responses; callers set
// the Func fields before use.
func NewDryRun() *DryRun {
	return &DryRun{}
}

func (d *DryRun) record(method string, req interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Method: method, Request: req})
}

// Calls returns a copy of the recorded call log in invocation order.
func (d *DryRun) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *DryRun) Compile(_ context.Context, eaSourcePath string) (CompileResult, error) {
	d.record("Compile", eaSourcePath)
	if d.CompileFunc != nil {
		return d.CompileFunc(eaSourcePath)
	}
	return CompileResult{Success: true, CompiledPath: eaSourcePath + ".ex5"}, nil
}

func (d *DryRun) RunSingle(_ context.Context, req RunSingleRequest) (RunResult, error) {
	d.record("RunSingle", req)
	if d.RunSingleFunc != nil {
		return d.RunSingleFunc(req)
	}
	return RunResult{}, nil
}

func (d *DryRun) RunSweep(_ context.Context, req RunSweepRequest, sink ProgressSink) (SweepResult, error) {
	d.record("RunSweep", req)
	if sink != nil {
		sink(0)
	}
	if d.RunSweepFunc != nil {
		return d.RunSweepFunc(req)
	}
	return SweepResult{}, nil
}

var _ Runner = (*DryRun)(nil)
