// Package runner abstracts every interaction with the external evaluation
// engine (the proprietary trading terminal) behind three operations:
// compile, run-single and run-sweep. The real terminal process is out of
// scope; this package only defines the contract and a DryRun test double,
// grounded on the call-recording mock technique used throughout the
// retrieval pack for external-process boundaries.
package runner

import (
	"context"
	"time"

	"github.com/eastress/ea-stress-lab/domain"
)

// CompileResult is the outcome of compiling an EA source file.
type CompileResult struct {
	Success      bool
	CompiledPath string
	Errors       []string
	Warnings     []string
}

// RunResult is the outcome of a single backtest run.
type RunResult struct {
	Metrics      domain.TradeMetrics
	ArtifactPath string
	Equity       []float64
}

// SweepResult is the outcome of a parameter-sweep (optimization) run.
type SweepResult struct {
	PassCount    int
	Passes       []domain.OptimizationPass
	ArtifactPath string
}

// ProgressSink receives heartbeat callbacks during a long-running sweep
// so the caller can detect a silent hang (spec §5, suspension point v).
type ProgressSink func(elapsed time.Duration)

// Runner abstracts the external evaluation engine. No component outside
// this package and its DryRun implementation may call a real runner
// process; orchestrator tests use DryRun exclusively.
type Runner interface {
	// Compile invokes the editor/compiler on eaSourcePath.
	Compile(ctx context.Context, eaSourcePath string) (CompileResult, error)

	// RunSingle executes one backtest with a fixed parameter assignment.
	// reportHandle must be a collision-free, caller-supplied artifact
	// name (spec §5's deterministic report handle).
	RunSingle(ctx context.Context, req RunSingleRequest) (RunResult, error)

	// RunSweep executes a genetic optimization sweep.
	RunSweep(ctx context.Context, req RunSweepRequest, sink ProgressSink) (SweepResult, error)
}

// RunSingleRequest carries every input to a single backtest invocation.
type RunSingleRequest struct {
	EAPath       string
	Symbol       string
	Timeframe    string
	Parameters   map[string]domain.Value
	PeriodStart  time.Time
	PeriodEnd    time.Time
	LatencyMS    int
	DataModel    string // "ohlc" or "tick"
	ReportHandle string
}

// RunSweepRequest carries every input to an optimization sweep.
type RunSweepRequest struct {
	EAPath       string
	Symbol       string
	Timeframe    string
	Ranges       []domain.OptimizationRange
	PeriodStart  time.Time
	ForwardSplit time.Time
	PeriodEnd    time.Time
	ReportHandle string
	TimeoutSeconds int
}
