package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/emit"
	"github.com/eastress/ea-stress-lab/metrics"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
	"github.com/eastress/ea-stress-lab/stages"
	"github.com/eastress/ea-stress-lab/store"
)

// defaultSafetyDefaults mirrors the permissive-by-default value S1c
// writes into the injected safety inputs.
func defaultSafetyDefaults() map[string]domain.Value {
	return map[string]domain.Value{
		"MaxSpreadPips":   domain.RealValue(0),
		"MaxSlippagePips": domain.RealValue(0),
	}
}

// Options configures a new Engine. An Engine is scoped to one EA source
// file and one runner handle; S14 multi-pair varies only the symbol
// across child Engines built from the same source (spec §4.4 S14: "the
// same source and patched parameters").
type Options struct {
	Cfg     config.Config
	Store   store.Store
	Runner  runner.Runner
	Emitter emit.Emitter
	Metrics *metrics.Collector
	Now     func() time.Time

	EASourcePath string
	RunnerHandle string
	Timeframe    string

	OutputDir      string
	RunnerExecPath string

	AnchorTime   time.Time
	PeriodStart  time.Time
	ForwardSplit time.Time
	PeriodEnd    time.Time

	TickArchive    stages.TickArchivePresence
	PipValuePerLot float64

	// SafetyDefaults overrides the values pinned for the injected
	// safety inputs. Defaults to permissive (0/0) if nil.
	SafetyDefaults map[string]domain.Value
}

// Engine drives domain.WorkflowState through the named stage sequence,
// checkpointing after every stage and suspending at the pause points
// stages report via stage.Outcome.Pause — grounded on the teacher's
// Engine[S].Run (graph/engine.go): a sequential loop over ordered steps,
// persisting a checkpoint each iteration and stopping early on a routing
// signal, here a named Status rather than a predicate edge.
type Engine struct {
	registry *stage.Registry
	store    store.Store
	runner   runner.Runner
	emitter  emit.Emitter
	metrics  *metrics.Collector
	cfg      config.Config
	now      func() time.Time

	eaSourcePath string
	runnerHandle string
	timeframe    string
}

// New builds an Engine and wires every stage's dependencies, including a
// ChildWorkflowLauncher for S14 that spawns an independent child Engine
// over the same EA source with multi-pair recursion disabled.
func New(opts Options) *Engine {
	e := &Engine{
		store:        opts.Store,
		runner:       opts.Runner,
		emitter:      opts.Emitter,
		metrics:      opts.Metrics,
		cfg:          opts.Cfg,
		now:          opts.Now,
		eaSourcePath: opts.EASourcePath,
		runnerHandle: opts.RunnerHandle,
		timeframe:    opts.Timeframe,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.emitter == nil {
		e.emitter = emit.NewNullEmitter()
	}
	if e.store == nil {
		e.store = store.NewMemStore()
	}

	safetyDefaults := opts.SafetyDefaults
	if safetyDefaults == nil {
		safetyDefaults = defaultSafetyDefaults()
	}

	janitor := runner.NewProcessJanitor(opts.RunnerExecPath)

	e.registry = stage.NewRegistry(
		stages.LoadEA{},
		stages.InjectInstrumentation{ExplorationMinTrades: opts.Cfg.ExplorationMinTrades},
		stages.InjectSafety{},
		stages.Compile{},
		stages.ExtractParams{},
		stages.RecordAnalyzedParams{SafetyDefaults: safetyDefaults},
		stages.ValidateTrades{MinTrades: opts.Cfg.MinTrades, PeriodStart: opts.PeriodStart, PeriodEnd: opts.PeriodEnd},
		stages.CreateINI{Cfg: opts.Cfg, Now: e.now, OutputDir: opts.OutputDir},
		stages.RunOptimization{Cfg: opts.Cfg, Emitter: e.emitter, Janitor: janitor, PeriodStart: opts.PeriodStart, ForwardSplit: opts.ForwardSplit, PeriodEnd: opts.PeriodEnd},
		stages.ParseResults{Cfg: opts.Cfg},
		stages.AnalyzeAndRefine{Cfg: opts.Cfg},
		stages.SelectPasses{Cfg: opts.Cfg},
		stages.BacktestSelected{Cfg: opts.Cfg, PeriodStart: opts.PeriodStart, PeriodEnd: opts.PeriodEnd, SafetyDefaults: safetyDefaults},
		stages.MonteCarlo{Cfg: opts.Cfg},
		stages.GenerateReports{Cfg: opts.Cfg, OutputDir: opts.OutputDir},
		stages.StressScenarios{Cfg: opts.Cfg, AnchorTime: opts.AnchorTime, TickArchive: opts.TickArchive, PipValuePerLot: opts.PipValuePerLot, SafetyDefaults: safetyDefaults},
		stages.ForwardWindows{Cfg: opts.Cfg, AnchorTime: opts.AnchorTime, PeriodStart: opts.PeriodStart, ForwardSplit: opts.ForwardSplit, PeriodEnd: opts.PeriodEnd},
		stages.MultiPair{Cfg: opts.Cfg, Launch: e.launchChild(opts)},
	)
	return e
}

// launchChild returns a ChildWorkflowLauncher that spawns an independent
// Engine over the same EA source for one additional symbol, with the
// child's own multi-pair recursion disabled so a misconfigured
// AdditionalSymbols list can never recurse into a third generation.
func (e *Engine) launchChild(opts Options) stages.ChildWorkflowLauncher {
	return func(ctx context.Context, symbol string) stages.ChildWorkflowResult {
		childCfg := opts.Cfg
		childCfg.AutoMultiPair = false
		childCfg.AdditionalSymbols = nil

		childOpts := opts
		childOpts.Cfg = childCfg
		child := New(childOpts)

		workflowID := fmt.Sprintf("%s-%s-%s", opts.RunnerHandle, symbol, e.now().Format("20060102150405"))
		state, err := child.Start(ctx, workflowID, symbol)
		if err != nil {
			return stages.ChildWorkflowResult{Symbol: symbol, WorkflowID: workflowID, Err: err}
		}
		score := 0.0
		if state.BestPass != nil {
			score = state.BestPass.Score
		}
		return stages.ChildWorkflowResult{Symbol: symbol, WorkflowID: workflowID, Score: score}
	}
}
