package domain

import "time"

// Status is a workflow's position in the state machine from spec §4.4/§5.
type Status string

const (
	StatusPending                Status = "pending"
	StatusRunning                Status = "running"
	StatusAwaitingParams         Status = "awaiting-params"
	StatusAwaitingFix            Status = "awaiting-fix"
	StatusAwaitingSelection      Status = "awaiting-selection"
	StatusAwaitingRefineDecision Status = "awaiting-refine-decision"
	StatusCompleted              Status = "completed"
	StatusFailed                 Status = "failed"
)

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage name vocabulary (spec §4.4), in pipeline order.
const (
	StageLoadEA               = "load-ea"
	StageInjectInstrumentation = "inject-instrumentation"
	StageInjectSafety          = "inject-safety"
	StageCompile               = "compile"
	StageExtractParams         = "extract-params"
	StageRecordAnalyzedParams  = "record-analyzed-params"
	StageValidateTrades        = "validate-trades"
	StageRepairEA              = "repair-ea"
	StageCreateINI             = "create-ini"
	StageRunOptimization       = "run-optimization"
	StageParseResults          = "parse-results"
	StageAnalyzeAndRefine      = "analyze-and-refine"
	StageSelectPasses          = "select-passes"
	StageBacktestSelected      = "backtest-selected"
	StageMonteCarlo            = "monte-carlo"
	StageGenerateReports       = "generate-reports"
	StageStressScenarios       = "stress-scenarios"
	StageForwardWindows        = "forward-windows"
	StageMultiPair             = "multi-pair"
)

// OptimizationPass is one row of a sweep result, after S8's per-pass merge.
type OptimizationPass struct {
	Index          int
	BackMetric     float64
	ForwardMetric  float64
	CombinedMetric float64
	CriterionValue float64
	Trades         int
	Assignment     map[string]Value
	Score          float64
}

// OptimizationIteration records one S6->S7->S8 round of the sweep, so the
// refinement loop has a full history to inspect and S8b can compare the
// current round against the prior one.
type OptimizationIteration struct {
	Iteration  int
	Ranges     []OptimizationRange
	Passes     []OptimizationPass
	ArtifactPath string
}

// BacktestedPass is one of the selected passes after S9 re-runs it with
// run-single and computes gates against it.
type BacktestedPass struct {
	PassIndex int
	Metrics   TradeMetrics
	Score     float64
	Gates     []GateResult
}

// MonteCarloResult is S10's aggregate output.
type MonteCarloResult struct {
	Iterations        int
	RuinProbability   float64
	Confidence        float64
	ProfitPercentiles map[int]float64
	DrawdownPercentiles map[int]float64
	EstimatedTrades   bool
}

// StressResult is one S12 scenario outcome.
type StressResult struct {
	Name        string
	Model       string // "ohlc" or "tick"
	LatencyMS   int
	WindowStart time.Time
	WindowEnd   time.Time
	Metrics     TradeMetrics
	MissingTickMonths []string
}

// ForwardWindowResult is one S13 offline window slice.
type ForwardWindowResult struct {
	Name        string
	WindowStart time.Time
	WindowEnd   time.Time
	StartingBalance float64
	Metrics     TradeMetrics
}

// WorkflowState is the orchestrator-owned root record. Stages read a
// snapshot and return a StageResult; nothing but the orchestrator ever
// mutates it (spec §3 Ownership).
type WorkflowState struct {
	WorkflowID    string
	EASourcePath  string
	Symbol        string
	Timeframe     string
	RunnerHandle  string
	CreatedAt     time.Time

	Status Status

	// StageResults preserves insertion order via StageOrder alongside the
	// map, so "insertion order = execution order" holds without relying
	// on Go's unordered map iteration.
	StageResults map[string]StageResult
	StageOrder   []string

	ModifiedEAPath       string
	CompiledEAPath       string
	ExtractedParameters  []Parameter
	WideValidationParams map[string]Value
	ValidationTrades     int
	OptimizationRanges   []OptimizationRange
	OptimizationHistory  []OptimizationIteration

	// PassTable is the current iteration's sorted, filtered pass table and
	// SelectedPasses the chosen pass indices into it. Both live on the root
	// record (not in StageResult.Data) because they must survive the
	// store's JSON round-trip across the awaiting-refine-decision and
	// awaiting-selection suspensions with their types intact.
	PassTable      []OptimizationPass
	SelectedPasses []int
	BestPass             *BacktestedPass
	MonteCarlo           *MonteCarloResult
	StressResults        []StressResult
	ForwardWindows       []ForwardWindowResult
	ChildWorkflowIDs     []string

	FixAttempts      int
	RefineIterations int

	Errors []string
}

// NewWorkflowState builds a fresh pending workflow for one EA source.
func NewWorkflowState(workflowID, eaSourcePath, symbol, timeframe, runnerHandle string, now time.Time) *WorkflowState {
	return &WorkflowState{
		WorkflowID:           workflowID,
		EASourcePath:         eaSourcePath,
		Symbol:               symbol,
		Timeframe:            timeframe,
		RunnerHandle:         runnerHandle,
		CreatedAt:            now,
		Status:               StatusPending,
		StageResults:         make(map[string]StageResult),
		WideValidationParams: make(map[string]Value),
	}
}

// Clone returns a deep-enough copy for a stage snapshot: stages never
// mutate the root, so each gets its own copy of the mutable collections.
func (w *WorkflowState) Clone() *WorkflowState {
	c := *w
	c.StageResults = make(map[string]StageResult, len(w.StageResults))
	for k, v := range w.StageResults {
		c.StageResults[k] = v
	}
	c.StageOrder = append([]string(nil), w.StageOrder...)
	c.ExtractedParameters = append([]Parameter(nil), w.ExtractedParameters...)
	c.WideValidationParams = make(map[string]Value, len(w.WideValidationParams))
	for k, v := range w.WideValidationParams {
		c.WideValidationParams[k] = v
	}
	c.OptimizationRanges = append([]OptimizationRange(nil), w.OptimizationRanges...)
	c.OptimizationHistory = append([]OptimizationIteration(nil), w.OptimizationHistory...)
	c.PassTable = append([]OptimizationPass(nil), w.PassTable...)
	c.SelectedPasses = append([]int(nil), w.SelectedPasses...)
	c.StressResults = append([]StressResult(nil), w.StressResults...)
	c.ForwardWindows = append([]ForwardWindowResult(nil), w.ForwardWindows...)
	c.ChildWorkflowIDs = append([]string(nil), w.ChildWorkflowIDs...)
	c.Errors = append([]string(nil), w.Errors...)
	return &c
}

// WithStageResult returns a new state with sr recorded, preserving
// insertion order on first write and replacing in place on a re-run
// (e.g. S5b restarting the pipeline at S1 with counters retained).
func (w *WorkflowState) WithStageResult(sr StageResult) *WorkflowState {
	c := w.Clone()
	if _, exists := c.StageResults[sr.StageName]; !exists {
		c.StageOrder = append(c.StageOrder, sr.StageName)
	}
	c.StageResults[sr.StageName] = sr
	return c
}

// HasStage reports whether the named stage has already produced a result.
func (w *WorkflowState) HasStage(name string) bool {
	_, ok := w.StageResults[name]
	return ok
}

// RecordError appends a structured failure message to the ordered error
// log without mutating the receiver.
func (w *WorkflowState) RecordError(msg string) *WorkflowState {
	c := w.Clone()
	c.Errors = append(c.Errors, msg)
	return c
}
