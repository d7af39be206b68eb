package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/emit"
	"github.com/eastress/ea-stress-lab/stages"
)

// Start begins a brand-new workflow for one EA source/symbol pair and
// drives it to its first suspension point or to a terminal status.
func (e *Engine) Start(ctx context.Context, workflowID, symbol string) (*domain.WorkflowState, error) {
	state := domain.NewWorkflowState(workflowID, e.eaSourcePath, symbol, e.timeframe, e.runnerHandle, e.now())
	state.Status = domain.StatusRunning
	e.emitLifecycle(state, "workflow_start")
	return e.runFrom(ctx, state, "")
}

// Load retrieves a previously persisted workflow by id without advancing
// it, for callers that only need to inspect current status.
func (e *Engine) Load(ctx context.Context, workflowID string) (*domain.WorkflowState, error) {
	return e.store.Load(ctx, workflowID)
}

// runFrom walks the registry's stage order starting at startAt (or, when
// startAt is empty, at the first stage that has not yet produced a
// result) until it hits a suspension point, a fatal failure, or the end
// of the pipeline. A checkpoint is persisted after every stage, matching
// the teacher's per-step SaveCheckpoint discipline in graph/engine.go.
func (e *Engine) runFrom(ctx context.Context, state *domain.WorkflowState, startAt string) (*domain.WorkflowState, error) {
	order := e.registry.Order()

	idx := 0
	if startAt != "" {
		idx = indexOf(order, startAt)
		if idx < 0 {
			return state, fmt.Errorf("orchestrator: unknown stage %q", startAt)
		}
	} else {
		idx = firstIncomplete(order, state)
	}

	gateFailed := false

	for idx < len(order) {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		name := order[idx]
		st := e.registry.Get(name)

		if ok, reasons := st.Preconditions(state); !ok {
			state = state.RecordError(fmt.Sprintf("%s: preconditions not satisfied: %s", name, strings.Join(reasons, "; ")))
			return e.runGenerateReportsAndFail(ctx, state)
		}

		started := e.now()
		outcome := st.Execute(ctx, state, e.runner)
		outcome.Result.StartedAt = started
		outcome.Result.EndedAt = e.now()

		state = e.projectStageResult(state, outcome.Result)

		statusLabel := "success"
		if !outcome.Result.Success {
			statusLabel = "failure"
		}
		e.metrics.RecordStageLatency(name, statusLabel, outcome.Result.EndedAt.Sub(outcome.Result.StartedAt))
		if outcome.Result.Gate != nil {
			e.metrics.RecordGate(outcome.Result.Gate.Name, outcome.Result.Gate.Passed)
		}
		e.emitStageEvent(state, outcome.Result)

		// Fix-attempts loop: S2 and S5 both signal a recoverable
		// failure via Pause == StatusAwaitingFix, on either a gate
		// failure or a runner-protocol error (spec §7 propagation
		// policy and §4.4 S2/S5).
		if outcome.Pause == domain.StatusAwaitingFix {
			maxFix := e.cfg.MaxFixAttempts
			if maxFix == 0 {
				maxFix = 3
			}
			// A failure once the patch budget is spent is terminal; the
			// counter is only incremented when a pause is actually granted,
			// so the final failed state reports exactly maxFix attempts.
			if state.FixAttempts >= maxFix {
				state = state.RecordError(fmt.Sprintf("%s: fix-attempts exhausted (%d)", name, state.FixAttempts))
				return e.runGenerateReportsAndFail(ctx, state)
			}
			state.FixAttempts++
			e.metrics.RecordFixAttempt(name)
			state.Status = domain.StatusAwaitingFix
			return e.finish(ctx, state)
		}

		if outcome.Pause != "" {
			state.Status = outcome.Pause
			return e.finish(ctx, state)
		}

		if !outcome.Result.Success {
			switch categoryOf(name) {
			case categoryFatal:
				return e.runGenerateReportsAndFail(ctx, state)
			case categoryGateFatal:
				gateFailed = true
			}
		}

		// Refinement loop: S8b either paused above (auto-decide
		// disabled) or, with auto-decide enabled, reports its
		// recommendation in Data without pausing. The orchestrator
		// applies the refinement itself and restarts at S6.
		if name == domain.StageAnalyzeAndRefine && outcome.Result.Success {
			if refine, _ := outcome.Result.Data["refine"].(bool); refine {
				var err error
				state, err = e.applyRefinement(state, outcome.Result)
				if err != nil {
					return state, err
				}
				if err := e.store.Save(ctx, state); err != nil {
					return state, err
				}
				idx = indexOf(order, domain.StageCreateINI)
				continue
			}
		}

		if err := e.store.Save(ctx, state); err != nil {
			return state, err
		}
		idx++
	}

	if gateFailed {
		state.Status = domain.StatusFailed
	} else {
		state.Status = domain.StatusCompleted
	}
	return e.finish(ctx, state)
}

// runGenerateReportsAndFail runs generate-reports out of its normal pipeline
// position (if it has not already run this dispatch) before transitioning
// state to failed, so every terminal failure still yields a report artifact
// (spec §7, §4.4 S11's "always runs, even when gates failed"). The
// gate-fatal path reaches S11 naturally by continuing the main loop; this
// covers the categoryFatal, fix-attempts-exhausted, and preconditions-not-
// satisfied paths, which otherwise return before S11's place in the order.
func (e *Engine) runGenerateReportsAndFail(ctx context.Context, state *domain.WorkflowState) (*domain.WorkflowState, error) {
	if !state.HasStage(domain.StageGenerateReports) {
		if st := e.registry.Get(domain.StageGenerateReports); st != nil {
			started := e.now()
			outcome := st.Execute(ctx, state, e.runner)
			outcome.Result.StartedAt = started
			outcome.Result.EndedAt = e.now()
			state = e.projectStageResult(state, outcome.Result)
			e.emitStageEvent(state, outcome.Result)
		}
	}
	state.Status = domain.StatusFailed
	return e.finish(ctx, state)
}

// finish persists the final state of this dispatch call, records a
// terminal-status metric when the workflow has actually reached one, and
// emits a lifecycle event.
func (e *Engine) finish(ctx context.Context, state *domain.WorkflowState) (*domain.WorkflowState, error) {
	if err := e.store.Save(ctx, state); err != nil {
		return state, err
	}
	if state.Status.Terminal() {
		e.metrics.RecordWorkflowTerminal(string(state.Status))
	}
	e.emitLifecycle(state, "workflow_"+string(state.Status))
	return state, nil
}

// applyRefinement folds S8b's per-parameter recommendations into a new
// optimization-ranges set and archives the just-completed sweep into
// OptimizationHistory before the loop restarts at S6 (spec §4.4 S8b: "a
// refine decision returns control to S6 with the refined ranges").
func (e *Engine) applyRefinement(state *domain.WorkflowState, result domain.StageResult) (*domain.WorkflowState, error) {
	analyses, _ := result.Data["analyses"].([]stages.ParamAnalysis)

	byName := make(map[string]stages.ParamAnalysis, len(analyses))
	for _, a := range analyses {
		byName[a.Name] = a
	}

	refined := make([]domain.OptimizationRange, 0, len(state.OptimizationRanges))
	for _, r := range state.OptimizationRanges {
		a, ok := byName[r.Name]
		if !ok || !r.Optimize {
			refined = append(refined, r)
			continue
		}
		switch a.Recommendation {
		case stages.RecNarrow:
			if a.SuggestedRange != nil {
				refined = append(refined, *a.SuggestedRange)
			} else {
				refined = append(refined, r)
			}
		case stages.RecWiden:
			span := r.Stop - r.Start
			refined = append(refined, domain.OptimizationRange{
				Name: r.Name, Optimize: true,
				Start: r.Start - span*0.5,
				Stop:  r.Stop + span*0.5,
				Step:  r.Step,
			})
		case stages.RecFixTrue:
			refined = append(refined, domain.OptimizationRange{Name: r.Name, Optimize: false, Fixed: domain.BoolValue(true)})
		case stages.RecFixFalse:
			refined = append(refined, domain.OptimizationRange{Name: r.Name, Optimize: false, Fixed: domain.BoolValue(false)})
		default:
			refined = append(refined, r)
		}
	}

	state = archiveOptimizationIteration(state)
	state.RefineIterations++
	e.metrics.RecordRefineIteration(state.WorkflowID)
	state.OptimizationRanges = refined
	return state, nil
}

// archiveOptimizationIteration snapshots the just-completed S6->S7->S8
// round into OptimizationHistory before the refinement loop overwrites the
// ranges and pass table.
func archiveOptimizationIteration(state *domain.WorkflowState) *domain.WorkflowState {
	if !state.HasStage(domain.StageParseResults) {
		return state
	}
	runRes := state.StageResults[domain.StageRunOptimization]
	artifactPath, _ := runRes.Data["artifact-path"].(string)
	state.OptimizationHistory = append(state.OptimizationHistory, domain.OptimizationIteration{
		Iteration:    state.RefineIterations,
		Ranges:       state.OptimizationRanges,
		Passes:       state.PassTable,
		ArtifactPath: artifactPath,
	})
	return state
}

func (e *Engine) emitStageEvent(state *domain.WorkflowState, sr domain.StageResult) {
	e.emitter.Emit(emit.Event{
		RunID:     state.WorkflowID,
		Step:      len(state.StageOrder),
		StageName: sr.StageName,
		Msg:       "stage_end",
		Meta: map[string]interface{}{
			"success":     sr.Success,
			"duration_ms": sr.EndedAt.Sub(sr.StartedAt).Milliseconds(),
			"status":      string(state.Status),
		},
	})
}

func (e *Engine) emitLifecycle(state *domain.WorkflowState, msg string) {
	e.emitter.Emit(emit.Event{
		RunID: state.WorkflowID,
		Msg:   msg,
		Meta:  map[string]interface{}{"status": string(state.Status)},
	})
}

func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

// firstIncomplete returns the index of the first stage in order that has
// not yet recorded a result, or len(order) if every stage has.
func firstIncomplete(order []string, state *domain.WorkflowState) int {
	for i, n := range order {
		if !state.HasStage(n) {
			return i
		}
	}
	return len(order)
}

// projectStageResult records sr and, for stages whose output other
// stages read directly off WorkflowState fields (rather than off the
// StageResult map), copies the relevant Data value into that field. This
// mirrors which stages read state.ModifiedEAPath / ExtractedParameters /
// OptimizationRanges / BestPass / MonteCarlo / StressResults /
// ForwardWindows / ChildWorkflowIDs directly.
func (e *Engine) projectStageResult(state *domain.WorkflowState, sr domain.StageResult) *domain.WorkflowState {
	state = state.WithStageResult(sr)
	if !sr.Success {
		return state
	}

	switch sr.StageName {
	case domain.StageInjectInstrumentation, domain.StageInjectSafety:
		if p, ok := sr.Data["modified-ea-path"].(string); ok {
			state.ModifiedEAPath = p
		}
	case domain.StageCompile:
		if p, ok := sr.Data["compiled-ea-path"].(string); ok {
			state.CompiledEAPath = p
		}
	case domain.StageExtractParams:
		if params, ok := sr.Data["extracted-parameters"].([]domain.Parameter); ok {
			state.ExtractedParameters = params
		}
	case domain.StageRecordAnalyzedParams:
		if ranges, ok := sr.Data["optimization-ranges"].([]domain.OptimizationRange); ok {
			state.OptimizationRanges = ranges
		}
	case domain.StageValidateTrades:
		if n, ok := sr.Data["validation-trades"].(int); ok {
			state.ValidationTrades = n
		}
	case domain.StageRunOptimization:
		if count, ok := sr.Data["pass-count"].(int); ok {
			e.metrics.RecordSweepPassCount(count)
		}
	case domain.StageParseResults:
		if passes, ok := sr.Data["sorted-pass-table"].([]domain.OptimizationPass); ok {
			state.PassTable = passes
		}
	case domain.StageSelectPasses:
		if selected, ok := sr.Data["selected-passes"].([]domain.OptimizationPass); ok {
			indices := make([]int, len(selected))
			for i, p := range selected {
				indices[i] = p.Index
			}
			state.SelectedPasses = indices
		}
	case domain.StageBacktestSelected:
		if best, ok := sr.Data["best-pass"].(domain.BacktestedPass); ok {
			b := best
			state.BestPass = &b
		}
	case domain.StageMonteCarlo:
		if mc, ok := sr.Data["monte-carlo"].(domain.MonteCarloResult); ok {
			m := mc
			state.MonteCarlo = &m
		}
	case domain.StageStressScenarios:
		if results, ok := sr.Data["stress-results"].([]domain.StressResult); ok {
			state.StressResults = results
		}
	case domain.StageForwardWindows:
		if results, ok := sr.Data["forward-windows"].([]domain.ForwardWindowResult); ok {
			state.ForwardWindows = results
		}
	case domain.StageMultiPair:
		if ids, ok := sr.Data["child-workflow-ids"].([]string); ok {
			state.ChildWorkflowIDs = append(state.ChildWorkflowIDs, ids...)
		}
	}
	return state
}

