package orchestrator

import (
	"context"
	"fmt"

	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/stages"
)

// loadResumable loads workflowID and verifies it is actually suspended
// at want. A terminal workflow is returned unchanged (idempotent resume,
// spec §5: resuming a completed/failed workflow is a no-op).
func (e *Engine) loadResumable(ctx context.Context, workflowID string, want domain.Status) (*domain.WorkflowState, bool, error) {
	state, err := e.store.Load(ctx, workflowID)
	if err != nil {
		return nil, false, err
	}
	if state.Status.Terminal() {
		return state, false, nil
	}
	if state.Status != want {
		return state, false, fmt.Errorf("orchestrator: workflow %s is %s, not %s", workflowID, state.Status, want)
	}
	return state, true, nil
}

// ResumeWithParams supplies the wide-validation-params and
// optimization-ranges an awaiting-params workflow is blocked on, then
// continues dispatch into record-analyzed-params (spec §4.4 S4's
// Preconditions require WideValidationParams to already be populated).
func (e *Engine) ResumeWithParams(ctx context.Context, workflowID string, wideParams map[string]domain.Value, ranges []domain.OptimizationRange) (*domain.WorkflowState, error) {
	state, live, err := e.loadResumable(ctx, workflowID, domain.StatusAwaitingParams)
	if err != nil || !live {
		return state, err
	}

	state.WideValidationParams = wideParams
	state.OptimizationRanges = ranges
	state.Status = domain.StatusRunning

	return e.runFrom(ctx, state, domain.StageRecordAnalyzedParams)
}

// ResumeWithPatchedSource applies an externally-supplied patch to the EA
// source and restarts the pipeline at load-ea, bypassing stage.Registry
// dispatch for the repair step itself since stages.RepairEA's patch
// payload doesn't fit the uniform Stage.Execute signature (spec §4.4
// S5b). Fix-attempts and refine-iterations are preserved across the
// restart; every stage from S1 onward re-runs and its result replaces
// the prior one.
func (e *Engine) ResumeWithPatchedSource(ctx context.Context, workflowID, patchedSource string) (*domain.WorkflowState, error) {
	state, live, err := e.loadResumable(ctx, workflowID, domain.StatusAwaitingFix)
	if err != nil || !live {
		return state, err
	}

	repairResult, err := stages.RepairEA(state, patchedSource)
	if err != nil {
		return state, err
	}
	state = state.WithStageResult(repairResult)
	state.Status = domain.StatusRunning
	if err := e.store.Save(ctx, state); err != nil {
		return state, err
	}

	return e.runFrom(ctx, state, domain.StageLoadEA)
}

// ResumeWithRefineDecision supplies the agent's refine-or-proceed
// decision for an awaiting-refine-decision workflow. "proceed" continues
// into select-passes; refinedRanges (non-nil) restarts the sweep at
// create-ini with the supplied ranges, incrementing refine-iterations.
func (e *Engine) ResumeWithRefineDecision(ctx context.Context, workflowID, decision string, refinedRanges []domain.OptimizationRange) (*domain.WorkflowState, error) {
	state, live, err := e.loadResumable(ctx, workflowID, domain.StatusAwaitingRefineDecision)
	if err != nil || !live {
		return state, err
	}

	state.Status = domain.StatusRunning

	if decision != "proceed" && refinedRanges != nil {
		state = archiveOptimizationIteration(state)
		state.RefineIterations++
		e.metrics.RecordRefineIteration(state.WorkflowID)
		state.OptimizationRanges = refinedRanges
		if err := e.store.Save(ctx, state); err != nil {
			return state, err
		}
		return e.runFrom(ctx, state, domain.StageCreateINI)
	}

	if err := e.store.Save(ctx, state); err != nil {
		return state, err
	}
	return e.runFrom(ctx, state, domain.StageSelectPasses)
}

// ResumeWithSelection narrows an awaiting-selection workflow's selected
// passes to the caller's chosen subset and continues into
// backtest-selected. selectedIndices are positions into the select-
// passes stage's candidate list (state.SelectedPasses), not
// OptimizationPass.Index.
func (e *Engine) ResumeWithSelection(ctx context.Context, workflowID string, selectedIndices []int) (*domain.WorkflowState, error) {
	state, live, err := e.loadResumable(ctx, workflowID, domain.StatusAwaitingSelection)
	if err != nil || !live {
		return state, err
	}

	if !state.HasStage(domain.StageSelectPasses) {
		return state, fmt.Errorf("orchestrator: workflow %s has no select-passes result to narrow", workflowID)
	}
	all := state.SelectedPasses

	narrowed := make([]int, 0, len(selectedIndices))
	for _, i := range selectedIndices {
		if i < 0 || i >= len(all) {
			return state, fmt.Errorf("orchestrator: selection index %d out of range (%d candidates)", i, len(all))
		}
		narrowed = append(narrowed, all[i])
	}

	state.SelectedPasses = narrowed
	state.Status = domain.StatusRunning

	if err := e.store.Save(ctx, state); err != nil {
		return state, err
	}
	return e.runFrom(ctx, state, domain.StageBacktestSelected)
}
