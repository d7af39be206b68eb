package stages

import (
	"context"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

// ChildWorkflowResult is what a spawned S14 child reports back.
type ChildWorkflowResult struct {
	Symbol     string
	WorkflowID string
	Score      float64
	Err        error
}

// ChildWorkflowLauncher starts an independent child workflow for symbol,
// beginning at S1 with the same EA source and patched parameters and the
// child's own multi-pair recursion disabled. Supplied by the orchestrator
// at construction — stages never import orchestrator, so the dependency
// runs through this function type instead of a direct call.
type ChildWorkflowLauncher func(ctx context.Context, symbol string) ChildWorkflowResult

// MultiPair is S14: optional, spawns one child workflow per configured
// additional symbol, sequentially by default to avoid contention on a
// single runner instance. Best-effort: one symbol's failure is isolated
// and does not fail the others or the parent.
type MultiPair struct {
	Cfg     config.Config
	Launch  ChildWorkflowLauncher
}

func (MultiPair) Name() string { return domain.StageMultiPair }

func (MultiPair) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if !state.HasStage(domain.StageBacktestSelected) {
		return false, []string{"backtest-selected must complete first"}
	}
	return true, nil
}

func (s MultiPair) Execute(ctx context.Context, state *domain.WorkflowState, _ runner.Runner) stage.Outcome {
	if !s.Cfg.AutoMultiPair || len(s.Cfg.AdditionalSymbols) == 0 {
		return stage.Outcome{Result: result(domain.StageMultiPair, true, map[string]interface{}{"skipped": true}, nil)}
	}

	var children []ChildWorkflowResult
	var childIDs []string
	var warnings []string

	for _, symbol := range s.Cfg.AdditionalSymbols {
		if symbol == state.Symbol {
			continue
		}
		if s.Launch == nil {
			warnings = append(warnings, "no child-workflow launcher configured, skipping "+symbol)
			continue
		}
		child := s.Launch(ctx, symbol)
		children = append(children, child)
		if child.Err != nil {
			warnings = append(warnings, "multi-pair child for "+symbol+" failed: "+child.Err.Error())
			continue
		}
		childIDs = append(childIDs, child.WorkflowID)
	}

	data := map[string]interface{}{
		"children":           children,
		"child-workflow-ids": childIDs,
		"warnings":           warnings,
	}
	return stage.Outcome{Result: result(domain.StageMultiPair, true, data, nil)}
}

var _ stage.Stage = MultiPair{}
