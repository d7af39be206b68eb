package stages

import (
	"context"
	"os"
	"sort"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

// ParseResults is S8: load the sweep artifact, normalize and merge rows,
// filter by the adaptive trade-count threshold, and sort the surviving
// passes by descending combined metric. No composite score is computed
// at this stage.
type ParseResults struct {
	Cfg config.Config
}

func (ParseResults) Name() string { return domain.StageParseResults }

func (ParseResults) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if !state.HasStage(domain.StageRunOptimization) {
		return false, []string{"run-optimization must complete first"}
	}
	return true, nil
}

func (s ParseResults) Execute(_ context.Context, state *domain.WorkflowState, _ runner.Runner) stage.Outcome {
	sweepResult, ok := state.StageResults[domain.StageRunOptimization]
	if !ok {
		return stage.Outcome{Result: fatal(domain.StageParseResults, domain.ErrCodeValidation, "no run-optimization result to parse", nil)}
	}

	var passes []domain.OptimizationPass
	if artifactPath, _ := sweepResult.Data["artifact-path"].(string); artifactPath != "" {
		if content, err := os.ReadFile(artifactPath); err == nil {
			passes = ParseSweepArtifact(string(content))
		}
	}
	if passes == nil {
		if raw, ok := sweepResult.Data["passes"].([]domain.OptimizationPass); ok {
			passes = raw
		}
	}

	floor := adaptiveTradeFloor(state.ValidationTrades, s.Cfg.ExplorationMinTrades, s.Cfg.MinTrades)

	// Score is not computed here: the real Go-Live Score needs per-pass
	// TradeMetrics that only exist after S9 backtests the selected
	// passes. S8 ranks on the runner's own criterion instead.
	filtered := make([]domain.OptimizationPass, 0, len(passes))
	for _, p := range passes {
		if p.Trades < floor {
			continue
		}
		filtered = append(filtered, p)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CombinedMetric > filtered[j].CombinedMetric
	})

	data := map[string]interface{}{
		"sorted-pass-table":  filtered,
		"adaptive-trade-floor": floor,
	}
	return stage.Outcome{Result: result(domain.StageParseResults, true, data, nil)}
}

var _ stage.Stage = ParseResults{}
