package stages

import (
	"context"
	"fmt"
	"sort"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

// SelectPasses is S8c: pick up to Cfg.TopNBacktest passes for S9's
// real backtest pass, deduplicating identical parameter assignments so
// duplicate passes don't crowd out diverse candidates. Assignments that
// differ in any value are kept as separate candidates.
type SelectPasses struct {
	Cfg config.Config
}

func (SelectPasses) Name() string { return domain.StageSelectPasses }

func (SelectPasses) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if !state.HasStage(domain.StageParseResults) {
		return false, []string{"parse-results must complete first"}
	}
	return true, nil
}

func (s SelectPasses) Execute(_ context.Context, state *domain.WorkflowState, _ runner.Runner) stage.Outcome {
	passes := state.PassTable

	sorted := make([]domain.OptimizationPass, len(passes))
	copy(sorted, passes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CombinedMetric > sorted[j].CombinedMetric
	})

	topN := s.Cfg.TopNBacktest
	if topN == 0 {
		topN = 20
	}

	seen := map[string]bool{}
	selected := make([]domain.OptimizationPass, 0, topN)
	for _, p := range sorted {
		key := assignmentKey(p.Assignment)
		if seen[key] {
			continue
		}
		seen[key] = true
		selected = append(selected, p)
		if len(selected) >= topN {
			break
		}
	}

	gate := domain.EvalGate("selected-count", float64(len(selected)), 1, domain.OpGTE, "at least one pass must survive selection")

	data := map[string]interface{}{
		"selected-passes": selected,
	}
	if !gate.Passed {
		return stage.Outcome{Result: result(domain.StageSelectPasses, false, data, &gate, "no passes available to select")}
	}

	res := result(domain.StageSelectPasses, true, data, &gate)
	if !s.Cfg.AutoSelection {
		return stage.Outcome{Result: res, Pause: domain.StatusAwaitingSelection}
	}
	return stage.Outcome{Result: res}
}

// assignmentKey renders a parameter assignment into a stable, orderable
// string so identical assignments collapse to one diversity slot
// regardless of map iteration order.
func assignmentKey(assignment map[string]domain.Value) string {
	names := make([]string, 0, len(assignment))
	for name := range assignment {
		names = append(names, name)
	}
	sort.Strings(names)
	key := ""
	for _, name := range names {
		key += fmt.Sprintf("%s=%s;", name, assignment[name].String())
	}
	return key
}

var _ stage.Stage = SelectPasses{}
