package stages

import (
	"context"
	"strconv"
	"time"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

// BacktestSelected is S9: re-run each selected pass with run-single over
// the full period, pin the safety defaults, compute real TradeMetrics and
// the Go-Live Score, apply per-pass gates, and choose the best pass.
type BacktestSelected struct {
	Cfg config.Config

	PeriodStart time.Time
	PeriodEnd   time.Time

	// SafetyDefaults pins the spread/slippage safety inputs for every
	// backtest run, overriding whatever value the optimized assignment
	// happened to carry for them (spec §4.4 S9: "that pass's input
	// parameters plus the pinned safety defaults").
	SafetyDefaults map[string]domain.Value
}

func (BacktestSelected) Name() string { return domain.StageBacktestSelected }

func (BacktestSelected) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if !state.HasStage(domain.StageSelectPasses) {
		return false, []string{"select-passes must complete first"}
	}
	return true, nil
}

func (s BacktestSelected) Execute(ctx context.Context, state *domain.WorkflowState, r runner.Runner) stage.Outcome {
	selected := resolveSelectedPasses(state)

	backtested := make([]domain.BacktestedPass, 0, len(selected))
	for _, pass := range selected {
		params := mergeSafetyDefaults(pass.Assignment, s.SafetyDefaults)

		handle := ReportHandle(sourceStem(state.EASourcePath), "backtest-selected", state.WorkflowID, "pass"+strconv.Itoa(pass.Index))
		run, err := r.RunSingle(ctx, runner.RunSingleRequest{
			EAPath:       state.ModifiedEAPath,
			Symbol:       state.Symbol,
			Timeframe:    state.Timeframe,
			Parameters:   params,
			PeriodStart:  s.PeriodStart,
			PeriodEnd:    s.PeriodEnd,
			LatencyMS:    s.Cfg.ExecutionLatencyMS,
			DataModel:    s.Cfg.DataModel,
			ReportHandle: handle,
		})
		if err != nil {
			continue
		}

		score := domain.CompositeScore(domain.ScoreInputs{
			BackProfit:     pass.BackMetric,
			ForwardProfit:  pass.ForwardMetric,
			TotalProfit:    run.Metrics.Profit,
			TradeCount:     run.Metrics.TotalTrades,
			ProfitFactor:   run.Metrics.ProfitFactor,
			MaxDrawdownPct: run.Metrics.MaxDrawdownPct,
		})

		gates := []domain.GateResult{
			domain.EvalGate(domain.GateProfitFactor, run.Metrics.ProfitFactor, s.Cfg.MinProfitFactor, domain.OpGTE, "profit factor below floor"),
			domain.EvalGate(domain.GateMaxDrawdown, run.Metrics.MaxDrawdownPct, s.Cfg.MaxDrawdownPct, domain.OpLTE, "drawdown above ceiling"),
			domain.EvalGate(domain.GateMinTrades, float64(run.Metrics.TotalTrades), float64(s.Cfg.MinTrades), domain.OpGTE, "trade count below floor"),
		}

		backtested = append(backtested, domain.BacktestedPass{
			PassIndex: pass.Index,
			Metrics:   run.Metrics,
			Score:     score,
			Gates:     gates,
		})
	}

	// Gate-fatal condition: at least one backtested pass must clear every
	// per-pass quality gate, not merely survive its run.
	meetsGates := 0
	for _, b := range backtested {
		if allGatesPassed(b.Gates) {
			meetsGates++
		}
	}
	gate := domain.EvalGate("gated-pass-count", float64(meetsGates), 1, domain.OpGTE, "at least one pass must meet the quality gates")

	data := map[string]interface{}{"backtested-passes": backtested}
	if len(backtested) == 0 {
		return stage.Outcome{Result: result(domain.StageBacktestSelected, false, data, &gate, "all selected passes failed to backtest")}
	}

	// The best pass is recorded even when the gate fails, so the report
	// can state the observed metrics against their thresholds.
	best := bestOf(backtested, s.Cfg.BestPassSelection)
	data["best-pass"] = best

	if !gate.Passed {
		return stage.Outcome{Result: result(domain.StageBacktestSelected, false, data, &gate, "every backtested pass failed at least one quality gate")}
	}
	return stage.Outcome{Result: result(domain.StageBacktestSelected, true, data, &gate)}
}

func allGatesPassed(gates []domain.GateResult) bool {
	for _, g := range gates {
		if !g.Passed {
			return false
		}
	}
	return true
}

// resolveSelectedPasses looks the selected pass indices up in the current
// pass table, preserving selection order. Both live on the root record so
// the lookup works identically in-process and after a store round-trip
// across the awaiting-selection suspension.
func resolveSelectedPasses(state *domain.WorkflowState) []domain.OptimizationPass {
	byIndex := make(map[int]domain.OptimizationPass, len(state.PassTable))
	for _, p := range state.PassTable {
		byIndex[p.Index] = p
	}
	selected := make([]domain.OptimizationPass, 0, len(state.SelectedPasses))
	for _, i := range state.SelectedPasses {
		if p, ok := byIndex[i]; ok {
			selected = append(selected, p)
		}
	}
	return selected
}

func mergeSafetyDefaults(assignment map[string]domain.Value, safety map[string]domain.Value) map[string]domain.Value {
	merged := make(map[string]domain.Value, len(assignment)+len(safety))
	for k, v := range assignment {
		merged[k] = v
	}
	for k, v := range safety {
		merged[k] = v
	}
	return merged
}

func bestOf(passes []domain.BacktestedPass, selection string) domain.BacktestedPass {
	best := passes[0]
	for _, p := range passes[1:] {
		switch selection {
		case "profit":
			if p.Metrics.Profit > best.Metrics.Profit {
				best = p
			}
		default:
			if p.Score > best.Score {
				best = p
			}
		}
	}
	return best
}

var _ stage.Stage = BacktestSelected{}
