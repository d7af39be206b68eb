package stages

import (
	"context"
	"time"

	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

// PermissiveSafetyOverrides are the safety-parameter values S5 forces for
// its own run only (spec §4.4 S5: "force permissive limits").
var PermissiveSafetyOverrides = map[string]domain.Value{
	"MaxSpreadPips":   domain.RealValue(500),
	"MaxSlippagePips": domain.RealValue(500),
}

// ValidateTrades is S5: run-single with wide-validation-params over the
// full backtest period, gated on minimum-trades.
type ValidateTrades struct {
	MinTrades   int
	PeriodStart time.Time
	PeriodEnd   time.Time
}

func (ValidateTrades) Name() string { return domain.StageValidateTrades }

func (ValidateTrades) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if !state.HasStage(domain.StageRecordAnalyzedParams) {
		return false, []string{"record-analyzed-params must complete first"}
	}
	return true, nil
}

func (s ValidateTrades) Execute(ctx context.Context, state *domain.WorkflowState, r runner.Runner) stage.Outcome {
	params := make(map[string]domain.Value, len(state.WideValidationParams))
	for k, v := range state.WideValidationParams {
		params[k] = v
	}
	for k, v := range PermissiveSafetyOverrides {
		params[k] = v
	}

	handle := ReportHandle(sourceStem(state.EASourcePath), "validate-trades", state.WorkflowID)
	res, err := r.RunSingle(ctx, runner.RunSingleRequest{
		EAPath:       state.ModifiedEAPath,
		Symbol:       state.Symbol,
		Timeframe:    state.Timeframe,
		Parameters:   params,
		PeriodStart:  s.PeriodStart,
		PeriodEnd:    s.PeriodEnd,
		DataModel:    "ohlc",
		ReportHandle: handle,
	})
	if err != nil {
		return stage.Outcome{
			Result: fatal(domain.StageValidateTrades, domain.ErrCodeRunner, "validation run failed: "+err.Error(), err),
			Pause:  domain.StatusAwaitingFix,
		}
	}

	minTrades := s.MinTrades
	if minTrades == 0 {
		minTrades = 50
	}
	gate := domain.EvalGate(domain.GateMinTrades, float64(res.Metrics.TotalTrades), float64(minTrades), domain.OpGTE, "validation run must clear the minimum trade count")

	data := map[string]interface{}{
		"trade-metrics":  res.Metrics,
		"validation-trades": res.Metrics.TotalTrades,
		"report-handle":  handle,
	}

	if !gate.Passed {
		return stage.Outcome{
			Result: result(domain.StageValidateTrades, false, data, &gate, "trade count below minimum"),
			Pause:  domain.StatusAwaitingFix,
		}
	}
	return stage.Outcome{Result: result(domain.StageValidateTrades, true, data, &gate)}
}

var _ stage.Stage = ValidateTrades{}
