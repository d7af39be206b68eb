package stages

import (
	"context"
	"testing"
	"time"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
)

func TestStressScenariosRunsWindowsAcrossModels(t *testing.T) {
	state := domain.NewWorkflowState("wf-1", "EA.mq4", "EURUSD", "H1", "handle", time.Time{})
	state.PassTable = []domain.OptimizationPass{
		{Index: 1, Assignment: map[string]domain.Value{"Lots": domain.RealValue(0.1)}},
	}
	state.BestPass = &domain.BacktestedPass{
		PassIndex: 1,
		Metrics:   domain.TradeMetrics{Trades: []domain.Trade{{NetProfit: 50, Volume: 0.1}}},
	}
	state = state.WithStageResult(domain.StageResult{
		StageName: domain.StageBacktestSelected,
		Success:   true,
	})

	dr := runner.NewDryRun()
	dr.RunSingleFunc = func(_ runner.RunSingleRequest) (runner.RunResult, error) {
		return runner.RunResult{Metrics: domain.TradeMetrics{Profit: 10, TotalTrades: 5}}, nil
	}

	cfg := config.Default()
	cfg.RollingDays = []int{30}
	cfg.CalendarMonthsAgo = []int{1}
	cfg.Models = []string{"ohlc", "tick"}
	cfg.TickLatencies = []int{0, 150}
	cfg.OverlaySpreads = []float64{1.0}
	cfg.OverlaySlippages = []float64{0.5}

	s := StressScenarios{Cfg: cfg, AnchorTime: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	out := s.Execute(context.Background(), state, dr)

	if !out.Result.Success {
		t.Fatalf("S12 must be informational and always succeed at the stage level, got: %v", out.Result.Errors)
	}
	results, _ := out.Result.Data["stress-results"].([]domain.StressResult)
	if len(results) == 0 {
		t.Fatal("expected at least one stress scenario result")
	}
	overlays, _ := out.Result.Data["cost-overlays"].([]CostOverlay)
	if len(overlays) != 1 {
		t.Fatalf("expected one cost overlay combination, got %d", len(overlays))
	}
}

func TestStressScenariosSkipsWhenDisabled(t *testing.T) {
	state := domain.NewWorkflowState("wf-1", "EA.mq4", "EURUSD", "H1", "handle", time.Time{})

	cfg := config.Default()
	cfg.AutoStress = false

	dr := runner.NewDryRun()
	s := StressScenarios{Cfg: cfg}
	out := s.Execute(context.Background(), state, dr)

	if !out.Result.Success {
		t.Fatalf("expected a successful skip result, got errors: %v", out.Result.Errors)
	}
	if skipped, _ := out.Result.Data["skipped"].(bool); !skipped {
		t.Fatal("expected stress-scenarios to skip when AutoStress is disabled")
	}
	if len(dr.Calls()) != 0 {
		t.Fatalf("expected no runner invocations when skipped, got %d", len(dr.Calls()))
	}
}

func TestStressScenariosSurfacesMissingTickArchiveAsWarning(t *testing.T) {
	state := domain.NewWorkflowState("wf-1", "EA.mq4", "EURUSD", "H1", "handle", time.Time{})
	state.PassTable = []domain.OptimizationPass{{Index: 1}}
	state.BestPass = &domain.BacktestedPass{PassIndex: 1}
	state = state.WithStageResult(domain.StageResult{
		StageName: domain.StageBacktestSelected,
		Success:   true,
	})

	dr := runner.NewDryRun()
	cfg := config.Default()
	cfg.RollingDays = []int{30}
	cfg.CalendarMonthsAgo = nil
	cfg.Models = []string{"tick"}
	cfg.TickLatencies = []int{0}

	s := StressScenarios{
		Cfg:        cfg,
		AnchorTime: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		TickArchive: func(months []string) []string {
			return months
		},
	}
	out := s.Execute(context.Background(), state, dr)

	warnings, _ := out.Result.Data["warnings"].([]string)
	if len(warnings) == 0 {
		t.Fatal("expected a warning when the tick archive reports missing months")
	}
}
