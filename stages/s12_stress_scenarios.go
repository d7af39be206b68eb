package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

// TickArchivePresence reports which of the given "YYYY-MM" months have no
// tick-archive file on disk, so S12 can surface a warning rather than
// silently substituting coarser data.
type TickArchivePresence func(months []string) (missing []string)

// StressScenarios is S12: re-run the best pass's parameters over shorter
// windows anchored to the workflow end date, under both data models, plus
// tick-latency variants, and apply post-hoc cost overlays to the best
// pass's trade list without additional runner invocations. Informational:
// per-scenario failures are recorded but never flip the workflow to
// failed (spec §4.4 propagation policy).
type StressScenarios struct {
	Cfg        config.Config
	AnchorTime time.Time
	TickArchive TickArchivePresence

	// PipValuePerLot approximates the dollar value of one pip for one
	// standard lot, used only by the cost-overlay calculation below.
	PipValuePerLot float64

	// SafetyDefaults pins the spread/slippage safety inputs for every
	// scenario run, the same values S9 pins for its backtests.
	SafetyDefaults map[string]domain.Value
}

func (StressScenarios) Name() string { return domain.StageStressScenarios }

func (StressScenarios) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if !state.HasStage(domain.StageBacktestSelected) {
		return false, []string{"backtest-selected must complete first"}
	}
	return true, nil
}

func (s StressScenarios) Execute(ctx context.Context, state *domain.WorkflowState, r runner.Runner) stage.Outcome {
	if !s.Cfg.AutoStress {
		return stage.Outcome{Result: result(domain.StageStressScenarios, true, map[string]interface{}{"skipped": true}, nil)}
	}
	if state.BestPass == nil {
		return stage.Outcome{Result: fatal(domain.StageStressScenarios, domain.ErrCodeValidation, "no best pass to stress-test", nil)}
	}
	best := *state.BestPass

	pipValue := s.PipValuePerLot
	if pipValue == 0 {
		pipValue = 10.0
	}

	anchor := s.AnchorTime
	if anchor.IsZero() {
		anchor = time.Now()
	}

	var results []domain.StressResult
	var warnings []string

	windows := buildStressWindows(anchor, s.Cfg.RollingDays, s.Cfg.CalendarMonthsAgo)
	tickMonths := monthsCovered(windows)

	var missingMonths []string
	if s.TickArchive != nil {
		if missing := s.TickArchive(tickMonths); len(missing) > 0 {
			missingMonths = missing
			warnings = append(warnings, fmt.Sprintf("missing tick-archive files for months: %v", missing))
		}
	}

	for _, w := range windows {
		for _, model := range s.Cfg.Models {
			latencies := []int{0}
			if model == "tick" {
				latencies = s.Cfg.TickLatencies
			}
			for _, latency := range latencies {
				sr, err := s.runScenario(ctx, r, state, w, model, latency)
				if err != nil {
					warnings = append(warnings, fmt.Sprintf("scenario %s/%s/%dms failed: %v", w.name, model, latency, err))
					continue
				}
				results = append(results, sr)
			}
		}
	}

	overlays := costOverlays(best.Metrics.Trades, s.Cfg.OverlaySpreads, s.Cfg.OverlaySlippages, pipValue)

	data := map[string]interface{}{
		"stress-results":   results,
		"cost-overlays":    overlays,
		"warnings":         warnings,
		"missing-months":   missingMonths,
	}
	return stage.Outcome{Result: result(domain.StageStressScenarios, true, data, nil)}
}

type stressWindow struct {
	name  string
	start time.Time
	end   time.Time
}

func buildStressWindows(anchor time.Time, rollingDays, calendarMonthsAgo []int) []stressWindow {
	var windows []stressWindow
	for _, d := range rollingDays {
		windows = append(windows, stressWindow{
			name:  fmt.Sprintf("rolling-%dd", d),
			start: anchor.AddDate(0, 0, -d),
			end:   anchor,
		})
	}
	for _, m := range calendarMonthsAgo {
		monthStart := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location()).AddDate(0, -m, 0)
		monthEnd := monthStart.AddDate(0, 1, 0)
		windows = append(windows, stressWindow{
			name:  fmt.Sprintf("calendar-month-%d", m),
			start: monthStart,
			end:   monthEnd,
		})
	}
	return windows
}

func monthsCovered(windows []stressWindow) []string {
	seen := map[string]bool{}
	var months []string
	for _, w := range windows {
		for t := time.Date(w.start.Year(), w.start.Month(), 1, 0, 0, 0, 0, w.start.Location()); !t.After(w.end); t = t.AddDate(0, 1, 0) {
			key := t.Format("2006-01")
			if !seen[key] {
				seen[key] = true
				months = append(months, key)
			}
		}
	}
	return months
}

func (s StressScenarios) runScenario(ctx context.Context, r runner.Runner, state *domain.WorkflowState, w stressWindow, model string, latencyMS int) (domain.StressResult, error) {
	best := *state.BestPass

	handle := ReportHandle(sourceStem(state.EASourcePath), "stress-scenarios", state.WorkflowID, w.name, model, fmt.Sprintf("%dms", latencyMS))

	run, err := r.RunSingle(ctx, runner.RunSingleRequest{
		EAPath:       state.ModifiedEAPath,
		Symbol:       state.Symbol,
		Timeframe:    state.Timeframe,
		Parameters:   mergeSafetyDefaults(assignmentFromBestPass(state, best), s.SafetyDefaults),
		PeriodStart:  w.start,
		PeriodEnd:    w.end,
		LatencyMS:    latencyMS,
		DataModel:    model,
		ReportHandle: handle,
	})
	if err != nil {
		return domain.StressResult{}, err
	}

	return domain.StressResult{
		Name:        w.name,
		Model:       model,
		LatencyMS:   latencyMS,
		WindowStart: w.start,
		WindowEnd:   w.end,
		Metrics:     run.Metrics,
	}, nil
}

// assignmentFromBestPass looks up the parameter assignment for the best
// pass from the current pass table, since BacktestedPass itself only
// carries metrics and gates, not the originating assignment.
func assignmentFromBestPass(state *domain.WorkflowState, best domain.BacktestedPass) map[string]domain.Value {
	for _, p := range state.PassTable {
		if p.Index == best.PassIndex {
			return p.Assignment
		}
	}
	return nil
}

// CostOverlay is one (spread, slippage) combination's effect on the best
// pass's trade list, computed without any additional runner invocation.
type CostOverlay struct {
	Spread      float64
	Slippage    float64
	AdjustedProfit float64
}

func costOverlays(trades []domain.Trade, spreads, slippages []float64, pipValue float64) []CostOverlay {
	var overlays []CostOverlay
	for _, spread := range spreads {
		for _, slippage := range slippages {
			total := 0.0
			for _, t := range trades {
				cost := (spread + slippage*2) * pipValue * t.Volume
				total += t.NetProfit - cost
			}
			overlays = append(overlays, CostOverlay{Spread: spread, Slippage: slippage, AdjustedProfit: total})
		}
	}
	return overlays
}

var _ stage.Stage = StressScenarios{}
