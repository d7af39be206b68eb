package stages

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

// ForwardWindows is S13: purely offline. It re-slices the best pass's
// already-collected trade list by close-time into the same window set
// S12 exercises with live runs, plus segmental (full/in-sample/forward)
// and per-year windows, computing each window's metrics from a correctly
// seeded starting balance rather than assuming it starts empty —
// grounded on the walk-forward engine's IS/OOS window pattern.
type ForwardWindows struct {
	Cfg          config.Config
	AnchorTime   time.Time
	PeriodStart  time.Time
	ForwardSplit time.Time
	PeriodEnd    time.Time
}

func (ForwardWindows) Name() string { return domain.StageForwardWindows }

func (ForwardWindows) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if !state.HasStage(domain.StageBacktestSelected) {
		return false, []string{"backtest-selected must complete first"}
	}
	return true, nil
}

func (s ForwardWindows) Execute(_ context.Context, state *domain.WorkflowState, _ runner.Runner) stage.Outcome {
	if !s.Cfg.AutoForwardWindows {
		return stage.Outcome{Result: result(domain.StageForwardWindows, true, map[string]interface{}{"skipped": true}, nil)}
	}
	if state.BestPass == nil {
		return stage.Outcome{Result: fatal(domain.StageForwardWindows, domain.ErrCodeValidation, "no best pass to slice", nil)}
	}
	best := *state.BestPass

	trades := append([]domain.Trade(nil), best.Metrics.Trades...)
	sort.Slice(trades, func(i, j int) bool { return trades[i].CloseTime < trades[j].CloseTime })

	anchor := s.AnchorTime
	if anchor.IsZero() {
		anchor = time.Now()
	}

	var windows []namedWindow
	for _, sw := range buildStressWindows(anchor, s.Cfg.RollingDays, s.Cfg.CalendarMonthsAgo) {
		windows = append(windows, namedWindow{name: sw.name, start: sw.start, end: sw.end})
	}
	windows = append(windows, segmentalWindows(s.PeriodStart, s.ForwardSplit, s.PeriodEnd)...)
	windows = append(windows, perYearWindows(s.PeriodStart, s.PeriodEnd)...)

	results := make([]domain.ForwardWindowResult, 0, len(windows))
	for _, w := range windows {
		startingBalance := s.Cfg.Deposit + priorProfit(trades, w.start)
		windowTrades := filterByCloseTime(trades, w.start, w.end)
		metrics := metricsFromTrades(windowTrades, startingBalance)
		results = append(results, domain.ForwardWindowResult{
			Name:            w.name,
			WindowStart:     w.start,
			WindowEnd:       w.end,
			StartingBalance: startingBalance,
			Metrics:         metrics,
		})
	}

	data := map[string]interface{}{"forward-windows": results}
	return stage.Outcome{Result: result(domain.StageForwardWindows, true, data, nil)}
}

type namedWindow struct {
	name  string
	start time.Time
	end   time.Time
}

func segmentalWindows(periodStart, forwardSplit, periodEnd time.Time) []namedWindow {
	if periodStart.IsZero() || periodEnd.IsZero() {
		return nil
	}
	windows := []namedWindow{
		{name: "full", start: periodStart, end: periodEnd},
	}
	if !forwardSplit.IsZero() {
		windows = append(windows,
			namedWindow{name: "in-sample", start: periodStart, end: forwardSplit},
			namedWindow{name: "forward", start: forwardSplit, end: periodEnd},
		)
	}
	return windows
}

func perYearWindows(periodStart, periodEnd time.Time) []namedWindow {
	if periodStart.IsZero() || periodEnd.IsZero() {
		return nil
	}
	var windows []namedWindow
	for y := periodStart.Year(); y <= periodEnd.Year(); y++ {
		start := time.Date(y, 1, 1, 0, 0, 0, 0, periodStart.Location())
		end := time.Date(y+1, 1, 1, 0, 0, 0, 0, periodStart.Location())
		if start.Before(periodStart) {
			start = periodStart
		}
		if end.After(periodEnd) {
			end = periodEnd
		}
		windows = append(windows, namedWindow{name: fmt.Sprintf("year-%d", y), start: start, end: end})
	}
	return windows
}

func priorProfit(sortedTrades []domain.Trade, before time.Time) float64 {
	sum := 0.0
	cutoff := before.Unix()
	for _, t := range sortedTrades {
		if t.CloseTime >= cutoff {
			break
		}
		sum += t.NetProfit
	}
	return sum
}

func filterByCloseTime(sortedTrades []domain.Trade, start, end time.Time) []domain.Trade {
	var out []domain.Trade
	startU, endU := start.Unix(), end.Unix()
	for _, t := range sortedTrades {
		if t.CloseTime >= startU && t.CloseTime < endU {
			out = append(out, t)
		}
	}
	return out
}

// metricsFromTrades computes a minimal TradeMetrics summary from an
// offline trade slice and a correctly seeded starting balance, so
// drawdown within the window reflects real account state rather than
// assuming the window opens at zero.
func metricsFromTrades(trades []domain.Trade, startingBalance float64) domain.TradeMetrics {
	if len(trades) == 0 {
		return domain.TradeMetrics{}
	}
	balance := startingBalance
	peak := balance
	maxDD := 0.0
	grossProfit, grossLoss := 0.0, 0.0
	wins := 0
	for _, t := range trades {
		balance += t.NetProfit
		if balance > peak {
			peak = balance
		}
		if peak > 0 {
			if dd := (peak - balance) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
		if t.NetProfit >= 0 {
			grossProfit += t.NetProfit
			wins++
		} else {
			grossLoss += -t.NetProfit
		}
	}
	return domain.TradeMetrics{
		Profit:         balance - startingBalance,
		ProfitFactor:   domain.ProfitFactor(grossProfit, grossLoss),
		MaxDrawdownPct: maxDD,
		TotalTrades:    len(trades),
		WinRate:        float64(wins) / float64(len(trades)),
	}
}

var _ stage.Stage = ForwardWindows{}
