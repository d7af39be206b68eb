package stages

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"sort"
	"strconv"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

// percentileKeys are the seven summary points spec §4.4 S10 reports.
var percentileKeys = []int{5, 10, 25, 50, 75, 90, 95}

// MonteCarlo is S10: shuffle the best pass's trade sequence N times,
// replay each shuffle as a running-balance walk, and report ruin
// probability plus profit/drawdown percentiles. Shuffles are seeded
// deterministically from the workflow id and the best pass index so a
// resumed or re-audited run reproduces the same distribution.
type MonteCarlo struct {
	Cfg config.Config
}

func (MonteCarlo) Name() string { return domain.StageMonteCarlo }

func (MonteCarlo) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if !state.HasStage(domain.StageBacktestSelected) {
		return false, []string{"backtest-selected must complete first"}
	}
	return true, nil
}

func (s MonteCarlo) Execute(_ context.Context, state *domain.WorkflowState, _ runner.Runner) stage.Outcome {
	if state.BestPass == nil {
		return stage.Outcome{Result: fatal(domain.StageMonteCarlo, domain.ErrCodeValidation, "no best pass to simulate", nil)}
	}
	best := *state.BestPass

	iterations := s.Cfg.MCIterations
	if iterations == 0 {
		iterations = 10000
	}

	trades := best.Metrics.Trades
	estimated := false
	if len(trades) == 0 {
		if s.Cfg.MonteCarloStrict {
			return stage.Outcome{Result: fatal(domain.StageMonteCarlo, domain.ErrCodeValidation, "best pass carries no extractable trade list and Monte Carlo strict mode forbids estimation", nil)}
		}
		trades = estimateTradeList(best.Metrics)
		estimated = true
	}
	if len(trades) == 0 {
		mcResult := domain.MonteCarloResult{
			Iterations:          iterations,
			RuinProbability:     0,
			Confidence:          0,
			ProfitPercentiles:   percentiles(nil, percentileKeys),
			DrawdownPercentiles: percentiles(nil, percentileKeys),
			EstimatedTrades:     estimated,
		}
		gates := []domain.GateResult{
			domain.EvalGate(domain.GateMCConfidence, 0, s.Cfg.MCConfidenceMin, domain.OpGTE, "confidence below floor"),
			domain.EvalGate(domain.GateMCRuin, 0, s.Cfg.MCRuinMax, domain.OpLTE, "ruin probability above ceiling"),
		}
		data := map[string]interface{}{"monte-carlo": mcResult, "gates": gates}
		allPassed := gates[0].Passed && gates[1].Passed
		return stage.Outcome{Result: result(domain.StageMonteCarlo, allPassed, data, &gates[0])}
	}

	seed := deriveSeed(state.WorkflowID, best.PassIndex)
	rng := rand.New(rand.NewSource(seed))

	ruinThreshold := s.Cfg.MCRuinThreshold
	if ruinThreshold == 0 {
		ruinThreshold = 50
	}

	profits := make([]float64, iterations)
	drawdowns := make([]float64, iterations)
	ruinCount := 0
	profitableCount := 0

	order := make([]int, len(trades))
	for i := range order {
		order[i] = i
	}

	for it := 0; it < iterations; it++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		balance := s.Cfg.Deposit
		peak := balance
		maxDD := 0.0
		for _, idx := range order {
			balance += trades[idx].NetProfit
			if balance > peak {
				peak = balance
			}
			if peak > 0 {
				dd := (peak - balance) / peak * 100
				if dd > maxDD {
					maxDD = dd
				}
			}
		}
		profits[it] = balance - s.Cfg.Deposit
		if profits[it] > 0 {
			profitableCount++
		}
		drawdowns[it] = maxDD
		if maxDD >= ruinThreshold {
			ruinCount++
		}
	}

	ruinProbability := float64(ruinCount) / float64(iterations) * 100
	confidence := float64(profitableCount) / float64(iterations) * 100

	mcResult := domain.MonteCarloResult{
		Iterations:          iterations,
		RuinProbability:     ruinProbability,
		Confidence:          confidence,
		ProfitPercentiles:   percentiles(profits, percentileKeys),
		DrawdownPercentiles: percentiles(drawdowns, percentileKeys),
		EstimatedTrades:     estimated,
	}

	gates := []domain.GateResult{
		domain.EvalGate(domain.GateMCConfidence, confidence, s.Cfg.MCConfidenceMin, domain.OpGTE, "confidence below floor"),
		domain.EvalGate(domain.GateMCRuin, ruinProbability, s.Cfg.MCRuinMax, domain.OpLTE, "ruin probability above ceiling"),
	}

	data := map[string]interface{}{
		"monte-carlo": mcResult,
		"gates":       gates,
	}

	allPassed := gates[0].Passed && gates[1].Passed
	return stage.Outcome{Result: result(domain.StageMonteCarlo, allPassed, data, &gates[0])}
}

// deriveSeed hashes the workflow id and pass index into an int64 RNG
// seed, the same technique the teacher used to make per-run randomness
// reproducible from stable inputs.
func deriveSeed(workflowID string, passIndex int) int64 {
	h := sha256.Sum256([]byte(workflowID + "|" + strconv.Itoa(passIndex)))
	return int64(binary.BigEndian.Uint64(h[:8]) >> 1) // clear sign bit
}

// estimateTradeList synthesizes a trade list from summary statistics
// when the runner's single-run artifact carries no per-trade detail:
// winning and losing counts come from total-trades and win-rate, each
// winning trade is gross-profit/winning-count and each losing trade is
// -gross-loss/losing-count. Gross profit and gross loss are recovered
// from the net profit and the profit factor: net = GP - GL and
// PF = GP/GL, so GL = net/(PF-1).
func estimateTradeList(m domain.TradeMetrics) []domain.Trade {
	if m.TotalTrades <= 0 {
		return nil
	}
	winRate := m.WinRate
	if winRate <= 0 || winRate >= 1 {
		winRate = 0.5
	}
	wins := int(float64(m.TotalTrades) * winRate)
	losses := m.TotalTrades - wins

	var grossProfit, grossLoss float64
	pf := m.ProfitFactor
	switch {
	case pf >= 99:
		// The zero-gross-loss sentinel: everything is gross profit.
		grossProfit = m.Profit
	case pf > 0 && pf != 1:
		grossLoss = m.Profit / (pf - 1)
		grossProfit = pf * grossLoss
	default:
		// No usable factor (unreported, or PF==1 with net zero): a
		// positive net is all that can be attributed.
		if m.Profit > 0 {
			grossProfit = m.Profit
		}
	}

	avgWin, avgLoss := 0.0, 0.0
	if wins > 0 {
		avgWin = grossProfit / float64(wins)
	}
	if losses > 0 {
		avgLoss = -grossLoss / float64(losses)
	}

	trades := make([]domain.Trade, 0, m.TotalTrades)
	for i := 0; i < wins; i++ {
		trades = append(trades, domain.Trade{NetProfit: avgWin})
	}
	for i := 0; i < losses; i++ {
		trades = append(trades, domain.Trade{NetProfit: avgLoss})
	}
	return trades
}

func percentiles(values []float64, keys []int) map[int]float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	out := make(map[int]float64, len(keys))
	if len(sorted) == 0 {
		for _, k := range keys {
			out[k] = 0
		}
		return out
	}
	for _, k := range keys {
		pos := float64(k) / 100 * float64(len(sorted)-1)
		lo := int(pos)
		hi := lo + 1
		if hi >= len(sorted) {
			out[k] = sorted[len(sorted)-1]
			continue
		}
		frac := pos - float64(lo)
		out[k] = sorted[lo]*(1-frac) + sorted[hi]*frac
	}
	return out
}

var _ stage.Stage = MonteCarlo{}
