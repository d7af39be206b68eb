// Package reportwriter produces S11's three always-on artifacts —
// dashboard, leaderboard, summary — plus a plain-text go-live verdict.
// Each JSON artifact is built in memory by incremental sjson.Set patching
// rather than a single struct marshal, then written once through the
// teacher's atomic temp-file-then-rename discipline, so a crash mid-write
// leaves the previous complete document instead of a half-written one.
package reportwriter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/eastress/ea-stress-lab/domain"
)

// ReportSet is the paths and verdict S11 hands back to the orchestrator.
type ReportSet struct {
	DashboardPath   string
	LeaderboardPath string
	SummaryPath     string
	Verdict         string
	GoLive          bool
}

// Write renders all three artifacts for state into outputDir, named from
// handlePrefix (the S11 report handle), and returns their paths plus the
// go-live verdict. Always called, even when upstream gates failed —
// callers decide whether a failed run still warrants a report (it does).
func Write(outputDir, handlePrefix string, state *domain.WorkflowState, allCriticalGatesPassed bool) (ReportSet, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return ReportSet{}, fmt.Errorf("reportwriter: cannot create output dir: %w", err)
	}

	dashboardPath := filepath.Join(outputDir, handlePrefix+"_dashboard.json")
	if err := writeDashboard(dashboardPath, state); err != nil {
		return ReportSet{}, err
	}

	leaderboardPath := filepath.Join(outputDir, handlePrefix+"_leaderboard.json")
	if err := writeLeaderboard(leaderboardPath, state); err != nil {
		return ReportSet{}, err
	}

	verdict := goLiveVerdict(state, allCriticalGatesPassed)
	goLive := allCriticalGatesPassed && state.BestPass != nil
	summaryPath := filepath.Join(outputDir, handlePrefix+"_summary.json")
	if err := writeSummary(summaryPath, state, verdict, goLive); err != nil {
		return ReportSet{}, err
	}

	return ReportSet{
		DashboardPath:   dashboardPath,
		LeaderboardPath: leaderboardPath,
		SummaryPath:     summaryPath,
		Verdict:         verdict,
		GoLive:          goLive,
	}, nil
}

// dashboard is rewritten in full on every S11 call, but a refine loop
// may re-enter S11-adjacent bookkeeping across iterations; preserve the
// first-seen created_at from any prior artifact at path instead of
// clobbering it, read via gjson rather than a full unmarshal.
func writeDashboard(path string, state *domain.WorkflowState) error {
	doc := "{}"
	createdAt := state.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	if existing, err := os.ReadFile(path); err == nil {
		if prior := gjson.GetBytes(existing, "created_at"); prior.Exists() {
			createdAt = prior.String()
		}
	}

	var err error
	doc, err = sjson.Set(doc, "created_at", createdAt)
	if err != nil {
		return err
	}
	doc, _ = sjson.Set(doc, "workflow_id", state.WorkflowID)
	doc, _ = sjson.Set(doc, "symbol", state.Symbol)
	doc, _ = sjson.Set(doc, "timeframe", state.Timeframe)
	doc, _ = sjson.Set(doc, "status", string(state.Status))
	doc, _ = sjson.Set(doc, "refine_iterations", state.RefineIterations)
	doc, _ = sjson.Set(doc, "fix_attempts", state.FixAttempts)

	for _, stageName := range state.StageOrder {
		sr := state.StageResults[stageName]
		base := "stages." + jsonKey(stageName)
		doc, _ = sjson.Set(doc, base+".success", sr.Success)
		if sr.Gate != nil {
			doc, _ = sjson.Set(doc, base+".gate.name", sr.Gate.Name)
			doc, _ = sjson.Set(doc, base+".gate.passed", sr.Gate.Passed)
			doc, _ = sjson.Set(doc, base+".gate.observed", sr.Gate.Observed)
			doc, _ = sjson.Set(doc, base+".gate.threshold", sr.Gate.Threshold)
		}
		if len(sr.Errors) > 0 {
			doc, _ = sjson.Set(doc, base+".errors", sr.Errors)
		}
	}

	if state.MonteCarlo != nil {
		doc, _ = sjson.Set(doc, "monte_carlo.confidence", state.MonteCarlo.Confidence)
		doc, _ = sjson.Set(doc, "monte_carlo.ruin_probability", state.MonteCarlo.RuinProbability)
		doc, _ = sjson.Set(doc, "monte_carlo.estimated_trades", state.MonteCarlo.EstimatedTrades)
	}

	return atomicWrite(path, []byte(doc))
}

func writeLeaderboard(path string, state *domain.WorkflowState) error {
	doc := "{}"
	doc, _ = sjson.Set(doc, "workflow_id", state.WorkflowID)

	for i, p := range state.PassTable {
		base := fmt.Sprintf("passes.%d", i)
		doc, _ = sjson.Set(doc, base+".index", p.Index)
		doc, _ = sjson.Set(doc, base+".combined_metric", p.CombinedMetric)
		doc, _ = sjson.Set(doc, base+".trades", p.Trades)
	}

	if state.BestPass != nil {
		doc, _ = sjson.Set(doc, "best_pass.index", state.BestPass.PassIndex)
		doc, _ = sjson.Set(doc, "best_pass.score", state.BestPass.Score)
		doc, _ = sjson.Set(doc, "best_pass.profit", state.BestPass.Metrics.Profit)
		doc, _ = sjson.Set(doc, "best_pass.profit_factor", state.BestPass.Metrics.ProfitFactor)
		doc, _ = sjson.Set(doc, "best_pass.max_drawdown_pct", state.BestPass.Metrics.MaxDrawdownPct)
	}

	return atomicWrite(path, []byte(doc))
}

func writeSummary(path string, state *domain.WorkflowState, verdict string, goLive bool) error {
	doc := "{}"
	doc, _ = sjson.Set(doc, "workflow_id", state.WorkflowID)
	doc, _ = sjson.Set(doc, "symbol", state.Symbol)
	doc, _ = sjson.Set(doc, "go_live", goLive)
	doc, _ = sjson.Set(doc, "verdict", verdict)
	doc, _ = sjson.Set(doc, "stress_scenarios", len(state.StressResults))
	doc, _ = sjson.Set(doc, "forward_windows", len(state.ForwardWindows))
	doc, _ = sjson.Set(doc, "child_workflows", state.ChildWorkflowIDs)
	return atomicWrite(path, []byte(doc))
}

// goLiveVerdict renders the one-line human verdict spec §4.4 S11 names:
// a pass requires every critical gate to have passed.
func goLiveVerdict(state *domain.WorkflowState, allCriticalGatesPassed bool) string {
	if state.BestPass == nil {
		return "NO GO: no pass survived backtesting"
	}
	if !allCriticalGatesPassed {
		return fmt.Sprintf("NO GO: one or more critical gates failed for pass %d", state.BestPass.PassIndex)
	}
	return fmt.Sprintf("GO LIVE: pass %d cleared all critical gates with score %.2f", state.BestPass.PassIndex, state.BestPass.Score)
}

func jsonKey(stageName string) string {
	out := make([]byte, len(stageName))
	for i := 0; i < len(stageName); i++ {
		c := stageName[i]
		if c == '-' {
			c = '_'
		}
		out[i] = c
	}
	return string(out)
}

func atomicWrite(path string, content []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("reportwriter: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("reportwriter: rename temp file: %w", err)
	}
	return nil
}
