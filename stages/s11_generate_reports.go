package stages

import (
	"context"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/reportwriter"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

// GenerateReports is S11: always runs, even when an upstream gate
// failed, and produces the dashboard/leaderboard/summary artifacts plus
// the go-live verdict.
type GenerateReports struct {
	Cfg       config.Config
	OutputDir string
}

func (GenerateReports) Name() string { return domain.StageGenerateReports }

func (GenerateReports) Preconditions(*domain.WorkflowState) (bool, []string) {
	return true, nil
}

func (s GenerateReports) Execute(_ context.Context, state *domain.WorkflowState, _ runner.Runner) stage.Outcome {
	handle := ReportHandle(sourceStem(state.EASourcePath), "generate-reports", state.WorkflowID)

	allCriticalGatesPassed := criticalGatesPassed(state)

	set, err := reportwriter.Write(s.OutputDir, handle, state, allCriticalGatesPassed)
	if err != nil {
		return stage.Outcome{Result: fatal(domain.StageGenerateReports, domain.ErrCodeIntermittent, "report write failed: "+err.Error(), err)}
	}

	data := map[string]interface{}{
		"dashboard-path":   set.DashboardPath,
		"leaderboard-path": set.LeaderboardPath,
		"summary-path":     set.SummaryPath,
		"verdict":          set.Verdict,
		"go-live":          set.GoLive,
	}
	return stage.Outcome{Result: result(domain.StageGenerateReports, true, data, nil)}
}

// criticalGatesPassed evaluates the spec §4.4 definition of "go live":
// the best pass must exist and every gate recorded against S9's
// backtest-selected stage must have passed. Monte Carlo (S10) and the
// stress/forward/multi-pair stages (S12-S14) are informational and do
// not gate this verdict.
func criticalGatesPassed(state *domain.WorkflowState) bool {
	if state.BestPass == nil {
		return false
	}
	for _, g := range state.BestPass.Gates {
		if !g.Passed {
			return false
		}
	}
	return true
}

var _ stage.Stage = GenerateReports{}
