package stages

import (
	"context"
	"os"
	"time"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

// CreateINI is S6: translate optimization-ranges into the runner's
// configuration file format. Dates derive dynamically: end = Now, start
// = end - TotalYears, forward-split = end - ForwardYears.
type CreateINI struct {
	Cfg         config.Config
	Now         func() time.Time
	OutputDir   string
}

func (CreateINI) Name() string { return domain.StageCreateINI }

func (CreateINI) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if len(state.OptimizationRanges) == 0 {
		return false, []string{"no optimization ranges recorded"}
	}
	return true, nil
}

func (s CreateINI) Execute(_ context.Context, state *domain.WorkflowState, _ runner.Runner) stage.Outcome {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	end := now()
	start := end.AddDate(-s.Cfg.TotalYears, 0, 0)
	forwardSplit := end.AddDate(-s.Cfg.ForwardYears, 0, 0)

	handle := ReportHandle(sourceStem(state.EASourcePath), "create-ini", state.WorkflowID)
	content := RenderINI(state.ModifiedEAPath, state.Symbol, state.Timeframe, state.OptimizationRanges, start, end, forwardSplit, s.Cfg, handle)

	path := handle + ".ini"
	if s.OutputDir != "" {
		path = s.OutputDir + "/" + path
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return stage.Outcome{Result: fatal(domain.StageCreateINI, domain.ErrCodeIntermittent, "cannot write configuration file: "+err.Error(), err)}
	}

	data := map[string]interface{}{
		"configuration-file": path,
		"period-start":       start,
		"period-end":         end,
		"forward-split":      forwardSplit,
		"report-handle":      handle,
	}
	return stage.Outcome{Result: result(domain.StageCreateINI, true, data, nil)}
}

var _ stage.Stage = CreateINI{}
