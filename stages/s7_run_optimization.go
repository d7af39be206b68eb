package stages

import (
	"context"
	"strconv"
	"time"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/emit"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

// RunOptimization is S7: execute a genetic sweep under a hard timeout,
// emitting a heartbeat at Cfg.HeartbeatSeconds and filtering stragglers
// before starting via Janitor.
type RunOptimization struct {
	Cfg     config.Config
	Emitter emit.Emitter
	Janitor *runner.ProcessJanitor

	PeriodStart  time.Time
	ForwardSplit time.Time
	PeriodEnd    time.Time
}

func (RunOptimization) Name() string { return domain.StageRunOptimization }

func (RunOptimization) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if !state.HasStage(domain.StageCreateINI) {
		return false, []string{"create-ini must complete first"}
	}
	return true, nil
}

func (s RunOptimization) Execute(ctx context.Context, state *domain.WorkflowState, r runner.Runner) stage.Outcome {
	if s.Janitor != nil {
		_ = s.Janitor.KillAllMatching(ctx, 30*time.Second)
	}

	timeout := time.Duration(s.Cfg.SweepTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	handle := ReportHandle(sourceStem(state.EASourcePath), "run-optimization", state.WorkflowID, iterationTag(state))

	heartbeat := s.Cfg.HeartbeatSeconds
	if heartbeat == 0 {
		heartbeat = 60
	}
	var lastTick time.Duration
	sink := func(elapsed time.Duration) {
		if s.Emitter == nil {
			return
		}
		if elapsed-lastTick < time.Duration(heartbeat)*time.Second && elapsed != 0 {
			return
		}
		lastTick = elapsed
		s.Emitter.Emit(emit.Event{
			RunID:     state.WorkflowID,
			StageName: domain.StageRunOptimization,
			Msg:       "heartbeat",
			Meta:      map[string]interface{}{"elapsed_s": elapsed.Seconds()},
		})
	}

	sweep, err := r.RunSweep(ctx, runner.RunSweepRequest{
		EAPath:       state.ModifiedEAPath,
		Symbol:       state.Symbol,
		Timeframe:    state.Timeframe,
		Ranges:       state.OptimizationRanges,
		PeriodStart:  s.PeriodStart,
		ForwardSplit: s.ForwardSplit,
		PeriodEnd:    s.PeriodEnd,
		ReportHandle: handle,
		TimeoutSeconds: s.Cfg.SweepTimeoutSeconds,
	}, sink)

	if err != nil {
		if s.Janitor != nil {
			_ = s.Janitor.KillAllMatching(context.Background(), 30*time.Second)
		}
		return stage.Outcome{Result: fatal(domain.StageRunOptimization, domain.ErrCodeRunner, "sweep failed: "+err.Error(), err)}
	}

	gate := domain.EvalGate("pass-count", float64(sweep.PassCount), 1, domain.OpGTE, "sweep must produce at least one pass")

	data := map[string]interface{}{
		"pass-count":    sweep.PassCount,
		"passes":        sweep.Passes,
		"artifact-path": sweep.ArtifactPath,
		"report-handle": handle,
	}
	if !gate.Passed {
		return stage.Outcome{Result: result(domain.StageRunOptimization, false, data, &gate, "sweep produced zero passes")}
	}
	return stage.Outcome{Result: result(domain.StageRunOptimization, true, data, &gate)}
}

func iterationTag(state *domain.WorkflowState) string {
	return "iter-" + strconv.Itoa(state.RefineIterations)
}

var _ stage.Stage = RunOptimization{}
