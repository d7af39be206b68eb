package stages

import (
	"context"

	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

// Compile is S2: invoke runner.Compile on the modified source. On
// failure the orchestrator transitions to awaiting-fix; this stage only
// reports the outcome, it does not manage the fix-attempts counter.
type Compile struct{}

func (Compile) Name() string { return domain.StageCompile }

func (Compile) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if !state.HasStage(domain.StageInjectSafety) {
		return false, []string{"inject-safety must complete first"}
	}
	return true, nil
}

func (Compile) Execute(ctx context.Context, state *domain.WorkflowState, r runner.Runner) stage.Outcome {
	path := state.ModifiedEAPath
	if path == "" {
		path = state.EASourcePath + ".instrumented"
	}

	res, err := r.Compile(ctx, path)
	if err != nil {
		return stage.Outcome{
			Result: fatal(domain.StageCompile, domain.ErrCodeRunner, "compile invocation failed: "+err.Error(), err),
			Pause:  domain.StatusAwaitingFix,
		}
	}

	observed := 0.0
	if !res.Success {
		observed = float64(len(res.Errors))
		if observed == 0 {
			observed = 1
		}
	}
	gate := domain.EvalGate(domain.GateCompilationErrors, observed, 0, domain.OpEQ, "compilation must produce zero errors")

	data := map[string]interface{}{
		"compiled-ea-path": res.CompiledPath,
		"errors":           res.Errors,
		"warnings":         res.Warnings,
	}

	if !gate.Passed {
		return stage.Outcome{
			Result: result(domain.StageCompile, false, data, &gate, res.Errors...),
			Pause:  domain.StatusAwaitingFix,
		}
	}
	return stage.Outcome{Result: result(domain.StageCompile, true, data, &gate)}
}

var _ stage.Stage = Compile{}
