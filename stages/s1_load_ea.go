package stages

import (
	"context"
	"os"

	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

// LoadEA is S1: verify the EA source file exists. Fatal on failure.
type LoadEA struct{}

func (LoadEA) Name() string { return domain.StageLoadEA }

func (LoadEA) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if state.EASourcePath == "" {
		return false, []string{"workflow has no EA source path"}
	}
	return true, nil
}

func (LoadEA) Execute(_ context.Context, state *domain.WorkflowState, _ runner.Runner) stage.Outcome {
	_, err := os.Stat(state.EASourcePath)
	exists := err == nil

	observed := 0.0
	if exists {
		observed = 1
	}
	gate := domain.EvalGate(domain.GateFileExists, observed, 1, domain.OpEQ, "EA source file must exist")

	if !gate.Passed {
		return stage.Outcome{Result: result(domain.StageLoadEA, false, nil, &gate, "EA source file not found: "+state.EASourcePath)}
	}
	return stage.Outcome{Result: result(domain.StageLoadEA, true, nil, &gate)}
}

var _ stage.Stage = LoadEA{}
