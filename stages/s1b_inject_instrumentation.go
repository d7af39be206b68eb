package stages

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

const instrumentationMarker = "// ea-stress-lab:instrumentation"

// instrumentationFunc is the appended custom optimization criterion:
// profit * equity-curve-R2 * sqrt(trades/100) * drawdown-factor *
// profit-factor-bonus, returning a sentinel negative value below the
// exploration-minimum trade count or when profit is non-positive.
func instrumentationFunc(explorationMinTrades int) string {
	return fmt.Sprintf(`
%s
double EAStressLabCriterion(double profit, double equityR2, int trades, double drawdownFactor, double profitFactorBonus)
{
    if(trades < %d || profit <= 0.0)
        return -1.0;
    return profit * equityR2 * MathSqrt((double)trades / 100.0) * drawdownFactor * profitFactorBonus;
}
`, instrumentationMarker, explorationMinTrades)
}

// InjectInstrumentation is S1b: append the custom scoring function to a
// sibling source file. Idempotent: re-running against an already
// instrumented file is a no-op.
type InjectInstrumentation struct {
	ExplorationMinTrades int
}

func (InjectInstrumentation) Name() string { return domain.StageInjectInstrumentation }

func (InjectInstrumentation) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if !state.HasStage(domain.StageLoadEA) {
		return false, []string{"load-ea must complete first"}
	}
	return true, nil
}

func (s InjectInstrumentation) Execute(_ context.Context, state *domain.WorkflowState, _ runner.Runner) stage.Outcome {
	modifiedPath := state.ModifiedEAPath
	if modifiedPath == "" {
		modifiedPath = state.EASourcePath + ".instrumented"
	}

	src, err := os.ReadFile(state.EASourcePath)
	if err != nil {
		return stage.Outcome{Result: fatal(domain.StageInjectInstrumentation, domain.ErrCodePreflight, "cannot read EA source: "+err.Error(), err)}
	}

	content := string(src)
	if existing, readErr := os.ReadFile(modifiedPath); readErr == nil {
		content = string(existing)
	}

	if strings.Contains(content, instrumentationMarker) {
		return stage.Outcome{Result: result(domain.StageInjectInstrumentation, true, map[string]interface{}{"modified-ea-path": modifiedPath, "already-instrumented": true}, nil)}
	}

	minTrades := s.ExplorationMinTrades
	if minTrades == 0 {
		minTrades = 10
	}
	content += instrumentationFunc(minTrades)

	if err := os.WriteFile(modifiedPath, []byte(content), 0o644); err != nil {
		return stage.Outcome{Result: fatal(domain.StageInjectInstrumentation, domain.ErrCodeIntermittent, "cannot write instrumented source: "+err.Error(), err)}
	}

	return stage.Outcome{Result: result(domain.StageInjectInstrumentation, true, map[string]interface{}{"modified-ea-path": modifiedPath}, nil)}
}

var _ stage.Stage = InjectInstrumentation{}
