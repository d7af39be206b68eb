package stages

import (
	"context"
	"os"
	"strings"

	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

const safetyMarker = "// ea-stress-lab:safety"

// safetyBlock appends the spread/slippage limit inputs, a guarded
// order-dispatch wrapper that rejects trades exceeding those limits, and
// macro redefinitions neutralizing foreign side effects. The OrderSend
// redefinition comes textually after the guard's own delegating call, so
// the guard still reaches the terminal's real dispatch while every call
// site in the EA's code below is rewritten to the guard. A limit of 0
// means unrestricted, which is what the pinned defaults use.
const safetyBlock = `
` + safetyMarker + `
input double MaxSpreadPips = 0.0;
input double MaxSlippagePips = 0.0;
double EAStressLabSpreadPips(string symbol)
{
    return MarketInfo(symbol, MODE_SPREAD) / 10.0;
}
int EAStressLabGuardedOrderSend(string symbol, int cmd, double volume, double price, int slippage, double stoploss, double takeprofit, string comment, int magic, datetime expiration, color arrow)
{
    if(MaxSpreadPips > 0.0 && EAStressLabSpreadPips(symbol) > MaxSpreadPips)
        return -1;
    if(MaxSlippagePips > 0.0 && slippage > MaxSlippagePips)
        return -1;
    return OrderSend(symbol, cmd, volume, price, slippage, stoploss, takeprofit, comment, magic, expiration, arrow);
}
#define OrderSend EAStressLabGuardedOrderSend
#define FileOpen(...) (-1)
#define WebRequest(...) (-1)
#define DllCall(...) (0)
`

// SafetyParamNames are the inputs InjectSafety adds; they are marked
// non-optimizable on extraction (S3).
var SafetyParamNames = []string{"MaxSpreadPips", "MaxSlippagePips"}

// InjectSafety is S1c: add spread/slippage limit inputs, intercept the
// order-dispatch call to reject trades exceeding those limits, and
// neutralize foreign side effects. Idempotent.
type InjectSafety struct{}

func (InjectSafety) Name() string { return domain.StageInjectSafety }

func (InjectSafety) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if !state.HasStage(domain.StageInjectInstrumentation) {
		return false, []string{"inject-instrumentation must complete first"}
	}
	return true, nil
}

func (InjectSafety) Execute(_ context.Context, state *domain.WorkflowState, _ runner.Runner) stage.Outcome {
	path := state.ModifiedEAPath
	if path == "" {
		path = state.EASourcePath + ".instrumented"
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return stage.Outcome{Result: fatal(domain.StageInjectSafety, domain.ErrCodePreflight, "cannot read modified source: "+err.Error(), err)}
	}

	if strings.Contains(string(content), safetyMarker) {
		return stage.Outcome{Result: result(domain.StageInjectSafety, true, map[string]interface{}{"modified-ea-path": path, "already-safe": true}, nil)}
	}

	// Prepended, not appended: the macro redefinitions only rewrite text
	// that follows them, so the block must precede every call site in the
	// EA's own code.
	updated := safetyBlock + string(content)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return stage.Outcome{Result: fatal(domain.StageInjectSafety, domain.ErrCodeIntermittent, "cannot write safety-injected source: "+err.Error(), err)}
	}

	return stage.Outcome{Result: result(domain.StageInjectSafety, true, map[string]interface{}{"modified-ea-path": path}, nil)}
}

var _ stage.Stage = InjectSafety{}
