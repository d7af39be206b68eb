package stages

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
)

func TestInjectSafetyAddsLimitsAndNeutralizesSideEffects(t *testing.T) {
	dir := t.TempDir()
	modified := filepath.Join(dir, "EA.mq4.instrumented")
	if err := os.WriteFile(modified, []byte("// instrumented body\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	state := domain.NewWorkflowState("wf-1", filepath.Join(dir, "EA.mq4"), "EURUSD", "H1", "handle", time.Time{})
	state.ModifiedEAPath = modified
	state = state.WithStageResult(domain.StageResult{StageName: domain.StageInjectInstrumentation, Success: true})

	out := InjectSafety{}.Execute(context.Background(), state, runner.NewDryRun())
	if !out.Result.Success {
		t.Fatalf("expected success, got errors: %v", out.Result.Errors)
	}

	content, err := os.ReadFile(modified)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"MaxSpreadPips", "MaxSlippagePips", "FileOpen", "WebRequest", "DllCall"} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("expected safety block to mention %q", want)
		}
	}
}

func TestInjectSafetyInterceptsOrderDispatch(t *testing.T) {
	dir := t.TempDir()
	modified := filepath.Join(dir, "EA.mq4.instrumented")
	eaBody := "// instrumented body\nint ticket = OrderSend(Symbol(), OP_BUY, 0.1, Ask, 30, 0, 0, \"\", 12345, 0, clrNONE);\n"
	if err := os.WriteFile(modified, []byte(eaBody), 0o644); err != nil {
		t.Fatal(err)
	}

	state := domain.NewWorkflowState("wf-1", filepath.Join(dir, "EA.mq4"), "EURUSD", "H1", "handle", time.Time{})
	state.ModifiedEAPath = modified

	out := InjectSafety{}.Execute(context.Background(), state, runner.NewDryRun())
	if !out.Result.Success {
		t.Fatalf("expected success, got errors: %v", out.Result.Errors)
	}

	raw, err := os.ReadFile(modified)
	if err != nil {
		t.Fatal(err)
	}
	content := string(raw)

	// The guard must reject on both limits before delegating to the real
	// dispatch call.
	guardStart := strings.Index(content, "int EAStressLabGuardedOrderSend(")
	if guardStart < 0 {
		t.Fatal("expected the guarded order-dispatch wrapper to be injected")
	}
	guard := content[guardStart:]
	if defEnd := strings.Index(guard, "#define"); defEnd >= 0 {
		guard = guard[:defEnd]
	}
	for _, want := range []string{
		"EAStressLabSpreadPips(symbol) > MaxSpreadPips",
		"slippage > MaxSlippagePips",
		"return -1;",
		"return OrderSend(symbol,",
	} {
		if !strings.Contains(guard, want) {
			t.Fatalf("expected the guard to contain %q, guard was:\n%s", want, guard)
		}
	}

	// The redefinition must come after the guard's own delegating call
	// (so the guard reaches the real dispatch) and before the EA's call
	// sites (so they are rewritten to the guard).
	defineIdx := strings.Index(content, "#define OrderSend EAStressLabGuardedOrderSend")
	if defineIdx < 0 {
		t.Fatal("expected OrderSend to be redefined to the guard")
	}
	delegateIdx := strings.Index(content, "return OrderSend(symbol,")
	if delegateIdx < 0 || delegateIdx > defineIdx {
		t.Fatal("expected the guard's delegating call to precede the redefinition")
	}
	callSiteIdx := strings.Index(content, "OrderSend(Symbol(),")
	if callSiteIdx < 0 || callSiteIdx < defineIdx {
		t.Fatal("expected the EA's own call site to follow the redefinition so the macro rewrites it")
	}
}

func TestInjectSafetyIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	modified := filepath.Join(dir, "EA.mq4.instrumented")
	if err := os.WriteFile(modified, []byte("// instrumented body\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	state := domain.NewWorkflowState("wf-1", filepath.Join(dir, "EA.mq4"), "EURUSD", "H1", "handle", time.Time{})
	state.ModifiedEAPath = modified

	first := InjectSafety{}.Execute(context.Background(), state, runner.NewDryRun())
	if !first.Result.Success {
		t.Fatalf("expected first run to succeed, got errors: %v", first.Result.Errors)
	}
	second := InjectSafety{}.Execute(context.Background(), state, runner.NewDryRun())
	if !second.Result.Success {
		t.Fatalf("expected second run to succeed, got errors: %v", second.Result.Errors)
	}
	alreadySafe, _ := second.Result.Data["already-safe"].(bool)
	if !alreadySafe {
		t.Fatal("expected the second run to recognize the file was already safety-injected")
	}

	content, err := os.ReadFile(modified)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(content), safetyMarker) != 1 {
		t.Fatal("expected exactly one safety marker after a repeated run")
	}
}
