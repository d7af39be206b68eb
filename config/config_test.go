package config

import "testing"

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	c := Default()
	if c.TotalYears != 4 || c.ForwardYears != 1 || c.InSampleYears != 3 {
		t.Fatalf("unexpected period defaults: %+v", c)
	}
	if c.MinTrades != 50 || c.ExplorationMinTrades != 10 {
		t.Fatalf("unexpected trade-count defaults: %+v", c)
	}
	if c.MaxFixAttempts != 3 {
		t.Fatalf("expected MaxFixAttempts default of 3, got %d", c.MaxFixAttempts)
	}
	if c.MaxRefineIterations != 2 {
		t.Fatalf("expected MaxRefineIterations default of 2, got %d", c.MaxRefineIterations)
	}
	if !c.AutoSelection || !c.AutoRefineDecision || !c.AutoStress || !c.AutoForwardWindows {
		t.Fatalf("expected the auto-decision flags to default to true, got %+v", c)
	}
	if c.AutoMultiPair {
		t.Fatal("expected AutoMultiPair to default to false")
	}
	if c.MonteCarloStrict {
		t.Fatal("expected MonteCarloStrict to default to false")
	}
}

func TestNewAppliesOptionsOverDefault(t *testing.T) {
	c := New(
		WithAutoSelection(false),
		WithMonteCarloStrict(true),
		WithMaxFixAttempts(1),
		WithAdditionalSymbols([]string{"GBPUSD", "USDJPY"}),
	)

	if c.AutoSelection {
		t.Fatal("expected WithAutoSelection(false) to override the default")
	}
	if !c.MonteCarloStrict {
		t.Fatal("expected WithMonteCarloStrict(true) to override the default")
	}
	if c.MaxFixAttempts != 1 {
		t.Fatalf("expected WithMaxFixAttempts(1) to override the default, got %d", c.MaxFixAttempts)
	}
	if len(c.AdditionalSymbols) != 2 || c.AdditionalSymbols[0] != "GBPUSD" {
		t.Fatalf("expected WithAdditionalSymbols to set the symbol list, got %v", c.AdditionalSymbols)
	}

	if c.MinTrades != Default().MinTrades {
		t.Fatal("expected fields untouched by an option to retain their default value")
	}
}

func TestWithAutoRefineDecisionOverridesDefault(t *testing.T) {
	c := New(WithAutoRefineDecision(false))
	if c.AutoRefineDecision {
		t.Fatal("expected WithAutoRefineDecision(false) to override the default")
	}
}
