package domain

import "testing"

func TestCompositeScoreBounds(t *testing.T) {
	cases := []struct {
		name string
		in   ScoreInputs
	}{
		{"zeroed", ScoreInputs{}},
		{"maxed", ScoreInputs{BackProfit: 9999, ForwardProfit: 9999, TotalProfit: 50000, TradeCount: 1000, ProfitFactor: 10, MaxDrawdownPct: 0}},
		{"negative drawdown edge", ScoreInputs{TotalProfit: 100, TradeCount: 60, ProfitFactor: 1.2, MaxDrawdownPct: 45}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := CompositeScore(c.in)
			if got < 0 || got > 10 {
				t.Fatalf("score out of bounds: %v", got)
			}
		})
	}
}

func TestCompositeScoreMonotonic(t *testing.T) {
	base := ScoreInputs{BackProfit: 500, ForwardProfit: 500, TotalProfit: 1000, TradeCount: 80, ProfitFactor: 1.5, MaxDrawdownPct: 15}
	more := base
	more.TotalProfit = 2000
	if CompositeScore(more) < CompositeScore(base) {
		t.Fatal("score must be non-decreasing in profit")
	}

	moreTrades := base
	moreTrades.TradeCount = 150
	if CompositeScore(moreTrades) < CompositeScore(base) {
		t.Fatal("score must be non-decreasing in trade count up to the cap")
	}

	worseDD := base
	worseDD.MaxDrawdownPct = 25
	if CompositeScore(worseDD) > CompositeScore(base) {
		t.Fatal("score must be non-increasing in max drawdown")
	}
}

func TestCompositeScoreConsistencyBonus(t *testing.T) {
	withBonus := ScoreInputs{BackProfit: 100, ForwardProfit: 100, TotalProfit: 100, TradeCount: 60, ProfitFactor: 1.2, MaxDrawdownPct: 10}
	withoutBonus := withBonus
	withoutBonus.ForwardProfit = -5
	if CompositeScore(withBonus) <= CompositeScore(withoutBonus) {
		t.Fatal("positive back and forward profit must add a consistency bonus")
	}
}

func TestProfitFactorBoundary(t *testing.T) {
	if pf := ProfitFactor(100, 0); pf != 99 {
		t.Fatalf("zero gross-loss with positive gross-profit must yield 99, got %v", pf)
	}
	if pf := ProfitFactor(0, 0); pf != 0 {
		t.Fatalf("zero/zero must yield 0, got %v", pf)
	}
	if pf := ProfitFactor(150, 100); pf != 1.5 {
		t.Fatalf("expected 1.5, got %v", pf)
	}
}

func TestEvalGateBoundaries(t *testing.T) {
	g := EvalGate(GateMinTrades, 50, 50, OpGTE, "")
	if !g.Passed {
		t.Fatal("trade count exactly at minimum-trades must pass")
	}
	g = EvalGate(GateProfitFactor, 1.5, 1.5, OpGTE, "")
	if !g.Passed {
		t.Fatal("profit factor at exactly 1.5 must pass")
	}
	g = EvalGate(GateMaxDrawdown, 30, 30, OpLTE, "")
	if !g.Passed {
		t.Fatal("max drawdown at exactly 30% must pass")
	}
}

func TestOptimizationRangeValidate(t *testing.T) {
	r := OptimizationRange{Name: "Lots", Optimize: true, Start: 1, Step: 0.5, Stop: 0.9}
	if errs := r.Validate(); len(errs) == 0 {
		t.Fatal("expected start > stop to be rejected")
	}
	r = OptimizationRange{Name: "Lots", Optimize: true, Start: 1, Step: 0, Stop: 2}
	if errs := r.Validate(); len(errs) == 0 {
		t.Fatal("expected non-positive step to be rejected")
	}
	r = OptimizationRange{Name: "Lots", Optimize: true, Start: 1, Step: 1, Stop: 1}
	if errs := r.Validate(); len(errs) == 0 {
		t.Fatal("expected a single-value range to be rejected")
	}
	r = OptimizationRange{Name: "Lots", Optimize: true, Start: 1, Step: 1, Stop: 2}
	if errs := r.Validate(); len(errs) != 0 {
		t.Fatalf("expected valid range, got %v", errs)
	}
}
