// Package config defines the single explicit configuration record every
// tunable in the system is read from, constructed once and threaded
// through the orchestrator and stages — grounded on the teacher's
// Options struct (graph/engine.go) and the Design Notes' own
// prescription against a dynamic "god-object".
package config

// Config enumerates every tunable named in spec §6.
type Config struct {
	// Period
	TotalYears      int
	InSampleYears   int
	ForwardYears    int

	// Data
	DataModel        string // "ohlc" (default) or "tick"
	ExecutionLatencyMS int

	// Account
	Deposit  float64
	Currency string
	Leverage int

	// Gates
	MinProfitFactor    float64
	MaxDrawdownPct     float64
	MinTrades          int
	ExplorationMinTrades int
	MCConfidenceMin    float64
	MCRuinMax          float64

	// Monte Carlo
	MCIterations     int
	MCRuinThreshold  float64

	// Optimization
	SweepTimeoutSeconds int
	HeartbeatSeconds    int
	TopNBacktest        int
	TopNDisplay         int

	// Refinement
	MaxRefineIterations      int
	ToggleDominanceThreshold float64
	ClusteringCVThreshold    float64
	MinValidPasses           int

	// Stress (S12/S13)
	RollingDays       []int
	CalendarMonthsAgo []int
	Models            []string
	TickLatencies     []int
	OverlaySpreads    []float64
	OverlaySlippages  []float64

	// Behavior
	AutoSelection       bool
	AutoRefineDecision  bool
	AutoStress          bool
	AutoForwardWindows  bool
	AutoMultiPair       bool

	// Selection
	BestPassSelection string // "score" or "profit"

	// MonteCarloStrict: when true, S10 fails explicitly rather than
	// silently degrading to summary-stat trade estimation when the best
	// pass carries no extractable trade list (see DESIGN.md Open
	// Question decision #3).
	MonteCarloStrict bool

	// AdditionalSymbols drives S14 multi-pair child workflows.
	AdditionalSymbols []string

	// MaxFixAttempts bounds S5b patch restarts (spec fixes this at 3,
	// exposed here so tests can shrink it).
	MaxFixAttempts int
}

// Default returns the configuration surface's documented defaults
// (spec §6).
func Default() Config {
	return Config{
		TotalYears:    4,
		InSampleYears: 3,
		ForwardYears:  1,

		DataModel:          "ohlc",
		ExecutionLatencyMS: 10,

		Deposit:  10000,
		Currency: "USD",
		Leverage: 100,

		MinProfitFactor:      1.5,
		MaxDrawdownPct:       30,
		MinTrades:            50,
		ExplorationMinTrades: 10,
		MCConfidenceMin:      70,
		MCRuinMax:            5,

		MCIterations:    10000,
		MCRuinThreshold: 50,

		SweepTimeoutSeconds: 36000,
		HeartbeatSeconds:    60,
		TopNBacktest:        20,
		TopNDisplay:         20,

		MaxRefineIterations:      2,
		ToggleDominanceThreshold: 0.70,
		ClusteringCVThreshold:    0.20,
		MinValidPasses:           50,

		RollingDays:       []int{30, 90, 180},
		CalendarMonthsAgo: []int{1, 3, 6},
		Models:            []string{"ohlc", "tick"},
		TickLatencies:     []int{0, 50, 150},
		OverlaySpreads:    []float64{1.0, 2.0, 3.0},
		OverlaySlippages:  []float64{0.5, 1.0},

		AutoSelection:      true,
		AutoRefineDecision: true,
		AutoStress:         true,
		AutoForwardWindows: true,
		AutoMultiPair:      false,

		BestPassSelection: "score",
		MonteCarloStrict:  false,
		MaxFixAttempts:    3,
	}
}

// Option mutates a Config at construction, matching the teacher's
// With*-alongside-a-plain-struct pattern (graph/engine.go's Options).
type Option func(*Config)

// New builds a Config starting from Default and applying opts in order.
func New(opts ...Option) Config {
	c := Default()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func WithAutoSelection(v bool) Option      { return func(c *Config) { c.AutoSelection = v } }
func WithAutoRefineDecision(v bool) Option { return func(c *Config) { c.AutoRefineDecision = v } }
func WithMonteCarloStrict(v bool) Option   { return func(c *Config) { c.MonteCarloStrict = v } }
func WithAdditionalSymbols(symbols []string) Option {
	return func(c *Config) { c.AdditionalSymbols = symbols }
}
func WithMaxFixAttempts(n int) Option { return func(c *Config) { c.MaxFixAttempts = n } }
