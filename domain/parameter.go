// Package domain holds the pure-data model shared by every stage and the
// orchestrator: parameter descriptors, trade metrics, gate results, and the
// workflow state record itself. Nothing in this package talks to a runner,
// a store, or the filesystem.
package domain

import "strconv"

// ParamKind is the declared type of an EA source parameter.
type ParamKind string

const (
	KindInt       ParamKind = "int"
	KindReal      ParamKind = "real"
	KindBool      ParamKind = "bool"
	KindEnum      ParamKind = "enum"
	KindString    ParamKind = "string"
	KindTimestamp ParamKind = "timestamp"
	KindColor     ParamKind = "color"
)

// Value is a tagged-variant holding one parameter's value, keyed by the
// parameter's declared Kind. Exactly one field is meaningful at a time;
// which one is determined by Kind, not by which fields are non-zero.
type Value struct {
	Kind ParamKind
	I    int64
	F    float64
	B    bool
	S    string
}

// IntValue, RealValue, BoolValue and StringValue construct a Value of the
// matching kind. Enum, timestamp and color parameters are carried as
// strings (StringValue) — their kind only affects how the source parser
// and the ini renderer treat them, not their storage shape.
func IntValue(v int64) Value     { return Value{Kind: KindInt, I: v} }
func RealValue(v float64) Value  { return Value{Kind: KindReal, F: v} }
func BoolValue(v bool) Value     { return Value{Kind: KindBool, B: v} }
func StringValue(v string) Value { return Value{Kind: KindString, S: v} }

// String renders the value in the configuration-file encoding for its
// kind: booleans as "0"/"1", integers and reals in decimal, everything
// else verbatim.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		if v.B {
			return "1"
		}
		return "0"
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindReal:
		return strconv.FormatFloat(v.F, 'f', -1, 64)
	default:
		return v.S
	}
}

// Parameter is an immutable record extracted from the EA source.
type Parameter struct {
	Name          string
	Kind          ParamKind
	Default       Value
	SourceLine    int
	Comment       string
	Optimizable   bool
}

// OptimizationRange is a per-parameter sweep directive. When Optimize is
// false, Fixed carries the value to hold constant. When Optimize is true
// the (Start, Step, Stop) triple drives the sweep; for boolean parameters
// the triple collapses to the pair (0, 1, 1).
type OptimizationRange struct {
	Name     string
	Optimize bool
	Fixed    Value
	Start    float64
	Step     float64
	Stop     float64
}

// Validate checks the invariant from spec §3: when Optimize is true,
// Start <= Stop, Step > 0, and the range yields at least two distinct
// trial values.
func (r OptimizationRange) Validate() []string {
	if !r.Optimize {
		return nil
	}
	var errs []string
	if r.Start > r.Stop {
		errs = append(errs, r.Name+": start must be <= stop")
	}
	if r.Step <= 0 {
		errs = append(errs, r.Name+": step must be > 0")
	}
	if r.Step > 0 {
		count := (r.Stop-r.Start)/r.Step + 1
		if count < 2 {
			errs = append(errs, r.Name+": range must admit at least two distinct values")
		}
	}
	return errs
}

