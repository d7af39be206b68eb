package stages

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

// ExtractParams is S3: parse the modified source's input declarations.
// A narrow, hand-written line scanner targeting the one observed
// declaration shape (`input <type> <Name> = <default>; // comment`),
// per the Design Notes' stance against a generic language parser.
type ExtractParams struct{}

func (ExtractParams) Name() string { return domain.StageExtractParams }

func (ExtractParams) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if !state.HasStage(domain.StageCompile) {
		return false, []string{"compile must complete first"}
	}
	return true, nil
}

func (ExtractParams) Execute(_ context.Context, state *domain.WorkflowState, _ runner.Runner) stage.Outcome {
	path := state.ModifiedEAPath
	if path == "" {
		path = state.EASourcePath + ".instrumented"
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return stage.Outcome{Result: fatal(domain.StageExtractParams, domain.ErrCodePreflight, "cannot read modified source: "+err.Error(), err)}
	}

	safetySet := make(map[string]bool, len(SafetyParamNames))
	for _, n := range SafetyParamNames {
		safetySet[n] = true
	}

	var params []domain.Parameter
	lines := strings.Split(string(src), "\n")
	for i, line := range lines {
		p, ok := parseInputLine(line, i+1)
		if !ok {
			continue
		}
		if safetySet[p.Name] {
			p.Optimizable = false
		}
		params = append(params, p)
	}

	gate := domain.EvalGate(domain.GateParamsFound, float64(len(params)), 1, domain.OpGTE, "at least one parameter must be extracted")

	data := map[string]interface{}{"extracted-parameters": params}
	if !gate.Passed {
		return stage.Outcome{Result: result(domain.StageExtractParams, false, data, &gate, "no parameters found in source")}
	}
	return stage.Outcome{
		Result: result(domain.StageExtractParams, true, data, &gate),
		Pause:  domain.StatusAwaitingParams,
	}
}

// parseInputLine recognizes lines of the form:
//
//	input <type> <Name> = <default>; // comment
//
// Identifiers, debug toggles, and non-numeric types are marked
// non-optimizable per spec §3's Parameter definition.
func parseInputLine(line string, lineNo int) (domain.Parameter, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "input ") {
		return domain.Parameter{}, false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "input"))

	comment := ""
	if idx := strings.Index(rest, "//"); idx >= 0 {
		comment = strings.TrimSpace(rest[idx+2:])
		rest = strings.TrimSpace(rest[:idx])
	}
	rest = strings.TrimSuffix(rest, ";")

	eq := strings.Index(rest, "=")
	var decl, defaultLit string
	if eq >= 0 {
		decl = strings.TrimSpace(rest[:eq])
		defaultLit = strings.TrimSpace(rest[eq+1:])
	} else {
		decl = strings.TrimSpace(rest)
	}

	fields := strings.Fields(decl)
	if len(fields) < 2 {
		return domain.Parameter{}, false
	}
	typeTok := fields[0]
	name := fields[1]

	kind, optimizableByType := classifyType(typeTok)
	val := parseDefault(kind, defaultLit)

	optimizable := optimizableByType && !looksLikeIdentifierOrDebug(name)

	return domain.Parameter{
		Name:        name,
		Kind:        kind,
		Default:     val,
		SourceLine:  lineNo,
		Comment:     comment,
		Optimizable: optimizable,
	}, true
}

func classifyType(typeTok string) (domain.ParamKind, bool) {
	switch strings.ToLower(typeTok) {
	case "int", "long", "short":
		return domain.KindInt, true
	case "double", "float":
		return domain.KindReal, true
	case "bool":
		return domain.KindBool, true
	case "string":
		return domain.KindString, false
	case "datetime":
		return domain.KindTimestamp, false
	case "color":
		return domain.KindColor, false
	default:
		return domain.KindEnum, false
	}
}

func parseDefault(kind domain.ParamKind, lit string) domain.Value {
	switch kind {
	case domain.KindInt:
		v, _ := strconv.ParseInt(lit, 10, 64)
		return domain.IntValue(v)
	case domain.KindReal:
		v, _ := strconv.ParseFloat(lit, 64)
		return domain.RealValue(v)
	case domain.KindBool:
		return domain.BoolValue(strings.EqualFold(lit, "true") || lit == "1")
	default:
		return domain.StringValue(strings.Trim(lit, `"`))
	}
}

func looksLikeIdentifierOrDebug(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "magicnumber") ||
		strings.Contains(lower, "magic") ||
		strings.Contains(lower, "debug") ||
		strings.Contains(lower, "comment")
}

var _ stage.Stage = ExtractParams{}
