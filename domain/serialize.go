package domain

import "encoding/json"

// Encode serializes a WorkflowState to its canonical JSON representation.
func Encode(w *WorkflowState) ([]byte, error) {
	return json.Marshal(w)
}

// Decode parses a WorkflowState from its JSON representation. Decode and
// Encode round-trip: Decode(Encode(w)) reconstructs w field-for-field.
func Decode(data []byte) (*WorkflowState, error) {
	var w WorkflowState
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// ValidateRanges checks a full set of optimization ranges against the
// extracted parameter list: every range name must exist among params,
// and each range's own invariants (OptimizationRange.Validate) must hold.
func ValidateRanges(params []Parameter, ranges []OptimizationRange) []string {
	known := make(map[string]bool, len(params))
	for _, p := range params {
		known[p.Name] = true
	}
	var errs []string
	for _, r := range ranges {
		if !known[r.Name] {
			errs = append(errs, "unknown parameter in optimization range: "+r.Name)
			continue
		}
		errs = append(errs, r.Validate()...)
	}
	return errs
}
