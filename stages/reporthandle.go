package stages

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ReportHandle builds a deterministic, collision-free artifact name of
// the form {source-stem}_{stage-tag}_{content-hash-8-hex}, per spec §5's
// shared-resource policy. The hash covers every identifying component so
// two workflows (or two passes within one workflow) never collide,
// satisfying the report-handle collision-freedom testable property —
// grounded on the teacher's computeIdempotencyKey (SHA-256 over a
// stable concatenation of identifying fields).
func ReportHandle(sourceStem, stageTag string, disambiguators ...string) string {
	h := sha256.New()
	h.Write([]byte(sourceStem))
	h.Write([]byte{0})
	h.Write([]byte(stageTag))
	for _, d := range disambiguators {
		h.Write([]byte{0})
		h.Write([]byte(d))
	}
	sum := hex.EncodeToString(h.Sum(nil))[:8]
	return strings.Join([]string{sourceStem, stageTag, sum}, "_")
}

func sourceStem(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
