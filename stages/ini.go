package stages

import (
	"fmt"
	"strings"
	"time"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
)

// RenderINI translates optimization ranges into the runner's
// configuration file format (spec §6): a session section and an inputs
// section, one line per parameter.
//
// Boolean encoding (DESIGN.md Open Question decision #1): the value slot
// always uses 0/1, for swept and fixed booleans alike, so the hand-written
// S8 parser can invert the format unambiguously. The trailing
// optimize-flag slot keeps the format's own literal Y/N.
func RenderINI(eaPath, symbol, timeframe string, ranges []domain.OptimizationRange, periodStart, periodEnd, forwardSplit time.Time, cfg config.Config, reportHandle string) string {
	var b strings.Builder

	model := 1
	if cfg.DataModel == "tick" {
		model = 0
	}

	fmt.Fprintf(&b, "[session]\n")
	fmt.Fprintf(&b, "expert-filename=%s\n", eaPath)
	fmt.Fprintf(&b, "symbol=%s\n", symbol)
	fmt.Fprintf(&b, "period-minutes=%s\n", timeframe)
	fmt.Fprintf(&b, "from-date=%s\n", periodStart.Format("2006.01.02"))
	fmt.Fprintf(&b, "to-date=%s\n", periodEnd.Format("2006.01.02"))
	fmt.Fprintf(&b, "forward-mode=by-date\n")
	fmt.Fprintf(&b, "forward-date=%s\n", forwardSplit.Format("2006.01.02"))
	fmt.Fprintf(&b, "model=%d\n", model)
	fmt.Fprintf(&b, "execution-mode=%d\n", cfg.ExecutionLatencyMS*100)
	fmt.Fprintf(&b, "optimization-mode=genetic\n")
	fmt.Fprintf(&b, "optimization-criterion=custom\n")
	fmt.Fprintf(&b, "report-handle=%s\n", reportHandle)
	fmt.Fprintf(&b, "deposit=%.2f\n", cfg.Deposit)
	fmt.Fprintf(&b, "currency=%s\n", cfg.Currency)
	fmt.Fprintf(&b, "leverage=%d\n", cfg.Leverage)
	fmt.Fprintf(&b, "visual=0\n")
	fmt.Fprintf(&b, "auto-shutdown=1\n")

	fmt.Fprintf(&b, "[inputs]\n")
	for _, r := range ranges {
		b.WriteString(renderRangeLine(r))
		b.WriteString("\n")
	}
	return b.String()
}

// renderRangeLine formats one inputs-section line:
// name=value||start||step||stop||Y|N. A fixed parameter carries its
// value in the leading slot and zeroed range fields; a swept parameter
// carries its current (start) value leading the same triple it sweeps.
func renderRangeLine(r domain.OptimizationRange) string {
	flag := "N"
	if r.Optimize {
		flag = "Y"
	}
	if !r.Optimize {
		return fmt.Sprintf("%s=%s||0||0||0||%s", r.Name, r.Fixed.String(), flag)
	}
	return fmt.Sprintf("%s=%s||%s||%s||%s||%s", r.Name, trimFloat(r.Start), trimFloat(r.Start), trimFloat(r.Step), trimFloat(r.Stop), flag)
}

func trimFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
