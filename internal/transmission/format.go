package transmission

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// FormatReport renders a report as analyst-facing text: lag order and BIC,
// the transmission matrix, robustness bounds, acceleration factors and the
// significant causal pairs.
func FormatReport(r *Report) string {
	var b strings.Builder
	WriteReport(&b, r)
	return b.String()
}

// WriteReport writes the text rendering of a report to w
func WriteReport(w io.Writer, r *Report) {
	est := r.Estimate
	rule := strings.Repeat("=", 72)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "STRUCTURAL TRANSMISSION REPORT")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Run:          %s\n", r.RunID)
	fmt.Fprintf(w, "Generated:    %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if est == nil {
		fmt.Fprintln(w, "No estimate available.")
		return
	}
	fmt.Fprintf(w, "Observations: %d (differenced)\n", est.Observations)
	fmt.Fprintf(w, "Lag order:    %d\n", est.LagOrder)
	fmt.Fprintf(w, "BIC:          %s\n", formatNumber(est.BIC))
	fmt.Fprintf(w, "Horizon:      %d\n", est.Horizon)
	fmt.Fprintf(w, "Ordering:     %s\n", joinPillars(est.Ordering))
	if !est.Identified {
		fmt.Fprintln(w, "Identification: FAILED, reduced-form response shown")
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Transmission matrix (row responds to shock in column)")
	writeMatrix(w, est.Transmission, est.Pillars)

	if rob := r.Robustness; rob != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Robustness over %d orderings (%d identified)\n", rob.Orderings, rob.Succeeded)
		if rob.Succeeded > 0 {
			writeBounds(w, rob, est.Pillars)
		}
		fmt.Fprintln(w, "Generalized impulse response")
		writeMatrix(w, rob.Generalized, est.Pillars)
	}

	if acc := r.Acceleration; acc != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Acceleration factors (threshold %.2f, normal %d obs, stress %d obs)\n",
			acc.Threshold, acc.NormalObs, acc.StressObs)
		writeMatrix(w, acc.Ratio, est.Pillars)
	}

	fmt.Fprintln(w)
	significant := r.SignificantPairs()
	fmt.Fprintf(w, "Significant causal pairs: %d of %d\n", len(significant), len(r.Causality))
	for _, c := range significant {
		fmt.Fprintf(w, "  %-12s -> %-12s F=%10s  p=%.4f\n",
			c.Cause, c.Effect, formatNumber(c.FStatistic), c.PValue)
	}

	if len(r.Validation) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Out-of-sample validation: %d records, MAE %.4f\n", len(r.Validation), r.MeanAbsError())
		for _, v := range r.Validation {
			fmt.Fprintf(w, "  %-24s %s  predicted=%.4f realized=%.4f error=%.4f\n",
				v.Scenario, v.AsOf.Format("2006-01-02"), v.Predicted, v.Realized, v.AbsError)
		}
	}
	fmt.Fprintln(w, rule)
}

func writeMatrix(w io.Writer, m Matrix, pillars []Pillar) {
	fmt.Fprintf(w, "%-12s", "")
	for _, p := range pillars {
		fmt.Fprintf(w, "%12s", p)
	}
	fmt.Fprintln(w)
	for i, p := range pillars {
		fmt.Fprintf(w, "%-12s", p)
		for j := range pillars {
			v := 0.0
			if i < len(m) && j < len(m[i]) {
				v = m[i][j]
			}
			fmt.Fprintf(w, "%12.4f", v)
		}
		fmt.Fprintln(w)
	}
}

func writeBounds(w io.Writer, rob *RobustnessResult, pillars []Pillar) {
	fmt.Fprintf(w, "  %-12s %-12s %12s %12s %12s\n", "response", "shock", "p10", "median", "p90")
	for i, target := range pillars {
		for j, source := range pillars {
			if i == j {
				continue
			}
			fmt.Fprintf(w, "  %-12s %-12s %12.4f %12.4f %12.4f\n",
				target, source, rob.Pct10[i][j], rob.Median[i][j], rob.Pct90[i][j])
		}
	}
}

func joinPillars(ps []Pillar) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, " > ")
}

// formatNumber prints extreme sentinel values in scientific notation
func formatNumber(v float64) string {
	if math.Abs(v) >= 1e6 {
		return fmt.Sprintf("%.3e", v)
	}
	return fmt.Sprintf("%.4f", v)
}
