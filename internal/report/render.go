package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/GriffinCanCode/bpforge/internal/domain/finding"
	"github.com/GriffinCanCode/bpforge/internal/domain/pipeline"
	"github.com/GriffinCanCode/bpforge/internal/shared/digest"
)

// Render writes a human-readable report. Every failing component lists the
// tier and pattern of each unresolved finding and its full checkpoint history.
func Render(w io.Writer, res *pipeline.Result) error {
	rw := &writer{w: w}

	status := "PASSED"
	if !res.Summary.OverallPassed {
		status = "FAILED"
	}
	rw.printf("Run %s (%s) %s: aggregate score %.4f, threshold %.2f\n", res.RunID, res.System, status, res.Summary.AggregateScore, res.Threshold)
	rw.list("resolved", res.Summary.ResolvedComponents)
	rw.list("escalated", res.Summary.EscalatedComponents)
	rw.list("cancelled", res.Summary.CancelledComponents)
	rw.list("failed", res.Summary.FailedComponents)

	if len(res.Errors) > 0 {
		rw.printf("\nErrors:\n")
		for _, e := range res.Errors {
			rw.printf("  - %s\n", e)
		}
	}

	for _, c := range res.Failing() {
		rw.component(c)
	}
	return rw.err
}

type writer struct {
	w   io.Writer
	err error
}

func (rw *writer) printf(format string, args ...any) {
	if rw.err != nil {
		return
	}
	_, rw.err = fmt.Fprintf(rw.w, format, args...)
}

func (rw *writer) list(label string, names []string) {
	if len(names) > 0 {
		rw.printf("  %s: %s\n", label, strings.Join(names, ", "))
	}
}

func (rw *writer) table(header string, rows func(tw *tabwriter.Writer)) {
	if rw.err != nil {
		return
	}
	tw := tabwriter.NewWriter(rw.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	rw.err = tw.Flush()
}

func (rw *writer) component(c pipeline.ComponentResult) {
	score := 0.0
	if c.Verdict != nil {
		score = c.Verdict.Score
	}
	rw.printf("\nComponent %s (%s): %s, score %.4f (initial %.4f)\n", c.Name, c.Kind, c.Status, score, c.InitialScore)
	if c.Error != "" {
		rw.printf("  error: %s\n", c.Error)
	}

	if c.Verdict != nil && len(c.Verdict.Findings) > 0 {
		rw.printf("  Unresolved findings:\n")
		rw.table("    TIER\tSEVERITY\tPATTERN\tLOCATION\tMESSAGE", func(tw *tabwriter.Writer) {
			for _, f := range c.Verdict.Findings {
				fmt.Fprintf(tw, "    %s\t%s\t%s\t%s\t%s\n", f.Tier, f.Severity, f.Pattern, location(f), oneLine(f.Message))
			}
		})
	}

	if len(c.History) > 0 {
		rw.printf("  Checkpoint history:\n")
		rw.table("    PASS\tSTATE\tSCORE\tDIGEST\tPATTERNS", func(tw *tabwriter.Writer) {
			for _, cp := range c.History {
				fmt.Fprintf(tw, "    %d\t%s\t%.4f\t%s\t%s\n", cp.Pass, cp.State, cp.Score, digest.Short(cp.Digest), strings.Join(cp.Findings.Patterns(), ","))
			}
		})
	}

	if len(c.Attempts) > 0 {
		rw.printf("  Attempts:\n")
		rw.table("    PASS\tSTATE\tRESULT\tSCORE\tDETAIL", func(tw *tabwriter.Writer) {
			for _, a := range c.Attempts {
				fmt.Fprintf(tw, "    %d\t%s\t%s\t%.4f\t%s\n", a.Pass, a.State, a.Result, a.Score, oneLine(a.Detail))
			}
		})
	}
}

func location(f finding.Finding) string {
	var parts []string
	if f.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", f.Line))
	}
	if f.Port != "" {
		parts = append(parts, "port "+f.Port)
	}
	if f.Symbol != "" {
		parts = append(parts, f.Symbol)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 120 {
		return s[:117] + "..."
	}
	return s
}
