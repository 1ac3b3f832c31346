package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/coupler/pkg/domain"
)

const secondsPerDay = 86400

// Step prints one line as soon as a step finishes.
func (p *Printer) Step(rec domain.StepRecord) {
	k := rec.Result.K.String()
	if rec.SourceRate == 0 {
		k = p.color("skipped (zero source rate)", "#94a3b8").String()
	}
	fmt.Fprintf(p.out, "%s step %d  t=%.3f d  k=%s  (%s)\n",
		p.color("•", "#818cf8"), rec.Index, rec.Time/secondsPerDay, k, rec.Duration.Round(time.Millisecond))
}

// Summary prints a table of every step of a run.
func (p *Printer) Summary(runID string, records []domain.StepRecord) {
	header := []string{"step", "time [d]", "dt [d]", "source rate", "k-eff", "wall"}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			fmt.Sprint(rec.Index),
			fmt.Sprintf("%.4g", rec.Time/secondsPerDay),
			fmt.Sprintf("%.4g", rec.Dt/secondsPerDay),
			fmt.Sprintf("%.4g", rec.SourceRate),
			rec.Result.K.String(),
			rec.Duration.Round(time.Millisecond).String(),
		})
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	line := func(cells []string) string {
		padded := make([]string, len(cells))
		for i, c := range cells {
			padded[i] = fmt.Sprintf("%-*s", widths[i], c)
		}
		return strings.TrimRight(strings.Join(padded, "  "), " ")
	}

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.color("run "+runID, "#a78bfa").Bold())
	head := line(header)
	fmt.Fprintln(p.out, p.color(head, "#c084fc"))
	fmt.Fprintln(p.out, strings.Repeat("─", min(len([]rune(head)), p.width)))
	for _, row := range rows {
		fmt.Fprintln(p.out, line(row))
	}
}
