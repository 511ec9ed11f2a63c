// Package report renders run results, failure details, and job listings for
// the terminal: aligned tables with display-width padding and tinted statuses.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/gobulk/internal/runner"
	"github.com/dbsmedya/gobulk/internal/store"
)

// maxFailuresShown caps the per-record failure list so a large batch of
// identical errors does not flood the terminal.
const maxFailuresShown = 10

// Reporter writes human-readable output blocks.
type Reporter struct {
	w     io.Writer
	color bool
}

// New creates a reporter writing to w with status tinting enabled.
func New(w io.Writer) *Reporter {
	return &Reporter{w: w, color: true}
}

// SetColor toggles status tinting. Disable it when w is not a terminal.
func (r *Reporter) SetColor(enabled bool) {
	r.color = enabled
}

// Header prints a boxed title.
func (r *Reporter) Header(format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	width := runewidth.StringWidth(title) + 4
	fmt.Fprintln(r.w, strings.Repeat("=", width))
	fmt.Fprintf(r.w, "  %s\n", title)
	fmt.Fprintln(r.w, strings.Repeat("=", width))
}

// Section prints a bracketed section title.
func (r *Reporter) Section(title string) {
	fmt.Fprintf(r.w, "[%s]\n", title)
	fmt.Fprintln(r.w, strings.Repeat("-", runewidth.StringWidth(title)+2))
}

// Table prints rows under headers, each column padded to its widest cell.
// Widths are display widths, so emoji and CJK cells stay aligned, and color
// codes in a cell do not count.
func (r *Reporter) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = cellWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if w := cellWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	r.printRow(headers, widths)
	separators := make([]string, len(headers))
	for i, w := range widths {
		separators[i] = strings.Repeat("-", w)
	}
	r.printRow(separators, widths)
	for _, row := range rows {
		r.printRow(row, widths)
	}
}

func (r *Reporter) printRow(cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		pad := 0
		if i < len(widths) {
			pad = widths[i] - cellWidth(cell)
		}
		if pad < 0 {
			pad = 0
		}
		parts[i] = cell + strings.Repeat(" ", pad)
	}
	fmt.Fprintln(r.w, strings.TrimRight("  "+strings.Join(parts, "  "), " "))
}

// cellWidth is the display width of a cell, color codes excluded.
func cellWidth(s string) int {
	return runewidth.StringWidth(color.ClearCode(s))
}

func (r *Reporter) tint(c color.Color, s string) string {
	if !r.color {
		return s
	}
	return c.Render(s)
}

// RunSummary prints the terminal block for a finished mutation cycle.
// Per-record failure details are listed only when showFailures is set.
func (r *Reporter) RunSummary(result *runner.RunResult, showFailures bool) {
	r.Summary("Run", result, showFailures)
}

// Summary prints the terminal block for a finished pass under the given
// title, e.g. "Run" or "Delete".
func (r *Reporter) Summary(title string, result *runner.RunResult, showFailures bool) {
	fmt.Fprintf(r.w, "\n=== %s Complete ===\n", title)
	fmt.Fprintf(r.w, "Workload: %s\n", result.Workload)
	fmt.Fprintf(r.w, "Table: %s\n", result.Table)
	fmt.Fprintf(r.w, "Duration: %s\n", result.Duration.Round(time.Millisecond))
	fmt.Fprintf(r.w, "Parallelism: %d\n", result.Parallelism)
	fmt.Fprintf(r.w, "Deletion strategy: %s\n", result.Strategy)
	fmt.Fprintf(r.w, "Verification: %d checks, %d passed\n",
		result.Verify.ChecksRun, result.Verify.ChecksPassed)
	fmt.Fprintln(r.w)

	r.PhaseTable(result.Phases)

	if showFailures && result.TotalFailed() > 0 {
		fmt.Fprintf(r.w, "\nFailures:\n")
		r.FailureList(result.Phases)
	}

	if result.Success {
		fmt.Fprintf(r.w, "\n%s\n", r.tint(color.Green, "✅ All phases completed successfully"))
		return
	}

	fmt.Fprintf(r.w, "\n%s\n", r.tint(color.Red, fmt.Sprintf("❌ %s finished with failures", title)))
	for _, e := range result.Errors {
		fmt.Fprintf(r.w, "  - %v\n", e)
	}
}

// PhaseTable prints one row per mutation phase.
func (r *Reporter) PhaseTable(phases []runner.PhaseResult) {
	rows := make([][]string, 0, len(phases))
	for _, p := range phases {
		status := r.tint(color.Green, "ok")
		if p.Failed > 0 {
			status = r.tint(color.Red, fmt.Sprintf("%d failed", p.Failed))
		}
		detail := p.Status
		if detail == "" {
			detail = "-"
		}
		rows = append(rows, []string{
			p.Phase,
			fmt.Sprintf("%d", p.Records),
			fmt.Sprintf("%d", p.Succeeded),
			status,
			p.Duration.Round(time.Millisecond).String(),
			detail,
		})
	}
	r.Table([]string{"PHASE", "RECORDS", "OK", "STATUS", "DURATION", "DETAIL"}, rows)
}

// FailureList prints per-record failures grouped by phase, capped at
// maxFailuresShown.
func (r *Reporter) FailureList(phases []runner.PhaseResult) {
	total := 0
	for _, p := range phases {
		total += len(p.Failures)
	}

	shown := 0
	for _, p := range phases {
		for _, o := range p.Failures {
			if shown == maxFailuresShown {
				fmt.Fprintf(r.w, "  ... (%d more not shown)\n", total-shown)
				return
			}
			ref := o.RecordID
			if ref == "" {
				ref = fmt.Sprintf("record %d", o.Index)
			}
			fmt.Fprintf(r.w, "  - %s %s [%s]: %v\n", p.Phase, ref, o.Class, o.Err)
			shown++
		}
	}
}

// JobTable prints delete-job bookkeeping rows in the order given.
func (r *Reporter) JobTable(jobs []store.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(r.w, "No delete jobs recorded.")
		return
	}

	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			j.ID,
			j.Table,
			fmt.Sprintf("%d", j.TotalIDs),
			fmt.Sprintf("%d", j.DeletedRows),
			r.jobStatus(j.Status),
			j.SubmittedAt.Format("2006-01-02 15:04:05"),
		})
	}
	r.Table([]string{"JOB", "TABLE", "IDS", "DELETED", "STATUS", "SUBMITTED"}, rows)
}

func (r *Reporter) jobStatus(s store.JobStatus) string {
	switch s {
	case store.JobStatusSucceeded:
		return r.tint(color.Green, string(s))
	case store.JobStatusFailed:
		return r.tint(color.Red, string(s))
	case store.JobStatusRunning:
		return r.tint(color.Yellow, string(s))
	default:
		return string(s)
	}
}
