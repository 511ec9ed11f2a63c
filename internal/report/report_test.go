package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gobulk/internal/driver"
	"github.com/dbsmedya/gobulk/internal/runner"
	"github.com/dbsmedya/gobulk/internal/store"
	"github.com/dbsmedya/gobulk/internal/verifier"
)

func newTestReporter() (*Reporter, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	r := New(buf)
	r.SetColor(false)
	return r, buf
}

func TestHeader(t *testing.T) {
	r, buf := newTestReporter()

	r.Header("Delete Jobs")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Repeat("=", len("Delete Jobs")+4), lines[0])
	assert.Equal(t, "  Delete Jobs", lines[1])
	assert.Equal(t, lines[0], lines[2])
}

func TestSection(t *testing.T) {
	r, buf := newTestReporter()

	r.Section("Phases")

	assert.Equal(t, "[Phases]\n--------\n", buf.String())
}

func TestTable_Alignment(t *testing.T) {
	r, buf := newTestReporter()

	r.Table([]string{"PHASE", "RECORDS"}, [][]string{
		{"create", "10"},
		{"update", "5"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "  PHASE   RECORDS", lines[0])
	assert.Equal(t, "  ------  -------", lines[1])
	assert.Equal(t, "  create  10", lines[2])
	assert.Equal(t, "  update  5", lines[3])
}

func TestTable_WideRunes(t *testing.T) {
	r, buf := newTestReporter()

	r.Table([]string{"S", "NOTE"}, [][]string{
		{"✅", "pass"},
		{"no", "fail"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	// The check mark is wider than one terminal cell, so padding must use
	// display width to keep the second column aligned.
	assert.Equal(t, runewidth.StringWidth(lines[2]), runewidth.StringWidth(lines[3]))
	assert.True(t, strings.HasSuffix(lines[2], "  pass"))
	assert.True(t, strings.HasSuffix(lines[3], "  fail"))
}

func TestCellWidth_StripsColorCodes(t *testing.T) {
	colored := "\x1b[32mok\x1b[0m"

	assert.Equal(t, 2, cellWidth(colored))
	assert.Equal(t, cellWidth("ok"), cellWidth(colored))
}

func TestRunSummary_Success(t *testing.T) {
	r, buf := newTestReporter()

	result := &runner.RunResult{
		Workload:    "demo",
		Table:       "bulk_demo",
		Duration:    1520 * time.Millisecond,
		Parallelism: 4,
		Strategy:    "bulk-delete",
		Verify:      verifier.VerifyStats{ChecksRun: 6, ChecksPassed: 6},
		Phases: []runner.PhaseResult{
			{Phase: "create", Records: 100, Succeeded: 100, Duration: 200 * time.Millisecond},
			{Phase: "update", Records: 100, Succeeded: 100, Duration: 180 * time.Millisecond},
			{Phase: "delete", Records: 100, Succeeded: 100, Status: "completed: 100 rows", Duration: 90 * time.Millisecond},
		},
		Success: true,
	}

	r.RunSummary(result, false)

	out := buf.String()
	assert.Contains(t, out, "=== Run Complete ===")
	assert.Contains(t, out, "Workload: demo")
	assert.Contains(t, out, "Table: bulk_demo")
	assert.Contains(t, out, "Duration: 1.52s")
	assert.Contains(t, out, "Parallelism: 4")
	assert.Contains(t, out, "Deletion strategy: bulk-delete")
	assert.Contains(t, out, "Verification: 6 checks, 6 passed")
	assert.Contains(t, out, "completed: 100 rows")
	assert.Contains(t, out, "✅ All phases completed successfully")
	assert.NotContains(t, out, "Failures:")
}

func TestRunSummary_WithFailures(t *testing.T) {
	r, buf := newTestReporter()

	result := &runner.RunResult{
		Workload:    "demo",
		Table:       "bulk_demo",
		Parallelism: 2,
		Strategy:    "async-job-delete",
		Phases: []runner.PhaseResult{
			{
				Phase:     "create",
				Records:   3,
				Succeeded: 2,
				Failed:    1,
				Failures: []driver.Outcome{
					{Index: 1, Class: driver.FailureRemote, Err: errors.New("duplicate key")},
				},
			},
		},
		Errors:  []error{errors.New("create phase: 1 of 3 records failed")},
		Success: false,
	}

	r.RunSummary(result, true)

	out := buf.String()
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "Failures:")
	assert.Contains(t, out, "- create record 1 [remote]: duplicate key")
	assert.Contains(t, out, "❌ Run finished with failures")
	assert.Contains(t, out, "- create phase: 1 of 3 records failed")
}

// Without showFailures, the run errors still print but per-record detail
// stays hidden.
func TestRunSummary_FailuresHidden(t *testing.T) {
	r, buf := newTestReporter()

	result := &runner.RunResult{
		Workload: "demo",
		Table:    "bulk_demo",
		Strategy: "bulk-delete",
		Phases: []runner.PhaseResult{
			{
				Phase:     "create",
				Records:   3,
				Succeeded: 2,
				Failed:    1,
				Failures: []driver.Outcome{
					{Index: 1, Class: driver.FailureRemote, Err: errors.New("duplicate key")},
				},
			},
		},
		Errors:  []error{errors.New("create phase: 1 of 3 records failed")},
		Success: false,
	}

	r.RunSummary(result, false)

	out := buf.String()
	assert.Contains(t, out, "1 failed")
	assert.NotContains(t, out, "Failures:")
	assert.NotContains(t, out, "duplicate key")
	assert.Contains(t, out, "- create phase: 1 of 3 records failed")
}

// Delete-only passes render under their own title.
func TestSummary_DeleteTitle(t *testing.T) {
	r, buf := newTestReporter()

	result := &runner.RunResult{
		Workload:    "demo",
		Table:       "bulk_demo",
		Parallelism: 2,
		Strategy:    "async-job-delete",
		Phases: []runner.PhaseResult{
			{Phase: "delete", Records: 40, Succeeded: 40, Status: "completed: 40 rows", Duration: 60 * time.Millisecond},
		},
		Success: true,
	}

	r.Summary("Delete", result, false)

	out := buf.String()
	assert.Contains(t, out, "=== Delete Complete ===")
	assert.Contains(t, out, "completed: 40 rows")
	assert.NotContains(t, out, "=== Run Complete ===")
}

func TestSummary_TitleInFailureLine(t *testing.T) {
	r, buf := newTestReporter()

	result := &runner.RunResult{
		Workload: "demo",
		Table:    "bulk_demo",
		Strategy: "bulk-delete",
		Phases: []runner.PhaseResult{
			{Phase: "delete", Records: 4, Succeeded: 3, Failed: 1},
		},
		Errors:  []error{errors.New("delete phase: 1 of 4 records failed")},
		Success: false,
	}

	r.Summary("Delete", result, false)

	assert.Contains(t, buf.String(), "❌ Delete finished with failures")
}

func TestPhaseTable_EmptyDetailDash(t *testing.T) {
	r, buf := newTestReporter()

	r.PhaseTable([]runner.PhaseResult{
		{Phase: "create", Records: 5, Succeeded: 5, Duration: 40 * time.Millisecond},
	})

	out := buf.String()
	assert.Contains(t, out, "PHASE")
	assert.Contains(t, out, "create")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "-")
}

func TestFailureList_CapsOutput(t *testing.T) {
	r, buf := newTestReporter()

	failures := make([]driver.Outcome, 15)
	for i := range failures {
		failures[i] = driver.Outcome{
			Index:    i,
			RecordID: fmt.Sprintf("id-%02d", i),
			Class:    driver.FailureRemote,
			Err:      errors.New("rejected"),
		}
	}

	r.FailureList([]runner.PhaseResult{{Phase: "update", Failures: failures}})

	out := buf.String()
	assert.Contains(t, out, "id-00")
	assert.Contains(t, out, "id-09")
	assert.NotContains(t, out, "id-10")
	assert.Contains(t, out, "(5 more not shown)")
}

func TestJobTable_Empty(t *testing.T) {
	r, buf := newTestReporter()

	r.JobTable(nil)

	assert.Equal(t, "No delete jobs recorded.\n", buf.String())
}

func TestJobTable_Rows(t *testing.T) {
	r, buf := newTestReporter()

	submitted := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	jobs := []store.Job{
		{ID: "2abc", Table: "bulk_demo", TotalIDs: 500, DeletedRows: 500, Status: store.JobStatusSucceeded, SubmittedAt: submitted},
		{ID: "2abd", Table: "bulk_demo", TotalIDs: 200, DeletedRows: 40, Status: store.JobStatusFailed, SubmittedAt: submitted},
	}

	r.JobTable(jobs)

	out := buf.String()
	assert.Contains(t, out, "JOB")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "2026-03-14 09:30:00")
	assert.Contains(t, out, "500")
}
