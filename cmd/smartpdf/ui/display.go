package ui

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/spherical/smartpdf/internal/domain"
)

// Table displays data in a formatted table.
func Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(headers, "\t"))

	separator := make([]string, len(headers))
	for i := range separator {
		separator[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(w, strings.Join(separator, "\t"))

	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	_ = w.Flush()
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	d = d.Round(time.Second)

	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// StatusLabel renders a status code, colored by outcome.
func StatusLabel(s domain.StatusCode) string {
	if s == domain.StatusOK {
		return color.GreenString("ok")
	}
	return color.RedString("%d %s", int(s), s)
}

// BatchSummary prints one row per document and a totals line.
func BatchSummary(batch *domain.BatchResult) {
	if len(batch.Results) == 0 {
		return
	}

	rows := make([][]string, 0, len(batch.Results))
	for _, r := range batch.Results {
		detail := r.Artifact
		if r.Err != nil {
			detail = r.Err.Error()
		}
		rows = append(rows, []string{
			r.Path,
			r.Engine,
			string(r.Route),
			StatusLabel(r.Status),
			FormatDuration(r.Elapsed),
			detail,
		})
	}
	Table([]string{"DOCUMENT", "ENGINE", "ROUTE", "STATUS", "ELAPSED", "OUTPUT"}, rows)
	fmt.Fprintln(stdout)

	msg := fmt.Sprintf("%d document(s), %d failure(s) in %s", len(batch.Results), batch.FailureCount, FormatDuration(batch.Elapsed))
	if batch.FailureCount == 0 {
		Success("%s", msg)
	} else {
		Error("%s (exit %d)", msg, int(batch.ExitCode))
	}
}
