package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/report"
)

// ConsoleOutput prints each report as an aligned table in display order
// followed by its audit summary.
type ConsoleOutput struct {
	w io.Writer
}

func NewConsoleOutput(w io.Writer) *ConsoleOutput {
	return &ConsoleOutput{w: w}
}

func (c *ConsoleOutput) WriteReport(ctx context.Context, rep *models.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fmt.Fprintf(c.w, "%s  %s  (%d min)\n", rep.Location, rep.DateString(), rep.IntervalMinutes)
	if len(rep.Rows) == 0 {
		fmt.Fprintln(c.w, "no sales")
	} else {
		tw := tabwriter.NewWriter(c.w, 0, 0, 2, ' ', tabwriter.AlignRight)
		header := append([]string{"Service", "Interval"}, rep.Categories...)
		header = append(header, "Total")
		fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

		for _, row := range report.Grouped(rep.Rows) {
			cells := make([]string, 0, len(rep.Categories)+3)
			if row.Kind == models.RowDetail {
				cells = append(cells, string(row.Service), row.Interval)
			} else {
				cells = append(cells, row.Label, "")
			}
			for _, category := range rep.Categories {
				cells = append(cells, fmt.Sprint(row.Count(category)))
			}
			cells = append(cells, fmt.Sprint(row.Total))
			fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
		}
		if err := tw.Flush(); err != nil {
			return fmt.Errorf("failed to write to console: %w", err)
		}
	}

	writeAudit(c.w, rep.Audit)
	_, err := fmt.Fprintln(c.w)
	return err
}

func writeAudit(w io.Writer, a models.Audit) {
	fmt.Fprintf(w, "lines: %d  out of scope: %d  voided: %d  skipped: %d  unclassified: %d (qty %s)\n",
		a.Lines, a.OutOfScope, a.Voided, a.Skipped.Count, a.Unclassified.Lines, a.Unclassified.Quantity.String())
	for _, r := range a.Skipped.Examples {
		if r.Row > 0 {
			fmt.Fprintf(w, "  skipped %s row %d: %s\n", r.Kind, r.Row, r.Reason)
		} else {
			fmt.Fprintf(w, "  skipped %s %s/%s: %s\n", r.Kind, r.OrderID, r.LineID, r.Reason)
		}
	}
	for _, n := range a.Unclassified.Examples {
		fmt.Fprintf(w, "  unclassified %q x%d\n", n.Name, n.Lines)
	}
}

func (c *ConsoleOutput) Close() error {
	return nil
}
