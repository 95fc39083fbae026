package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/chrisdamba/salescount/internal/aggregator"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/report"
)

// StoredRow is the persisted shape of one detail row.
type StoredRow struct {
	Service  string
	Interval string
	Slot     int
	Counts   string // JSON object of category -> count
	Total    int
}

func ToStoredRow(row models.ReportRow) (StoredRow, error) {
	counts, err := json.Marshal(row.Counts)
	if err != nil {
		return StoredRow{}, err
	}
	return StoredRow{
		Service:  string(row.Service),
		Interval: row.Interval,
		Slot:     row.Slot,
		Counts:   string(counts),
		Total:    row.Total,
	}, nil
}

// StoredRun is the per-(location, date) header of a stored report.
type StoredRun struct {
	IntervalMinutes int
	Categories      string // JSON array
	Audit           string // JSON object
}

func ToStoredRun(rep *models.Report) (StoredRun, error) {
	categories, err := json.Marshal(rep.Categories)
	if err != nil {
		return StoredRun{}, err
	}
	audit, err := json.Marshal(rep.Audit)
	if err != nil {
		return StoredRun{}, err
	}
	return StoredRun{IntervalMinutes: rep.IntervalMinutes, Categories: string(categories), Audit: string(audit)}, nil
}

// Rebuild turns stored detail rows back into a full report, recomputing the
// subtotal and grand total rows.
func Rebuild(rep *models.Report, run StoredRun, rows []StoredRow) error {
	rep.IntervalMinutes = run.IntervalMinutes
	if err := json.Unmarshal([]byte(run.Categories), &rep.Categories); err != nil {
		return fmt.Errorf("bad stored categories: %w", err)
	}
	if run.Audit != "" {
		if err := json.Unmarshal([]byte(run.Audit), &rep.Audit); err != nil {
			return fmt.Errorf("bad stored audit: %w", err)
		}
	}

	cells := make(aggregator.Cells, len(rows))
	for _, r := range rows {
		var counts map[string]int
		if err := json.Unmarshal([]byte(r.Counts), &counts); err != nil {
			return fmt.Errorf("bad stored counts for %s %s: %w", r.Service, r.Interval, err)
		}
		key := models.BucketKey{Service: models.ServicePeriod(r.Service), Interval: r.Interval, Slot: r.Slot}
		cells[key] = counts
	}
	rep.Rows = report.Assemble(rep.Categories, cells)
	return nil
}
