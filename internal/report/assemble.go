// Package report builds the final report table from aggregated cells and
// runs the whole classification pipeline for one location and date.
package report

import (
	"sort"

	"github.com/chrisdamba/salescount/internal/aggregator"
	"github.com/chrisdamba/salescount/internal/models"
)

// Assemble emits one detail row per non-empty bucket with every category
// present, a subtotal per service seen and a grand total. Rows are sorted by
// rank, then chronologically within each rank.
func Assemble(categories []string, cells aggregator.Cells) []models.ReportRow {
	var rows []models.ReportRow
	subtotals := make(map[models.ServicePeriod]*models.ReportRow)
	grand := newRow(categories, models.RowGrandTotal)
	grand.Label = models.GrandTotalLabel

	for key, counts := range cells {
		row := newRow(categories, models.RowDetail)
		row.Service = key.Service
		row.Interval = key.Interval
		row.Label = key.Interval
		row.Slot = key.Slot
		for _, c := range categories {
			row.Counts[c] = counts[c]
			row.Total += counts[c]
		}
		if row.Total == 0 {
			continue
		}
		rows = append(rows, row)

		sub, ok := subtotals[key.Service]
		if !ok {
			r := newRow(categories, models.RowServiceTotal)
			r.Service = key.Service
			r.Label = key.Service.TotalLabel()
			sub = &r
			subtotals[key.Service] = sub
		}
		addCounts(sub, row)
		addCounts(&grand, row)
	}
	if len(rows) == 0 {
		return nil
	}

	for _, sub := range subtotals {
		rows = append(rows, *sub)
	}
	rows = append(rows, grand)
	Sort(rows)
	return rows
}

func newRow(categories []string, kind models.RowKind) models.ReportRow {
	counts := make(map[string]int, len(categories))
	for _, c := range categories {
		counts[c] = 0
	}
	return models.ReportRow{Counts: counts, Kind: kind}
}

func addCounts(dst *models.ReportRow, src models.ReportRow) {
	for c, n := range src.Counts {
		dst.Counts[c] += n
	}
	dst.Total += src.Total
}

// Sort orders rows by rank, then chronologically within a rank: services in
// day order (Lunch, Dinner, Overnight) rather than by name, then by Slot so
// intervals after midnight follow 23:00. Interval label breaks ties.
func Sort(rows []models.ReportRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Rank() != b.Rank() {
			return a.Rank() < b.Rank()
		}
		return lessWithinRank(a, b)
	})
}

func lessWithinRank(a, b models.ReportRow) bool {
	if a.Service.Order() != b.Service.Order() {
		return a.Service.Order() < b.Service.Order()
	}
	if a.Slot != b.Slot {
		return a.Slot < b.Slot
	}
	return a.Interval < b.Interval
}

// Grouped returns rows in display order: each service's details directly
// followed by its subtotal, with the grand total last.
func Grouped(rows []models.ReportRow) []models.ReportRow {
	out := make([]models.ReportRow, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ga, gb := displayGroup(a), displayGroup(b)
		if ga != gb {
			return ga < gb
		}
		if a.Rank() != b.Rank() {
			return a.Rank() < b.Rank()
		}
		return lessWithinRank(a, b)
	})
	return out
}

func displayGroup(r models.ReportRow) int {
	if r.Kind == models.RowGrandTotal {
		return 1 << 10
	}
	return r.Service.Order()
}
