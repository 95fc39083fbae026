package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BucketKey is the (service, interval) pair a line is counted under. Slot is
// the interval start in minutes since the start of the service day and only
// exists so that labels which wrap past midnight still sort chronologically.
type BucketKey struct {
	Service  ServicePeriod `json:"service"`
	Interval string        `json:"interval"`
	Slot     int           `json:"slot"`
}

type ReportRow struct {
	Service  ServicePeriod  `json:"service"`
	Label    string         `json:"label"`
	Interval string         `json:"interval"`
	Slot     int            `json:"slot"`
	Counts   map[string]int `json:"counts"`
	Total    int            `json:"total"`
	Kind     RowKind        `json:"row_kind"`
}

// Rank orders detail rows before service subtotals before the grand total.
func (r ReportRow) Rank() int {
	return int(r.Kind)
}

func (r ReportRow) Count(category string) int {
	return r.Counts[category]
}

// Flatten returns the row in its external shape: one key per category next to
// service, interval, total and row_kind.
func (r ReportRow) Flatten() map[string]interface{} {
	flat := make(map[string]interface{}, len(r.Counts)+5)
	for category, n := range r.Counts {
		flat[category] = n
	}
	flat["service"] = string(r.Service)
	flat["label"] = r.Label
	flat["interval"] = r.Interval
	flat["total"] = r.Total
	flat["row_kind"] = r.Kind.String()
	return flat
}

type NameCount struct {
	Name  string `json:"name"`
	Lines int    `json:"lines"`
}

type Rejection struct {
	Kind     LineKind `json:"kind"`
	Row      int      `json:"row,omitempty"`
	Location string   `json:"location,omitempty"`
	OrderID  string   `json:"order_id,omitempty"`
	LineID   string   `json:"line_id,omitempty"`
	Reason   string   `json:"reason"`
	// OrderTime is set when the timestamp was read before the record failed.
	OrderTime time.Time `json:"-"`
}

type SkipSummary struct {
	Count    int         `json:"count"`
	Examples []Rejection `json:"examples,omitempty"`
}

type UnclassifiedSummary struct {
	Lines    int             `json:"lines"`
	Quantity decimal.Decimal `json:"quantity"`
	Examples []NameCount     `json:"examples,omitempty"`
}

// Audit is the data-quality side channel of a report run.
type Audit struct {
	Lines        int                 `json:"lines"`
	OutOfScope   int                 `json:"out_of_scope"`
	Voided       int                 `json:"voided"`
	Skipped      SkipSummary         `json:"skipped"`
	Unclassified UnclassifiedSummary `json:"unclassified"`
}

// Skip counts a rejected record and keeps it as an example while fewer
// than limit are held.
func (a *Audit) Skip(r Rejection, limit int) {
	a.Skipped.Count++
	if len(a.Skipped.Examples) < limit {
		a.Skipped.Examples = append(a.Skipped.Examples, r)
	}
}

type Report struct {
	Location        string      `json:"location"`
	Date            time.Time   `json:"date"`
	IntervalMinutes int         `json:"interval_minutes"`
	Categories      []string    `json:"categories"`
	Rows            []ReportRow `json:"rows"`
	Audit           Audit       `json:"audit"`
	GeneratedAt     time.Time   `json:"generated_at"`
}

func (r *Report) DateString() string {
	return r.Date.Format(DateLayout)
}

// Details returns only the detail rows, which are what gets persisted.
func (r *Report) Details() []ReportRow {
	var rows []ReportRow
	for _, row := range r.Rows {
		if row.Kind == RowDetail {
			rows = append(rows, row)
		}
	}
	return rows
}

// RowKey is the persistence key of a row: location, date, service, interval.
func (r *Report) RowKey(row ReportRow) string {
	service := string(row.Service)
	if row.Kind != RowDetail {
		service = row.Label
	}
	return strings.Join([]string{r.Location, r.DateString(), service, row.Interval}, "|")
}

// PossibleRowKeys lists every row key a report of this location and date can
// have under any interval width: each service at each half hour, each
// service subtotal and the grand total.
func (r *Report) PossibleRowKeys() []string {
	var keys []string
	for _, s := range ServicePeriods {
		for m := 0; m < 24*60; m += 30 {
			interval := fmt.Sprintf("%02d:%02d", m/60, m%60)
			keys = append(keys, r.RowKey(ReportRow{Service: s, Interval: interval, Kind: RowDetail}))
		}
		keys = append(keys, r.RowKey(ReportRow{Service: s, Label: s.TotalLabel(), Kind: RowServiceTotal}))
	}
	return append(keys, r.RowKey(ReportRow{Label: GrandTotalLabel, Kind: RowGrandTotal}))
}

func (r *Report) MarshalRow(row ReportRow) ([]byte, error) {
	flat := row.Flatten()
	flat["location"] = r.Location
	flat["date"] = r.DateString()
	return json.Marshal(flat)
}

// Partition is one (location, business date) pair; each gets its own report.
type Partition struct {
	Location string    `json:"location"`
	Date     time.Time `json:"date"`
}

func (p Partition) String() string {
	return p.Location + "@" + p.Date.Format(DateLayout)
}
