package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/chrisdamba/salescount/internal/models"
)

var ErrNotFound = errors.New("not found")

// LineRepository stores normalized POS lines. Lines are keyed by
// (location, order_id, line_id, display_name) so re-importing an export
// replaces rather than duplicates.
type LineRepository interface {
	BulkCreate(ctx context.Context, kind models.LineKind, lines []models.RawLine) error
	// GetByDate returns the lines of location whose calendar order date lies
	// in [from, to]. An empty location matches all locations.
	GetByDate(ctx context.Context, location string, from, to time.Time) (items, modifiers []models.RawLine, err error)
	// ListPartitions returns the (location, calendar date) pairs with at
	// least one line in [from, to].
	ListPartitions(ctx context.Context, from, to time.Time) ([]models.Partition, error)
	Count(ctx context.Context, kind models.LineKind) (int, error)
	DeleteAll(ctx context.Context) error
}

// ReportRepository stores detail rows keyed by (location, date, service,
// interval). Totals are never stored; they are rebuilt on read.
type ReportRepository interface {
	// ReplaceReport atomically makes rep the only stored report for its
	// (location, date). Concurrent writers of one key are last-writer-wins.
	ReplaceReport(ctx context.Context, rep *models.Report) error
	GetReport(ctx context.Context, location string, date time.Time) (*models.Report, error)
	ListReports(ctx context.Context) ([]models.Partition, error)
}
