package batch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chrisdamba/salescount/internal/bucketer"
	"github.com/chrisdamba/salescount/internal/classifier"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/report"
	"github.com/chrisdamba/salescount/internal/repositories"
	"github.com/chrisdamba/salescount/internal/repositories/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, policy string) *report.Engine {
	t.Helper()
	opts := bucketer.DefaultOptions()
	opts.EarlyMorning = policy
	b, err := bucketer.New(opts)
	require.NoError(t, err)
	return report.NewEngine(classifier.Default(), b)
}

func chicken(location, order string, at time.Time) models.RawLine {
	return models.RawLine{
		Location:    location,
		OrderID:     order,
		LineID:      "1",
		OrderTime:   at,
		DisplayName: "1/2 Chicken Plate",
		Code:        "81831",
		Quantity:    decimal.NewFromInt(1),
	}
}

type store struct {
	lines   *sqlite.LineRepository
	reports *sqlite.ReportRepository
}

func seed(t *testing.T) store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "batch.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := store{lines: sqlite.NewLineRepository(db), reports: sqlite.NewReportRepository(db)}
	items := []models.RawLine{
		chicken("Midtown", "A", day.Add(12*time.Hour)),
		chicken("Midtown", "B", day.Add(19*time.Hour)),
		chicken("Midtown", "C", day.Add(26*time.Hour)), // 02:00 next day
		chicken("Uptown", "D", day.Add(13*time.Hour)),
		chicken("Uptown", "E", day.Add(36*time.Hour)),
	}
	require.NoError(t, s.lines.BulkCreate(context.Background(), models.LineKindItem, items))
	return s
}

type recordingLog struct {
	mu    sync.Mutex
	warns int
}

func (l *recordingLog) Infof(string, ...interface{})  {}
func (l *recordingLog) Errorf(string, ...interface{}) {}
func (l *recordingLog) Debugf(string, ...interface{}) {}
func (l *recordingLog) Warnf(string, ...interface{}) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}

func TestPlan(t *testing.T) {
	ctx := context.Background()
	s := seed(t)

	parts, err := Plan(ctx, s.lines, newEngine(t, models.EarlyMorningSameDayDinner), day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, []models.Partition{
		{Location: "Midtown", Date: day},
		{Location: "Midtown", Date: day.AddDate(0, 0, 1)},
		{Location: "Uptown", Date: day},
		{Location: "Uptown", Date: day.AddDate(0, 0, 1)},
	}, parts)

	parts, err = Plan(ctx, s.lines, newEngine(t, models.EarlyMorningSameDayDinner), day, day)
	require.NoError(t, err)
	assert.Len(t, parts, 2)

	// under prior_day_dinner every stored date also proposes the day before
	parts, err = Plan(ctx, s.lines, newEngine(t, models.EarlyMorningPriorDayDinner), day.AddDate(0, 0, -1), day)
	require.NoError(t, err)
	assert.Contains(t, parts, models.Partition{Location: "Midtown", Date: day.AddDate(0, 0, -1)})
}

func TestRecomputeStoresReports(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	engine := newEngine(t, models.EarlyMorningPriorDayDinner)

	var mu sync.Mutex
	done := 0
	result := Recompute(ctx, Config{
		Lines:       s.lines,
		Reports:     s.reports,
		Engine:      engine,
		Partitions:  []models.Partition{{Location: "Uptown", Date: day}, {Location: "Midtown", Date: day}},
		Concurrency: 2,
		OnDone: func(p models.Partition, rep *models.Report, err error) {
			mu.Lock()
			done++
			mu.Unlock()
		},
	})
	require.Empty(t, result.Errors)
	require.Len(t, result.Reports, 2)
	assert.Equal(t, 2, done)
	assert.Equal(t, "Midtown", result.Reports[0].Location)

	// the 02:00 line on the 16th belongs to Midtown's dinner on the 15th
	stored, err := s.reports.GetReport(ctx, "Midtown", day)
	require.NoError(t, err)
	grand := stored.Rows[len(stored.Rows)-1]
	assert.Equal(t, models.RowGrandTotal, grand.Kind)
	assert.Equal(t, 3, grand.Count("1/2 Chix"))

	stored, err = s.reports.GetReport(ctx, "Uptown", day)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Rows[len(stored.Rows)-1].Total)
}

type failingReports struct {
	repositories.ReportRepository
	fail string
}

func (f failingReports) ReplaceReport(ctx context.Context, rep *models.Report) error {
	if rep.Location == f.fail {
		return errors.New("disk full")
	}
	return f.ReportRepository.ReplaceReport(ctx, rep)
}

func TestRecomputeCollectsPartitionErrors(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	log := &recordingLog{}

	result := Recompute(ctx, Config{
		Lines:      s.lines,
		Reports:    failingReports{ReportRepository: s.reports, fail: "Uptown"},
		Engine:     newEngine(t, models.EarlyMorningSameDayDinner),
		Partitions: []models.Partition{{Location: "Uptown", Date: day}, {Location: "Midtown", Date: day}},
		Log:        log,
	})
	require.Len(t, result.Errors, 1)
	require.Len(t, result.Reports, 1)
	assert.Equal(t, "Midtown", result.Reports[0].Location)

	var perr *PartitionError
	require.True(t, errors.As(result.Errors[0], &perr))
	assert.Equal(t, "Uptown", perr.Partition.Location)
	assert.Contains(t, perr.Error(), "Uptown@2024-03-15")
	assert.Contains(t, perr.Error(), "disk full")
	assert.Zero(t, log.warns)
}

func TestRecomputeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := seed(t)

	result := Recompute(ctx, Config{
		Lines:      s.lines,
		Reports:    s.reports,
		Engine:     newEngine(t, models.EarlyMorningSameDayDinner),
		Partitions: []models.Partition{{Location: "Midtown", Date: day}},
	})
	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], context.Canceled)
}

func TestRecomputeNoPartitions(t *testing.T) {
	result := Recompute(context.Background(), Config{})
	assert.Empty(t, result.Reports)
	assert.Empty(t, result.Errors)
}
