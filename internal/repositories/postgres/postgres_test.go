package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/chrisdamba/salescount/internal/bucketer"
	"github.com/chrisdamba/salescount/internal/classifier"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/report"
	"github.com/chrisdamba/salescount/internal/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "TRUNCATE TABLE items_data, modifiers_data, report_runs, report_rows")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func line(order, lineID, name string, at time.Time, qty string) models.RawLine {
	return models.RawLine{
		Location:    "Midtown",
		OrderID:     order,
		LineID:      lineID,
		OrderTime:   at,
		DisplayName: name,
		Quantity:    decimal.RequireFromString(qty),
	}
}

func TestLineRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewLineRepository(testPool(t))

	items := []models.RawLine{
		line("O1", "L1", "1/2 Chicken Plate", day.Add(12*time.Hour+30*time.Minute), "2"),
		line("O1", "L1", "1/2 Chicken Plate", day.Add(12*time.Hour+30*time.Minute), "3"),
		line("O2", "L1", "Grits", day.Add(24*time.Hour+time.Hour), "0.5"),
	}
	require.NoError(t, repo.BulkCreate(ctx, models.LineKindItem, items))
	require.NoError(t, repo.BulkCreate(ctx, models.LineKindItem, items[2:]))

	n, err := repo.Count(ctx, models.LineKindItem)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, _, err := repo.GetByDate(ctx, "", day, day)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 12, got[0].OrderTime.Hour())
	assert.Equal(t, 30, got[0].OrderTime.Minute())

	parts, err := repo.ListPartitions(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, parts, 2)
}

func TestReportRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository(testPool(t))

	b, err := bucketer.New(bucketer.DefaultOptions())
	require.NoError(t, err)
	engine := report.NewEngine(classifier.Default(), b)

	rep := engine.Run("Midtown", day, []models.RawLine{
		line("O1", "L1", "1/2 Chicken Plate", day.Add(12*time.Hour), "1"),
		line("O2", "L1", "Grits", day.Add(19*time.Hour), "2"),
	}, nil)
	require.NoError(t, repo.ReplaceReport(ctx, rep))

	smaller := engine.Run("Midtown", day, []models.RawLine{
		line("O1", "L1", "1/2 Chicken Plate", day.Add(12*time.Hour), "1"),
	}, nil)
	require.NoError(t, repo.ReplaceReport(ctx, smaller))

	got, err := repo.GetReport(ctx, "Midtown", day)
	require.NoError(t, err)
	assert.Equal(t, smaller.Rows, got.Rows)

	_, err = repo.GetReport(ctx, "Midtown", day.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

var (
	_ repositories.LineRepository   = (*LineRepository)(nil)
	_ repositories.ReportRepository = (*ReportRepository)(nil)
)
