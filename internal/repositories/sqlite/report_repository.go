package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chrisdamba/salescount/internal/bucketer"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/repositories"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// ReplaceReport upserts every detail row of rep under a fresh generation and
// then drops rows of the same (location, date) left over from older runs.
func (r *ReportRepository) ReplaceReport(ctx context.Context, rep *models.Report) error {
	run, err := repositories.ToStoredRun(rep)
	if err != nil {
		return err
	}
	date := rep.DateString()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var generation int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(generation), 0) + 1 FROM report_runs WHERE location = ? AND order_date = ?`,
		rep.Location, date).Scan(&generation); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO report_runs (location, order_date, interval_minutes, categories, audit, generation, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location, order_date) DO UPDATE SET
			interval_minutes = excluded.interval_minutes,
			categories = excluded.categories,
			audit = excluded.audit,
			generation = excluded.generation,
			generated_at = excluded.generated_at`,
		rep.Location, date, run.IntervalMinutes, run.Categories, run.Audit, generation,
		rep.GeneratedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store report run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO report_rows (location, order_date, service, interval_label, slot, counts, total, generation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location, order_date, service, interval_label) DO UPDATE SET
			slot = excluded.slot,
			counts = excluded.counts,
			total = excluded.total,
			generation = excluded.generation`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rep.Details() {
		stored, err := repositories.ToStoredRow(row)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, rep.Location, date, stored.Service, stored.Interval,
			stored.Slot, stored.Counts, stored.Total, generation); err != nil {
			return fmt.Errorf("failed to store row %s: %w", rep.RowKey(row), err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM report_rows WHERE location = ? AND order_date = ? AND generation <> ?`,
		rep.Location, date, generation); err != nil {
		return fmt.Errorf("failed to drop stale rows: %w", err)
	}
	return tx.Commit()
}

func (r *ReportRepository) GetReport(ctx context.Context, location string, date time.Time) (*models.Report, error) {
	date = bucketer.DateOf(date)
	day := date.Format(models.DateLayout)

	var (
		run         repositories.StoredRun
		generatedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT interval_minutes, categories, audit, generated_at
		FROM report_runs WHERE location = ? AND order_date = ?`, location, day).
		Scan(&run.IntervalMinutes, &run.Categories, &run.Audit, &generatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s %s: %w", location, day, repositories.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT service, interval_label, slot, counts, total
		FROM report_rows WHERE location = ? AND order_date = ?`, location, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stored []repositories.StoredRow
	for rows.Next() {
		var s repositories.StoredRow
		if err := rows.Scan(&s.Service, &s.Interval, &s.Slot, &s.Counts, &s.Total); err != nil {
			return nil, err
		}
		stored = append(stored, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rep := &models.Report{Location: location, Date: date}
	rep.GeneratedAt, _ = time.Parse(time.RFC3339, generatedAt)
	if err := repositories.Rebuild(rep, run, stored); err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *ReportRepository) ListReports(ctx context.Context) ([]models.Partition, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT location, order_date FROM report_runs ORDER BY location, order_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []models.Partition
	for rows.Next() {
		var p models.Partition
		var date string
		if err := rows.Scan(&p.Location, &date); err != nil {
			return nil, err
		}
		if p.Date, err = time.Parse(models.DateLayout, date); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}
