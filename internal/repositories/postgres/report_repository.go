package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrisdamba/salescount/internal/bucketer"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReportRepository struct {
	pool *pgxpool.Pool
}

func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// ReplaceReport serialises writers of the same (location, date) with a
// transaction-scoped advisory lock; other keys are not blocked.
func (r *ReportRepository) ReplaceReport(ctx context.Context, rep *models.Report) error {
	run, err := repositories.ToStoredRun(rep)
	if err != nil {
		return err
	}
	date := bucketer.DateOf(rep.Date)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, rep.Location+"|"+rep.DateString()); err != nil {
		return fmt.Errorf("failed to lock report: %w", err)
	}

	var generation int64
	err = tx.QueryRow(ctx, `
		INSERT INTO report_runs (location, order_date, interval_minutes, categories, audit, generation, generated_at)
		VALUES ($1, $2, $3, $4::text::jsonb, $5::text::jsonb, 1, $6)
		ON CONFLICT (location, order_date) DO UPDATE SET
			interval_minutes = EXCLUDED.interval_minutes,
			categories = EXCLUDED.categories,
			audit = EXCLUDED.audit,
			generation = report_runs.generation + 1,
			generated_at = EXCLUDED.generated_at
		RETURNING generation`,
		rep.Location, date, run.IntervalMinutes, run.Categories, run.Audit, rep.GeneratedAt).Scan(&generation)
	if err != nil {
		return fmt.Errorf("failed to store report run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range rep.Details() {
		stored, err := repositories.ToStoredRow(row)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO report_rows (location, order_date, service, interval_label, slot, counts, total, generation)
			VALUES ($1, $2, $3, $4, $5, $6::text::jsonb, $7, $8)
			ON CONFLICT (location, order_date, service, interval_label) DO UPDATE SET
				slot = EXCLUDED.slot,
				counts = EXCLUDED.counts,
				total = EXCLUDED.total,
				generation = EXCLUDED.generation`,
			rep.Location, date, stored.Service, stored.Interval, stored.Slot, stored.Counts, stored.Total, generation)
	}
	batch.Queue(`DELETE FROM report_rows WHERE location = $1 AND order_date = $2 AND generation <> $3`,
		rep.Location, date, generation)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to store report rows: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *ReportRepository) GetReport(ctx context.Context, location string, date time.Time) (*models.Report, error) {
	date = bucketer.DateOf(date)

	var run repositories.StoredRun
	rep := &models.Report{Location: location, Date: date}
	err := r.pool.QueryRow(ctx, `
		SELECT interval_minutes, categories::text, audit::text, generated_at
		FROM report_runs WHERE location = $1 AND order_date = $2`, location, date).
		Scan(&run.IntervalMinutes, &run.Categories, &run.Audit, &rep.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("report %s %s: %w", location, date.Format(models.DateLayout), repositories.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT service, interval_label, slot, counts::text, total
		FROM report_rows WHERE location = $1 AND order_date = $2`, location, date)
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

	if err := repositories.Rebuild(rep, run, stored); err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *ReportRepository) ListReports(ctx context.Context) ([]models.Partition, error) {
	rows, err := r.pool.Query(ctx, `SELECT location, order_date FROM report_runs ORDER BY location, order_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []models.Partition
	for rows.Next() {
		var p models.Partition
		if err := rows.Scan(&p.Location, &p.Date); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}
