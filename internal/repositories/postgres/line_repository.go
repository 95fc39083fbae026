package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/chrisdamba/salescount/internal/bucketer"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type LineRepository struct {
	pool *pgxpool.Pool
}

func NewLineRepository(pool *pgxpool.Pool) *LineRepository {
	return &LineRepository{pool: pool}
}

func table(kind models.LineKind) string {
	if kind == models.LineKindModifier {
		return "modifiers_data"
	}
	return "items_data"
}

var lineColumns = []string{
	"location", "order_id", "line_id", "display_name", "parent_name",
	"order_timestamp", "order_date", "quantity", "voided", "code",
}

// BulkCreate copies lines into a staging table and merges them, so a
// re-imported export updates existing lines.
func (r *LineRepository) BulkCreate(ctx context.Context, kind models.LineKind, lines []models.RawLine) error {
	for _, l := range lines {
		if l.OrderTime.IsZero() {
			return fmt.Errorf("line %s/%s has no timestamp", l.OrderID, l.LineID)
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE lines_staging (
			location TEXT, order_id TEXT, line_id TEXT, display_name TEXT, parent_name TEXT,
			order_timestamp TIMESTAMP, order_date DATE, quantity TEXT, voided BOOLEAN, code TEXT
		) ON COMMIT DROP`)
	if err != nil {
		return err
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"lines_staging"},
		lineColumns,
		pgx.CopyFromSlice(len(lines), func(i int) ([]interface{}, error) {
			l := lines[i]
			return []interface{}{
				l.Location,
				l.OrderID,
				l.LineID,
				l.DisplayName,
				l.ParentName,
				l.OrderTime,
				bucketer.DateOf(l.OrderTime),
				l.Quantity.String(),
				l.Voided,
				l.Code,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to copy lines: %w", err)
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			location, order_id, line_id, display_name, parent_name,
			order_timestamp, order_date, quantity, voided, code
		)
		SELECT DISTINCT ON (location, order_id, line_id, display_name)
			location, order_id, line_id, display_name, parent_name,
			order_timestamp, order_date, quantity::numeric, voided, code
		FROM lines_staging
		ORDER BY location, order_id, line_id, display_name
		ON CONFLICT (location, order_id, line_id, display_name) DO UPDATE SET
			parent_name = EXCLUDED.parent_name,
			order_timestamp = EXCLUDED.order_timestamp,
			order_date = EXCLUDED.order_date,
			quantity = EXCLUDED.quantity,
			voided = EXCLUDED.voided,
			code = EXCLUDED.code`, table(kind)))
	if err != nil {
		return fmt.Errorf("failed to merge lines: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *LineRepository) GetByDate(ctx context.Context, location string, from, to time.Time) ([]models.RawLine, []models.RawLine, error) {
	items, err := r.query(ctx, models.LineKindItem, location, from, to)
	if err != nil {
		return nil, nil, err
	}
	modifiers, err := r.query(ctx, models.LineKindModifier, location, from, to)
	if err != nil {
		return nil, nil, err
	}
	return items, modifiers, nil
}

func (r *LineRepository) query(ctx context.Context, kind models.LineKind, location string, from, to time.Time) ([]models.RawLine, error) {
	q := fmt.Sprintf(`
		SELECT location, order_id, line_id, display_name, parent_name,
		       order_timestamp, quantity::text, voided, code
		FROM %s
		WHERE order_date BETWEEN $1 AND $2 AND ($3 = '' OR location = $3)
		ORDER BY order_timestamp, order_id, line_id, display_name`, table(kind))

	rows, err := r.pool.Query(ctx, q, bucketer.DateOf(from), bucketer.DateOf(to), location)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []models.RawLine
	for rows.Next() {
		var l models.RawLine
		var qty string
		if err := rows.Scan(&l.Location, &l.OrderID, &l.LineID, &l.DisplayName, &l.ParentName,
			&l.OrderTime, &qty, &l.Voided, &l.Code); err != nil {
			return nil, err
		}
		if l.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("bad stored quantity %q: %w", qty, err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *LineRepository) ListPartitions(ctx context.Context, from, to time.Time) ([]models.Partition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT location, order_date FROM items_data WHERE order_date BETWEEN $1 AND $2
		UNION
		SELECT location, order_date FROM modifiers_data WHERE order_date BETWEEN $1 AND $2
		ORDER BY location, order_date`, bucketer.DateOf(from), bucketer.DateOf(to))
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

func (r *LineRepository) Count(ctx context.Context, kind models.LineKind) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table(kind)).Scan(&count)
	return count, err
}

func (r *LineRepository) DeleteAll(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, "TRUNCATE TABLE items_data, modifiers_data")
	return err
}
