package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chrisdamba/salescount/internal/bucketer"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/shopspring/decimal"
)

type LineRepository struct {
	db *sql.DB
}

func NewLineRepository(db *sql.DB) *LineRepository {
	return &LineRepository{db: db}
}

func table(kind models.LineKind) string {
	if kind == models.LineKindModifier {
		return "modifiers_data"
	}
	return "items_data"
}

// BulkCreate upserts lines in a single transaction. Lines without a
// timestamp cannot be dated and are rejected.
func (r *LineRepository) BulkCreate(ctx context.Context, kind models.LineKind, lines []models.RawLine) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			location, order_id, line_id, display_name, parent_name,
			order_timestamp, order_date, quantity, voided, code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location, order_id, line_id, display_name) DO UPDATE SET
			parent_name = excluded.parent_name,
			order_timestamp = excluded.order_timestamp,
			order_date = excluded.order_date,
			quantity = excluded.quantity,
			voided = excluded.voided,
			code = excluded.code`, table(kind)))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range lines {
		if l.OrderTime.IsZero() {
			return fmt.Errorf("line %s/%s has no timestamp", l.OrderID, l.LineID)
		}
		_, err := stmt.ExecContext(ctx,
			l.Location,
			l.OrderID,
			l.LineID,
			l.DisplayName,
			l.ParentName,
			l.OrderTime.Format(time.RFC3339Nano),
			bucketer.DateOf(l.OrderTime).Format(models.DateLayout),
			l.Quantity.String(),
			boolToInt(l.Voided),
			l.Code,
		)
		if err != nil {
			return fmt.Errorf("failed to store line %s/%s: %w", l.OrderID, l.LineID, err)
		}
	}
	return tx.Commit()
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
		       order_timestamp, quantity, voided, code
		FROM %s
		WHERE order_date BETWEEN ? AND ? AND (? = '' OR location = ?)
		ORDER BY order_timestamp, order_id, line_id, display_name`, table(kind))

	rows, err := r.db.QueryContext(ctx, q,
		from.Format(models.DateLayout), to.Format(models.DateLayout), location, location)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []models.RawLine
	for rows.Next() {
		var (
			l       models.RawLine
			ts, qty string
			voided  int
		)
		if err := rows.Scan(&l.Location, &l.OrderID, &l.LineID, &l.DisplayName, &l.ParentName,
			&ts, &qty, &voided, &l.Code); err != nil {
			return nil, err
		}
		if l.OrderTime, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("bad stored timestamp %q: %w", ts, err)
		}
		if l.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("bad stored quantity %q: %w", qty, err)
		}
		l.Voided = voided == 1
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *LineRepository) ListPartitions(ctx context.Context, from, to time.Time) ([]models.Partition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT location, order_date FROM items_data WHERE order_date BETWEEN ?1 AND ?2
		UNION
		SELECT location, order_date FROM modifiers_data WHERE order_date BETWEEN ?1 AND ?2
		ORDER BY location, order_date`,
		from.Format(models.DateLayout), to.Format(models.DateLayout))
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

func (r *LineRepository) Count(ctx context.Context, kind models.LineKind) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table(kind)).Scan(&count)
	return count, err
}

func (r *LineRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM items_data; DELETE FROM modifiers_data;")
	return err
}
