package boleto

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate applies the embedded schema. It is idempotent.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	const op = "boleto.PostgresRepository.Migrate"
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

const findDueQuery = `
SELECT b.id, b.patient_id, p.name, p.phone, b.due_date, b.amount, b.status,
       b.notified_3_days_at, b.notified_1_day_at, b.notified_due_today_at
FROM boletos b
JOIN patients p ON p.id = b.patient_id
WHERE b.due_date = $1::date
  AND b.status = $2
  AND COALESCE(TRIM(p.phone), '') <> ''
ORDER BY b.id`

func (r *PostgresRepository) FindDue(ctx context.Context, dueDate time.Time, kind Kind) ([]Obligation, error) {
	const op = "boleto.PostgresRepository.FindDue"

	rows, err := r.db.QueryContext(ctx, findDueQuery, dueDate.Format(time.DateOnly), StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []Obligation
	for rows.Next() {
		var (
			o                 Obligation
			id, patientID     int64
			three, one, today sql.NullTime
		)
		if err := rows.Scan(&id, &patientID, &o.RecipientName, &o.Contact, &o.DueDate, &o.Amount, &o.Status, &three, &one, &today); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		o.ID = strconv.FormatInt(id, 10)
		o.RecipientID = strconv.FormatInt(patientID, 10)
		y, m, d := o.DueDate.Date()
		o.DueDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		o.Notified3DaysAt = nullTime(three)
		o.Notified1DayAt = nullTime(one)
		o.NotifiedDueTodayAt = nullTime(today)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (r *PostgresRepository) MarkNotified(ctx context.Context, kind Kind, ids []string, at time.Time) error {
	const op = "boleto.PostgresRepository.MarkNotified"
	if !kind.Valid() {
		return fmt.Errorf("%s: unknown kind %q", op, kind)
	}
	if len(ids) == 0 {
		return nil
	}
	numeric := make([]int64, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: bad id %q: %w", op, id, err)
		}
		numeric = append(numeric, n)
	}

	// The column name comes from a fixed set, never from input.
	query := fmt.Sprintf(`UPDATE boletos SET %[1]s = $1
WHERE id = ANY($2) AND (%[1]s IS NULL OR %[1]s < $3)`, kind.MarkerField())
	if _, err := r.db.ExecContext(ctx, query, at, pq.Array(numeric), startOfDay(at)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
