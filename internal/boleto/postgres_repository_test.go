package boleto

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var findDueColumns = []string{
	"id", "patient_id", "name", "phone", "due_date", "amount", "status",
	"notified_3_days_at", "notified_1_day_at", "notified_due_today_at",
}

func newMockRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgresFindDue(t *testing.T) {
	repo, mock := newMockRepository(t)
	loc := time.FixedZone("BRT", -3*3600)
	due := time.Date(2025, 10, 11, 0, 0, 0, 0, time.UTC)
	marked := time.Date(2025, 10, 10, 9, 0, 0, 0, loc)

	mock.ExpectQuery(`(?s)FROM boletos b\s+JOIN patients p ON p.id = b.patient_id` +
		`\s+WHERE b.due_date = \$1::date\s+AND b.status = \$2` +
		`\s+AND COALESCE\(TRIM\(p.phone\), ''\) <> ''\s+ORDER BY b.id`).
		WithArgs("2025-10-11", StatusOpen).
		WillReturnRows(sqlmock.NewRows(findDueColumns).
			AddRow(int64(7), int64(3), "Ana", "11987654321", time.Date(2025, 10, 11, 0, 0, 0, 0, loc), "150.50", StatusOpen, nil, marked, nil).
			AddRow(int64(9), int64(3), "Ana", "11987654321", time.Date(2025, 10, 11, 0, 0, 0, 0, loc), "49.50", StatusOpen, nil, nil, nil))

	got, err := repo.FindDue(context.Background(), due, KindOneDay)
	if err != nil {
		t.Fatalf("find due: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 boletos, got %d", len(got))
	}
	first := got[0]
	if first.ID != "7" || first.RecipientID != "3" || first.RecipientName != "Ana" || first.Contact != "11987654321" {
		t.Fatalf("unexpected mapping %+v", first)
	}
	if !first.DueDate.Equal(due) {
		t.Fatalf("due date should be UTC midnight of the calendar day, got %v", first.DueDate)
	}
	if !first.Amount.Equal(decimal.RequireFromString("150.50")) {
		t.Fatalf("amount = %s", first.Amount)
	}
	if first.Notified1DayAt == nil || !first.Notified1DayAt.Equal(marked) {
		t.Fatalf("1-day marker not mapped: %v", first.Notified1DayAt)
	}
	if first.Notified3DaysAt != nil || first.NotifiedDueTodayAt != nil {
		t.Fatal("NULL markers must stay nil")
	}
	if got[1].ID != "9" || got[1].Notified1DayAt != nil {
		t.Fatalf("unexpected second row %+v", got[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresFindDueWrapsQueryError(t *testing.T) {
	repo, mock := newMockRepository(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery(`FROM boletos b`).WillReturnError(boom)

	_, err := repo.FindDue(context.Background(), time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC), KindDueToday)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}

func TestPostgresMarkNotifiedOnlyOverwritesOlderMarkers(t *testing.T) {
	repo, mock := newMockRepository(t)
	loc := time.FixedZone("BRT", -3*3600)
	at := time.Date(2025, 10, 10, 15, 30, 0, 0, loc)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE boletos SET notified_1_day_at = $1") +
		`\s+` + regexp.QuoteMeta("WHERE id = ANY($2) AND (notified_1_day_at IS NULL OR notified_1_day_at < $3)")).
		WithArgs(at, pq.Array([]int64{7, 9}), time.Date(2025, 10, 10, 0, 0, 0, 0, loc)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.MarkNotified(context.Background(), KindOneDay, []string{"7", "9"}, at); err != nil {
		t.Fatalf("mark notified: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresMigrateAppliesSchema(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS patients")).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
