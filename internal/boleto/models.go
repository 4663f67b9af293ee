package boleto

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies which due-offset reminder is being sent.
type Kind string

const (
	KindThreeDays Kind = "boleto_vence_3_dias"
	KindOneDay    Kind = "boleto_vence_1_dia"
	KindDueToday  Kind = "boleto_vence_hoje"
)

// Kinds lists every reminder in the order the daily schedule runs them.
func Kinds() []Kind {
	return []Kind{KindThreeDays, KindOneDay, KindDueToday}
}

// Offset is the number of days before the due date the reminder goes out.
func (k Kind) Offset() int {
	switch k {
	case KindThreeDays:
		return 3
	case KindOneDay:
		return 1
	default:
		return 0
	}
}

// MarkerField is the column (or document field) holding the per-kind marker.
func (k Kind) MarkerField() string {
	switch k {
	case KindThreeDays:
		return "notified_3_days_at"
	case KindOneDay:
		return "notified_1_day_at"
	case KindDueToday:
		return "notified_due_today_at"
	}
	return ""
}

func (k Kind) Valid() bool { return k.MarkerField() != "" }

// KindForOffset maps a day offset onto its reminder kind.
func KindForOffset(offset int) (Kind, error) {
	for _, k := range Kinds() {
		if k.Offset() == offset {
			return k, nil
		}
	}
	return "", &ValidationError{Field: "dayOffset", Reason: fmt.Sprintf("unsupported day offset %d (use 3, 1 or 0)", offset)}
}

const (
	StatusOpen = "pending"
	StatusPaid = "paid"
)

// Obligation is one open boleto installment joined with its patient.
type Obligation struct {
	ID            string          `json:"id"`
	RecipientID   string          `json:"recipientId"`
	RecipientName string          `json:"recipientName"`
	Contact       string          `json:"contact"`
	DueDate       time.Time       `json:"dueDate"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`

	Notified3DaysAt    *time.Time `json:"notified3DaysAt,omitempty"`
	Notified1DayAt     *time.Time `json:"notified1DayAt,omitempty"`
	NotifiedDueTodayAt *time.Time `json:"notifiedDueTodayAt,omitempty"`
}

// MarkerFor returns the marker for kind, or nil when never notified.
func (o Obligation) MarkerFor(kind Kind) *time.Time {
	switch kind {
	case KindThreeDays:
		return o.Notified3DaysAt
	case KindOneDay:
		return o.Notified1DayAt
	case KindDueToday:
		return o.NotifiedDueTodayAt
	}
	return nil
}

// SetMarker records at as the marker for kind.
func (o *Obligation) SetMarker(kind Kind, at time.Time) {
	switch kind {
	case KindThreeDays:
		o.Notified3DaysAt = &at
	case KindOneDay:
		o.Notified1DayAt = &at
	case KindDueToday:
		o.NotifiedDueTodayAt = &at
	}
}

type OutcomeStatus string

const (
	OutcomeSent   OutcomeStatus = "sent"
	OutcomeFailed OutcomeStatus = "failed"
)

// Failure codes for problems detected before reaching the gateway.
const (
	CodeTemplateNotFound = "TEMPLATE_NOT_FOUND"
	CodeInvalidPhone     = "INVALID_PHONE"
	CodeSendFailed       = "SEND_FAILED"
)

type RecipientOutcome struct {
	RecipientID string        `json:"recipientId"`
	Name        string        `json:"name"`
	Phone       string        `json:"phone,omitempty"`
	Obligations []string      `json:"obligations"`
	Amount      string        `json:"amount"`
	Status      OutcomeStatus `json:"status"`
	Attempts    int           `json:"attempts"`
	MessageSID  string        `json:"messageSid,omitempty"`
	Code        string        `json:"code,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// BatchResult summarises one run. It is returned to the caller and never
// stored; only the markers it wrote persist.
type BatchResult struct {
	RunID       string             `json:"runId"`
	Kind        Kind               `json:"kind"`
	DayOffset   int                `json:"dayOffset"`
	DueDate     string             `json:"dueDate"`
	Found       int                `json:"found"`
	Recipients  int                `json:"recipients"`
	Skipped     int                `json:"skipped"`
	Attempted   int                `json:"attempted"`
	Sent        int                `json:"sent"`
	Failed      int                `json:"failed"`
	FailureRate float64            `json:"failureRate"`
	Outcomes    []RecipientOutcome `json:"outcomes"`
	StartedAt   time.Time          `json:"startedAt"`
	FinishedAt  time.Time          `json:"finishedAt"`
}

// ValidationError rejects a request or a single unit of work.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// ErrRunInProgress is returned when the same kind is already running today.
var ErrRunInProgress = errors.New("notification run already in progress")
