package models

import (
	"strings"
	"time"
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	// LoanStatusActive is the only non-terminal stored state.
	LoanStatusActive LoanStatus = "active"
	// LoanStatusOverdue is derived at read time and never stored.
	LoanStatusOverdue LoanStatus = "overdue"
	// LoanStatusReturned is terminal.
	LoanStatusReturned LoanStatus = "returned"
)

// Valid reports whether s is a known status.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusActive, LoanStatusOverdue, LoanStatusReturned:
		return true
	}
	return false
}

// DisplayName returns the localized status label.
func (s LoanStatus) DisplayName() string {
	switch s {
	case LoanStatusActive:
		return "Activo"
	case LoanStatusOverdue:
		return "Vencido"
	case LoanStatusReturned:
		return "Devuelto"
	}
	return string(s)
}

// Loan records a copy of a book lent to a student. Book and Student are
// snapshots taken at registration; BookID and StudentID are the live references.
type Loan struct {
	ID           string          `json:"id"`
	BookID       string          `json:"book_id"`
	StudentID    string          `json:"student_id"`
	Book         BookSnapshot    `json:"book"`
	Student      StudentSnapshot `json:"student"`
	LoanDate     time.Time       `json:"loan_date"`
	DueDate      time.Time       `json:"due_date"`
	ReturnDate   *time.Time      `json:"return_date,omitempty"`
	Status       LoanStatus      `json:"status"`
	Notes        string          `json:"notes,omitempty"`
	RegisteredBy string          `json:"registered_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Outstanding reports whether the loan still holds a copy.
func (l Loan) Outstanding() bool {
	return l.Status != LoanStatusReturned
}

// LoanDetail is a loan as returned to readers, with its status derived for a given day.
type LoanDetail struct {
	Loan
	EffectiveStatus LoanStatus `json:"effective_status"`
	DaysOverdue     int        `json:"days_overdue"`
}

// NewLoanDetail derives the read view of loan as of asOf.
func NewLoanDetail(loan Loan, asOf time.Time) LoanDetail {
	status := ComputeEffectiveStatus(loan, asOf)
	detail := LoanDetail{Loan: loan, EffectiveStatus: status}
	if status == LoanStatusOverdue {
		detail.DaysOverdue = DaysBetween(loan.DueDate, asOf)
	}
	return detail
}

// ComputeEffectiveStatus is the single overdue rule: a returned loan stays
// returned; otherwise the loan is overdue when asOf falls on a calendar day
// strictly after the due date. Time of day is ignored.
func ComputeEffectiveStatus(loan Loan, asOf time.Time) LoanStatus {
	if loan.Status == LoanStatusReturned {
		return LoanStatusReturned
	}
	if DateOf(asOf).After(DateOf(loan.DueDate)) {
		return LoanStatusOverdue
	}
	return LoanStatusActive
}

// DateOf truncates t to its calendar day, expressed as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// DateLayout is the wire format for loan dates.
const DateLayout = "2006-01-02"

// ParseDate reads a YYYY-MM-DD date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// LoanFilter encapsulates allowed search parameters for listing loans.
// Status filters on the effective status.
type LoanFilter struct {
	Search    string
	Status    LoanStatus
	Career    Career
	StudentID string
	BookID    string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
