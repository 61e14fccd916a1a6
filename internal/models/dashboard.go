package models

import "time"

// DashboardSummary aggregates the circulation overview.
type DashboardSummary struct {
	TotalBooks      int             `json:"total_books"`
	TotalCopies     int             `json:"total_copies"`
	AvailableCopies int             `json:"available_copies"`
	TotalStudents   int             `json:"total_students"`
	TotalLoans      int             `json:"total_loans"`
	ActiveLoans     int             `json:"active_loans"`
	OverdueLoans    int             `json:"overdue_loans"`
	ReturnedLoans   int             `json:"returned_loans"`
	BooksPerCareer  []CareerSummary `json:"books_per_career"`
	RecentLoans     []LoanDetail    `json:"recent_loans"`
	GeneratedAt     time.Time       `json:"generated_at"`
}
