package models

import "time"

// Student represents a borrower registered in the library directory.
type Student struct {
	ID          string    `json:"id"`
	StudentCode string    `json:"student_code"`
	Name        string    `json:"name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Career      Career    `json:"career"`
	Cycle       int       `json:"cycle"`
	Phone       string    `json:"phone,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FullName joins name and last name.
func (s Student) FullName() string {
	return s.Name + " " + s.LastName
}

// Snapshot captures the fields a loan keeps about its borrower.
func (s Student) Snapshot() StudentSnapshot {
	return StudentSnapshot{
		StudentCode: s.StudentCode,
		Name:        s.Name,
		LastName:    s.LastName,
		Email:       s.Email,
		Career:      s.Career,
		Cycle:       s.Cycle,
	}
}

// StudentSnapshot is a copy of student data taken when a loan is registered.
type StudentSnapshot struct {
	StudentCode string `json:"student_code"`
	Name        string `json:"name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Career      Career `json:"career"`
	Cycle       int    `json:"cycle"`
}

// FullName joins name and last name.
func (s StudentSnapshot) FullName() string {
	return s.Name + " " + s.LastName
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Career    Career
	Cycle     int
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
