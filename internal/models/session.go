package models

import "time"

// Operator roles at the circulation desk.
const (
	RoleAdmin     = "admin"
	RoleLibrarian = "librarian"
)

// Session identifies who is operating the desk. It carries no credentials.
type Session struct {
	OperatorName string    `json:"operator_name"`
	Role         string    `json:"role"`
	StartedAt    time.Time `json:"started_at"`
}
