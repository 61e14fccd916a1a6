package models

import "time"

// Book is a catalog title together with its inventory counts.
// Invariant: 0 <= AvailableCopies <= Copies.
type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	PublishYear     int       `json:"publish_year"`
	Publisher       string    `json:"publisher"`
	Career          Career    `json:"career"`
	Copies          int       `json:"copies"`
	AvailableCopies int       `json:"available_copies"`
	CoverURL        string    `json:"cover_url,omitempty"`
	Description     string    `json:"description,omitempty"`
	Location        string    `json:"location,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// OnLoan is the number of copies currently lent out.
func (b Book) OnLoan() int {
	return b.Copies - b.AvailableCopies
}

// Snapshot captures the fields a loan keeps about its book.
func (b Book) Snapshot() BookSnapshot {
	return BookSnapshot{
		Title:     b.Title,
		Author:    b.Author,
		ISBN:      b.ISBN,
		Publisher: b.Publisher,
		Career:    b.Career,
		Location:  b.Location,
	}
}

// BookSnapshot is a copy of book data taken when a loan is registered.
// Later catalog edits never change it.
type BookSnapshot struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	ISBN      string `json:"isbn"`
	Publisher string `json:"publisher"`
	Career    Career `json:"career"`
	Location  string `json:"location,omitempty"`
}

// BookFilter encapsulates allowed search parameters for listing books.
type BookFilter struct {
	Search        string
	Career        Career
	AvailableOnly bool
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
