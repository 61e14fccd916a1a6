package store

import (
	"sort"

	"github.com/noah-isme/biblioteca-api/internal/models"
)

// Stable bucket keys of the persisted layout.
const (
	BucketBooks       = "biblioteca-books"
	BucketStudents    = "biblioteca-students"
	BucketLoans       = "biblioteca-loans"
	BucketSession     = "biblioteca-auth"
	BucketPreferences = "biblioteca-theme"
)

// Buckets lists every bucket in load order.
func Buckets() []string {
	return []string{BucketBooks, BucketStudents, BucketLoans, BucketSession, BucketPreferences}
}

type state struct {
	books       map[string]models.Book
	students    map[string]models.Student
	loans       map[string]models.Loan
	session     *models.Session
	preferences *models.Preferences
}

func newState() state {
	return state{
		books:    make(map[string]models.Book),
		students: make(map[string]models.Student),
		loans:    make(map[string]models.Loan),
	}
}

// clone copies the collections. Records are values, so a map copy is enough
// as long as nothing mutates through the ReturnDate pointer in place.
func (s state) clone() state {
	c := state{
		books:    make(map[string]models.Book, len(s.books)),
		students: make(map[string]models.Student, len(s.students)),
		loans:    make(map[string]models.Loan, len(s.loans)),
	}
	for id, b := range s.books {
		c.books[id] = b
	}
	for id, st := range s.students {
		c.students[id] = st
	}
	for id, l := range s.loans {
		c.loans[id] = l
	}
	if s.session != nil {
		session := *s.session
		c.session = &session
	}
	if s.preferences != nil {
		prefs := *s.preferences
		c.preferences = &prefs
	}
	return c
}

func sortedBooks(m map[string]models.Book) []models.Book {
	out := make([]models.Book, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedStudents(m map[string]models.Student) []models.Student {
	out := make([]models.Student, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedLoans(m map[string]models.Loan) []models.Loan {
	out := make([]models.Loan, 0, len(m))
	for _, l := range m {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
