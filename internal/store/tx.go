package store

import (
	"time"

	"github.com/noah-isme/biblioteca-api/internal/models"
)

// Reader is the read-only view handed to View callbacks.
type Reader interface {
	Now() time.Time
	Book(id string) (models.Book, bool)
	Books() []models.Book
	Student(id string) (models.Student, bool)
	Students() []models.Student
	Loan(id string) (models.Loan, bool)
	Loans() []models.Loan
	Session() (models.Session, bool)
	Preferences() models.Preferences
	Revision() uint64
}

// Tx mutates a private copy of the state. Changes become visible only when
// the surrounding RunInTransaction persists and commits them.
type Tx struct {
	st       *state
	now      time.Time
	readOnly bool
	revision uint64
	dirty    map[string]bool
}

var _ Reader = (*Tx)(nil)

// Revision reports the commit the transaction started from.
func (tx *Tx) Revision() uint64 { return tx.revision }

func (tx *Tx) touch(bucket string) {
	if tx.readOnly {
		panic("store: write inside View")
	}
	tx.dirty[bucket] = true
}

// Now is the timestamp fixed for the whole transaction.
func (tx *Tx) Now() time.Time { return tx.now }

func (tx *Tx) Book(id string) (models.Book, bool) {
	b, ok := tx.st.books[id]
	return b, ok
}

// Books returns all books ordered by creation time.
func (tx *Tx) Books() []models.Book { return sortedBooks(tx.st.books) }

func (tx *Tx) PutBook(b models.Book) {
	tx.touch(BucketBooks)
	tx.st.books[b.ID] = b
}

func (tx *Tx) DeleteBook(id string) bool {
	if _, ok := tx.st.books[id]; !ok {
		return false
	}
	tx.touch(BucketBooks)
	delete(tx.st.books, id)
	return true
}

func (tx *Tx) Student(id string) (models.Student, bool) {
	s, ok := tx.st.students[id]
	return s, ok
}

// Students returns all students ordered by creation time.
func (tx *Tx) Students() []models.Student { return sortedStudents(tx.st.students) }

func (tx *Tx) PutStudent(s models.Student) {
	tx.touch(BucketStudents)
	tx.st.students[s.ID] = s
}

func (tx *Tx) DeleteStudent(id string) bool {
	if _, ok := tx.st.students[id]; !ok {
		return false
	}
	tx.touch(BucketStudents)
	delete(tx.st.students, id)
	return true
}

func (tx *Tx) Loan(id string) (models.Loan, bool) {
	l, ok := tx.st.loans[id]
	return l, ok
}

// Loans returns all loans ordered by creation time.
func (tx *Tx) Loans() []models.Loan { return sortedLoans(tx.st.loans) }

func (tx *Tx) PutLoan(l models.Loan) {
	tx.touch(BucketLoans)
	tx.st.loans[l.ID] = l
}

func (tx *Tx) DeleteLoan(id string) bool {
	if _, ok := tx.st.loans[id]; !ok {
		return false
	}
	tx.touch(BucketLoans)
	delete(tx.st.loans, id)
	return true
}

// ClearLoans empties the loan collection and returns how many were removed.
func (tx *Tx) ClearLoans() int {
	n := len(tx.st.loans)
	tx.touch(BucketLoans)
	tx.st.loans = make(map[string]models.Loan)
	return n
}

func (tx *Tx) Session() (models.Session, bool) {
	if tx.st.session == nil {
		return models.Session{}, false
	}
	return *tx.st.session, true
}

func (tx *Tx) PutSession(s models.Session) {
	tx.touch(BucketSession)
	tx.st.session = &s
}

func (tx *Tx) ClearSession() {
	tx.touch(BucketSession)
	tx.st.session = nil
}

// Preferences falls back to the defaults when nothing was saved.
func (tx *Tx) Preferences() models.Preferences {
	if tx.st.preferences == nil {
		return models.DefaultPreferences()
	}
	return *tx.st.preferences
}

func (tx *Tx) PutPreferences(p models.Preferences) {
	tx.touch(BucketPreferences)
	tx.st.preferences = &p
}
