package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/store"
)

var testNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

type memoryPersister struct {
	mu      sync.Mutex
	saved   map[string][]byte
	saves   int
	saveErr error
}

func newMemoryPersister() *memoryPersister {
	return &memoryPersister{saved: map[string][]byte{}}
}

func (p *memoryPersister) Load(context.Context) (map[string][]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string][]byte, len(p.saved))
	for k, v := range p.saved {
		out[k] = v
	}
	return out, nil
}

func (p *memoryPersister) Save(_ context.Context, buckets map[string][]byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.saves++
	for k, v := range buckets {
		p.saved[k] = v
	}
	return nil
}

func (p *memoryPersister) failWith(err error) {
	p.mu.Lock()
	p.saveErr = err
	p.mu.Unlock()
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*store.Store, *memoryPersister, *testClock) {
	t.Helper()
	persister := newMemoryPersister()
	clock := &testClock{now: testNow}
	return store.New(persister, nil, store.WithClock(clock.Now)), persister, clock
}

type invalidatorStub struct {
	patterns []string
	err      error
}

func (s *invalidatorStub) Invalidate(_ context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	return s.err
}

func seedBook(t *testing.T, st *store.Store, id string, career models.Career, copies, available int) models.Book {
	t.Helper()
	book := models.Book{
		ID:              id,
		Title:           "Libro " + strings.ToUpper(id),
		Author:          "Autor " + id,
		ISBN:            "978-" + id,
		PublishYear:     2020,
		Publisher:       "Editorial Académica",
		Career:          career,
		Copies:          copies,
		AvailableCopies: available,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
	require.NoError(t, st.RunInTransaction(context.Background(), func(tx *store.Tx) error {
		tx.PutBook(book)
		return nil
	}))
	return book
}

func seedStudent(t *testing.T, st *store.Store, id string, career models.Career) models.Student {
	t.Helper()
	student := models.Student{
		ID:          id,
		StudentCode: "A" + strings.ToUpper(id),
		Name:        "Ana",
		LastName:    "Pérez " + id,
		Email:       id + "@alumnos.edu.pe",
		Career:      career,
		Cycle:       3,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
	require.NoError(t, st.RunInTransaction(context.Background(), func(tx *store.Tx) error {
		tx.PutStudent(student)
		return nil
	}))
	return student
}

func seedLoan(t *testing.T, st *store.Store, loan models.Loan) {
	t.Helper()
	require.NoError(t, st.RunInTransaction(context.Background(), func(tx *store.Tx) error {
		tx.PutLoan(loan)
		return nil
	}))
}

func mustBook(t *testing.T, st *store.Store, id string) models.Book {
	t.Helper()
	var book models.Book
	require.NoError(t, st.View(context.Background(), func(r store.Reader) error {
		found, ok := r.Book(id)
		if !ok {
			return errors.New("book missing")
		}
		book = found
		return nil
	}))
	return book
}

func loanCount(t *testing.T, st *store.Store) int {
	t.Helper()
	n := 0
	require.NoError(t, st.View(context.Background(), func(r store.Reader) error {
		n = len(r.Loans())
		return nil
	}))
	return n
}

func day(raw string) time.Time {
	t, err := models.ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return t
}
