package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/store"
)

var (
	seedCodePattern  = regexp.MustCompile(`^[A-D]\d{5}$`)
	seedEmailPattern = regexp.MustCompile(`^[a-z]+\.[a-z]+@alumnos\.edu\.pe$`)
)

func TestSeedServiceGeneratesConsistentLibrary(t *testing.T) {
	st, _, _ := newTestStore(t)
	svc := NewSeedService(st, NewInventoryLedger(nil), SeedConfig{RandomSeed: 42, Books: 20, Students: 30, Loans: 40}, nil)

	result, err := svc.SeedIfEmpty(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 20, result.Books)
	assert.Equal(t, 30, result.Students)
	assert.LessOrEqual(t, result.Loans, 40)

	require.NoError(t, st.View(context.Background(), func(r store.Reader) error {
		outstanding := map[string]int{}
		for _, loan := range r.Loans() {
			assert.False(t, loan.DueDate.Before(loan.LoanDate))
			if loan.Outstanding() {
				outstanding[loan.BookID]++
			} else {
				require.NotNil(t, loan.ReturnDate)
			}
		}
		for _, book := range r.Books() {
			assert.True(t, book.Career.Valid())
			assert.GreaterOrEqual(t, book.AvailableCopies, 0)
			assert.Equal(t, book.Copies, book.AvailableCopies+outstanding[book.ID], book.ID)
		}
		codes := map[string]bool{}
		for _, student := range r.Students() {
			assert.Regexp(t, seedCodePattern, student.StudentCode)
			assert.Regexp(t, seedEmailPattern, student.Email)
			assert.False(t, codes[student.StudentCode])
			codes[student.StudentCode] = true
		}
		assert.Len(t, r.Loans(), result.Loans)
		return nil
	}))
}

func TestSeedServiceSkipsPopulatedLibrary(t *testing.T) {
	st, _, _ := newTestStore(t)
	seedBook(t, st, "b1", models.CareerComputing, 1, 1)
	svc := NewSeedService(st, NewInventoryLedger(nil), SeedConfig{RandomSeed: 1, Books: 5, Students: 5, Loans: 5}, nil)

	result, err := svc.SeedIfEmpty(context.Background())
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 0, loanCount(t, st))
}
