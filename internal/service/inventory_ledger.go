package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/biblioteca-api/internal/models"
)

// ledgerTx is the slice of a store transaction the ledger may touch.
type ledgerTx interface {
	Now() time.Time
	Book(id string) (models.Book, bool)
	PutBook(book models.Book)
}

// InventoryLedger owns the copy counts of every book. It never looks at loans;
// callers decide when a copy leaves or comes back.
type InventoryLedger struct {
	logger *zap.Logger
}

// NewInventoryLedger constructs the ledger.
func NewInventoryLedger(logger *zap.Logger) *InventoryLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryLedger{logger: logger}
}

// DecreaseAvailability takes one copy off the shelf. It reports false and
// changes nothing when the book is unknown or has no copy left.
func (l *InventoryLedger) DecreaseAvailability(tx ledgerTx, bookID string) bool {
	book, ok := tx.Book(bookID)
	if !ok || book.AvailableCopies <= 0 {
		return false
	}
	book.AvailableCopies--
	book.UpdatedAt = tx.Now()
	tx.PutBook(book)
	return true
}

// IncreaseAvailability puts one copy back. It reports false and changes
// nothing when the book is unknown or every copy is already on the shelf.
func (l *InventoryLedger) IncreaseAvailability(tx ledgerTx, bookID string) bool {
	book, ok := tx.Book(bookID)
	if !ok || book.AvailableCopies >= book.Copies {
		return false
	}
	book.AvailableCopies++
	book.UpdatedAt = tx.Now()
	tx.PutBook(book)
	return true
}

// UpdateCopies changes the total number of copies while keeping the number
// on loan, and returns the updated book.
func (l *InventoryLedger) UpdateCopies(tx ledgerTx, bookID string, newTotal int) (models.Book, bool) {
	book, ok := tx.Book(bookID)
	if !ok || newTotal < 1 {
		return models.Book{}, false
	}
	available := RecomputeAvailability(book.Copies, book.AvailableCopies, newTotal)
	if onLoan := book.OnLoan(); newTotal-available != onLoan {
		l.logger.Warn("copies on loan clamped by new total",
			zap.String("book_id", bookID),
			zap.Int("on_loan", onLoan),
			zap.Int("new_total", newTotal),
		)
	}
	book.Copies = newTotal
	book.AvailableCopies = available
	book.UpdatedAt = tx.Now()
	tx.PutBook(book)
	return book, true
}

// RecomputeAvailability preserves the copies on loan across a change of the
// total, clamped to [0, newTotal].
func RecomputeAvailability(oldTotal, oldAvailable, newTotal int) int {
	available := newTotal - (oldTotal - oldAvailable)
	if available < 0 {
		return 0
	}
	if available > newTotal {
		return newTotal
	}
	return available
}
