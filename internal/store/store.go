package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrPersistFailed marks a transaction whose snapshot could not be written.
// The in-memory state is left as it was before the transaction.
var ErrPersistFailed = errors.New("store: persist failed")

// Persister stores bucket payloads. Save must apply all buckets or none.
type Persister interface {
	Load(ctx context.Context) (map[string][]byte, error)
	Save(ctx context.Context, buckets map[string][]byte) error
}

// PersistObserver receives the duration and outcome of every snapshot write.
type PersistObserver func(duration time.Duration, err error)

// Store keeps the library state in memory and mirrors every committed
// transaction to its Persister. All writers are serialized by one mutex.
type Store struct {
	mu        sync.RWMutex
	state     state
	persister Persister
	logger    *zap.Logger
	observe   PersistObserver
	now       func() time.Time
	revision  uint64
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the transaction clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithPersistObserver registers a callback for snapshot writes.
func WithPersistObserver(fn PersistObserver) Option {
	return func(s *Store) { s.observe = fn }
}

// New constructs an empty store. A nil persister keeps state in memory only.
func New(persister Persister, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{state: newState(), persister: persister, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory state with the persisted snapshot.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	buckets, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	next := newState()
	for _, bucket := range Buckets() {
		payload, ok := buckets[bucket]
		if !ok {
			continue
		}
		if err := decodeBucket(&next, bucket, payload); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.state = next
	s.revision++
	s.mu.Unlock()

	s.logger.Info("library state loaded",
		zap.Int("books", len(next.books)),
		zap.Int("students", len(next.students)),
		zap.Int("loans", len(next.loans)),
	)
	return nil
}

// RunInTransaction runs fn against a copy of the state. When fn succeeds the
// touched buckets are persisted and only then does the copy replace the live
// state. Any error leaves the live state untouched.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	tx := &Tx{st: &working, now: s.now(), revision: s.revision, dirty: make(map[string]bool)}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.dirty) == 0 {
		return nil
	}
	if err := s.persist(ctx, working, tx.dirty); err != nil {
		return err
	}
	s.state = working
	s.revision++
	return nil
}

// View runs fn with read access to the live state.
func (s *Store) View(ctx context.Context, fn func(r Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.state
	return fn(&Tx{st: &st, now: s.now(), revision: s.revision, readOnly: true})
}

// Revision returns the number of commits applied to the live state. It only
// grows, so it can scope derived data to the state it was computed from.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

func (s *Store) persist(ctx context.Context, st state, dirty map[string]bool) error {
	if s.persister == nil {
		return nil
	}
	payloads := make(map[string][]byte, len(dirty))
	for bucket := range dirty {
		payload, err := encodeBucket(st, bucket)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistFailed, err)
		}
		payloads[bucket] = payload
	}

	start := time.Now()
	err := s.persister.Save(ctx, payloads)
	if s.observe != nil {
		s.observe(time.Since(start), err)
	}
	if err != nil {
		s.logger.Error("persist library state", zap.Error(err), zap.Int("buckets", len(payloads)))
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	return nil
}
