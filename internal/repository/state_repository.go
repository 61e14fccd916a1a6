package repository

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
)

const (
	colBucket    = "bucket"
	colPayload   = "payload"
	colUpdatedAt = "updated_at"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type stateRow struct {
	Bucket  string `db:"bucket"`
	Payload string `db:"payload"`
}

// StateRepository stores one JSON payload per state bucket.
type StateRepository struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
	table   string
	now     func() time.Time
}

// NewStateRepository constructs the repository for a goqu dialect ("postgres" or "sqlite3").
func NewStateRepository(db *sqlx.DB, dialect, table string) *StateRepository {
	if table == "" {
		table = "library_state"
	}
	return &StateRepository{db: db, dialect: goqu.Dialect(dialect), table: table, now: time.Now}
}

// EnsureSchema creates the state table when missing.
func (r *StateRepository) EnsureSchema(ctx context.Context) error {
	if !identifierPattern.MatchString(r.table) {
		return fmt.Errorf("invalid state table name %q", r.table)
	}
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	bucket TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`, r.table)
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create state table: %w", err)
	}
	return nil
}

// Load returns every stored bucket payload.
func (r *StateRepository) Load(ctx context.Context) (map[string][]byte, error) {
	query, args, err := r.dialect.From(r.table).
		Select(colBucket, colPayload).
		Order(goqu.I(colBucket).Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build state select: %w", err)
	}

	var rows []stateRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}

	out := make(map[string][]byte, len(rows))
	for _, row := range rows {
		out[row.Bucket] = []byte(row.Payload)
	}
	return out, nil
}

// Save upserts the given buckets in a single transaction.
func (r *StateRepository) Save(ctx context.Context, buckets map[string][]byte) error {
	if len(buckets) == 0 {
		return nil
	}
	names := make([]string, 0, len(buckets))
	for name := range buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin state tx: %w", err)
	}

	now := r.now().UTC()
	for _, name := range names {
		query, args, err := r.dialect.Insert(r.table).
			Rows(goqu.Record{
				colBucket:    name,
				colPayload:   string(buckets[name]),
				colUpdatedAt: now,
			}).
			OnConflict(goqu.DoUpdate(colBucket, goqu.Record{
				colPayload:   goqu.L("EXCLUDED." + colPayload),
				colUpdatedAt: goqu.L("EXCLUDED." + colUpdatedAt),
			})).
			Prepared(true).
			ToSQL()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("build state upsert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert bucket %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state tx: %w", err)
	}
	return nil
}
