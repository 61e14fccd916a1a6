package repository

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStateRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStateRepositoryEnsureSchema(t *testing.T) {
	db, mock, cleanup := newStateRepoMock(t)
	defer cleanup()

	repo := NewStateRepository(db, "postgres", "")
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS library_state`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStateRepositoryEnsureSchemaRejectsBadTableName(t *testing.T) {
	db, _, cleanup := newStateRepoMock(t)
	defer cleanup()

	repo := NewStateRepository(db, "postgres", "state; DROP TABLE x")
	require.Error(t, repo.EnsureSchema(context.Background()))
}

func TestStateRepositoryLoad(t *testing.T) {
	db, mock, cleanup := newStateRepoMock(t)
	defer cleanup()

	repo := NewStateRepository(db, "postgres", "library_state")
	rows := sqlmock.NewRows([]string{"bucket", "payload"}).
		AddRow("biblioteca-books", `{"schema_version":1,"items":[]}`).
		AddRow("biblioteca-loans", `{"schema_version":1,"items":[]}`)
	mock.ExpectQuery(`SELECT "bucket", "payload" FROM "library_state"`).WillReturnRows(rows)

	buckets, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, buckets, 2)
	assert.JSONEq(t, `{"schema_version":1,"items":[]}`, string(buckets["biblioteca-books"]))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStateRepositorySaveUpsertsInOneTransaction(t *testing.T) {
	db, mock, cleanup := newStateRepoMock(t)
	defer cleanup()

	repo := NewStateRepository(db, "postgres", "library_state")
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "library_state" .* ON CONFLICT`).
		WithArgs("biblioteca-books", `{"items":[]}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "library_state" .* ON CONFLICT`).
		WithArgs("biblioteca-loans", `{"items":[]}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Save(context.Background(), map[string][]byte{
		"biblioteca-loans": []byte(`{"items":[]}`),
		"biblioteca-books": []byte(`{"items":[]}`),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStateRepositorySaveRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newStateRepoMock(t)
	defer cleanup()

	repo := NewStateRepository(db, "sqlite3", "library_state")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `library_state`").WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	err := repo.Save(context.Background(), map[string][]byte{"biblioteca-books": []byte(`[]`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	require.NoError(t, mock.ExpectationsWereMet())
}
