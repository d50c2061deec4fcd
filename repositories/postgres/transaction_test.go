package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTransactionManager_InTransaction(t *testing.T) {
	t.Run("commits and routes queries through the transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		users := NewUserRepository(db, zap.NewNop())
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM users").WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
			_, inTx := GetTransactionFromContext(ctx)
			assert.True(t, inTx)
			return users.Delete(ctx, id)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepositoryFactory_SeparateAuditDatabase(t *testing.T) {
	mainDB, mainMock := newMockDB(t)
	auditDB, auditMock := newMockDB(t)
	factory := &RepositoryFactory{db: mainDB, auditDB: auditDB, logger: zap.NewNop()}
	repos := factory.NewRepositories()
	tm := factory.GetTransactionManager()

	id := uuid.New()
	entry := models.NewAuditLog(models.AuditActionAccountDeleted).WithActor("admin-1").WithSubject(id.String())

	mainMock.ExpectBegin()
	mainMock.ExpectExec("DELETE FROM users").WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	mainMock.ExpectCommit()
	auditMock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))

	err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
		if err := repos.Users.Delete(ctx, id); err != nil {
			return err
		}
		return repos.AuditLogs.Insert(ctx, entry)
	})
	require.NoError(t, err)
	assert.NoError(t, mainMock.ExpectationsWereMet())
	assert.NoError(t, auditMock.ExpectationsWereMet())
}

func TestGetExecutor(t *testing.T) {
	db, mock := newMockDB(t)
	other, _ := newMockDB(t)
	tm := NewTransactionManager(db, zap.NewNop())

	mock.ExpectBegin()
	tx, err := tm.Begin(context.Background())
	require.NoError(t, err)

	assert.Equal(t, tx.(*Transaction).GetTx(), GetExecutor(tx.Context(), db))
	assert.Equal(t, other.DB, GetExecutor(tx.Context(), other))
	assert.Equal(t, db.DB, GetExecutor(context.Background(), db))
}
