package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetcare/internal/domain/entity"
	"vetcare/internal/infra/adapter/persistence/postgres"
)

func TestContactRepo_ContactFor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM user_contacts`)).
		WithArgs("owner-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "chat_address", "chat_opt_in", "email"}).
			AddRow("owner-1", "+5215512345678", true, ""))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM user_contacts`)).
		WithArgs("owner-2").
		WillReturnError(sql.ErrNoRows)

	repo := postgres.NewContactRepo(db)
	c, err := repo.ContactFor(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.True(t, c.CanChat())
	assert.False(t, c.CanEmail())

	_, err = repo.ContactFor(context.Background(), "owner-2")
	assert.True(t, errors.Is(err, entity.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInboxRepo(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	created := time.Date(2025, 1, 9, 8, 0, 0, 0, time.UTC)
	item := &entity.InboxItem{
		ID: "i1", UserID: "owner-1", Title: "Order #42", Body: "shipped",
		Type: entity.MetaOrderUpdate, CreatedAt: created,
	}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO inbox_items`)).
		WithArgs("i1", "owner-1", "Order #42", "shipped", "order_update", false, created).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM inbox_items`)).
		WithArgs("owner-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "body", "type", "read", "created_at"}).
			AddRow("i1", "owner-1", "Order #42", "shipped", "order_update", false, created))

	repo := postgres.NewInboxRepo(db)
	require.NoError(t, repo.AddInboxItem(context.Background(), item))

	got, err := repo.ListInbox(context.Background(), "owner-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, item, got[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}
