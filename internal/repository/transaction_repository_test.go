package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/specialist-booking/internal/model"
)

var txColumns = []string{"id", "user_id", "specialist_id", "service_name", "amount", "card_number", "transaction_status", "transaction_time"}

func newLedger(t *testing.T) (*TransactionRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewTransactionRepo(mock), mock
}

func TestTransactionRepo_Create(t *testing.T) {
	repo, mock := newLedger(t)
	at := time.Date(2030, 1, 2, 10, 0, 0, 0, time.FixedZone("CET", 3600))

	mock.ExpectQuery(`INSERT INTO transactions .* RETURNING id, amount, transaction_time`).
		WithArgs(uint64(5), uint64(3), "Consult", 49.999, "4242", model.TransactionSuccess).
		WillReturnRows(pgxmock.NewRows([]string{"id", "amount", "transaction_time"}).AddRow(uint64(7), 50.0, at))

	tx := model.Transaction{
		UserID:       5,
		SpecialistID: 3,
		ServiceName:  "Consult",
		Amount:       49.999,
		CardLast4:    "4242",
		Status:       model.TransactionSuccess,
	}
	require.NoError(t, repo.Create(context.Background(), &tx))

	assert.Equal(t, uint64(7), tx.ID)
	assert.Equal(t, 50.0, tx.Amount, "amount is the stored, cent-rounded value")
	assert.Equal(t, time.UTC, tx.TransactionTime.Location())
	assert.True(t, at.Equal(tx.TransactionTime))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_CreateError(t *testing.T) {
	repo, mock := newLedger(t)
	mock.ExpectQuery(`INSERT INTO transactions`).WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), &model.Transaction{CardLast4: "4242"})

	assert.ErrorContains(t, err, "insert transaction")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List(t *testing.T) {
	repo, mock := newLedger(t)
	newer := time.Date(2030, 1, 2, 11, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	mock.ExpectQuery(`ORDER BY transaction_time DESC, id DESC LIMIT \$1`).
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows(txColumns).
			AddRow(uint64(9), uint64(5), uint64(3), "Consult", 50.0, "4242", model.TransactionSuccess, newer).
			AddRow(uint64(8), uint64(6), uint64(3), "Consult", 0.0, "1111", model.TransactionFailed, older))

	list, err := repo.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint64(9), list[0].ID)
	assert.Equal(t, "4242", list[0].CardLast4)
	assert.Equal(t, model.TransactionFailed, list[1].Status)
	assert.True(t, list[0].TransactionTime.After(list[1].TransactionTime))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListWithoutLimit(t *testing.T) {
	repo, mock := newLedger(t)
	mock.ExpectQuery(`ORDER BY transaction_time DESC, id DESC$`).
		WillReturnRows(pgxmock.NewRows(txColumns))

	list, err := repo.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListError(t *testing.T) {
	repo, mock := newLedger(t)
	mock.ExpectQuery(`SELECT id, user_id`).WillReturnError(errors.New("relation does not exist"))

	_, err := repo.List(context.Background(), 0)
	assert.ErrorContains(t, err, "list transactions")
	require.NoError(t, mock.ExpectationsWereMet())
}
