package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iliyamo/specialist-booking/internal/model"
)

// pgxDB is the subset of *pgxpool.Pool the transaction ledger needs.
type pgxDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TransactionRepo is the payment service's append-only ledger in Postgres.
type TransactionRepo struct {
	db pgxDB
}

// NewTransactionRepo binds the repo to a pgx pool (or anything shaped like one).
func NewTransactionRepo(db pgxDB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// Create appends a transaction.  Only CardLast4 is stored.  ID and
// TransactionTime are filled from the database, and Amount is replaced by
// the stored value (rounded to cents by the NUMERIC column).
func (r *TransactionRepo) Create(ctx context.Context, t *model.Transaction) error {
	const q = `INSERT INTO transactions (user_id, specialist_id, service_name, amount, card_number, transaction_status)
	           VALUES ($1, $2, $3, $4, $5, $6)
	           RETURNING id, amount, transaction_time`
	err := r.db.QueryRow(ctx, q, t.UserID, t.SpecialistID, t.ServiceName, t.Amount, t.CardLast4, t.Status).
		Scan(&t.ID, &t.Amount, &t.TransactionTime)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	t.TransactionTime = t.TransactionTime.UTC()
	return nil
}

// List returns up to limit transactions, newest first.  limit <= 0 means all.
func (r *TransactionRepo) List(ctx context.Context, limit int) ([]model.Transaction, error) {
	q := `SELECT id, user_id, specialist_id, service_name, amount, card_number, transaction_status, transaction_time
	      FROM transactions ORDER BY transaction_time DESC, id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Transaction, error) {
		var t model.Transaction
		err := row.Scan(&t.ID, &t.UserID, &t.SpecialistID, &t.ServiceName, &t.Amount, &t.CardLast4, &t.Status, &t.TransactionTime)
		t.TransactionTime = t.TransactionTime.UTC()
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}
