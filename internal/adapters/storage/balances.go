package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/predictx/internal/domain"
	"github.com/shopspring/decimal"
)

// Balance devuelve el saldo del usuario (0 si nunca tuvo saldo).
func (s *SQLiteStorage) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM balances WHERE user_id = ?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("storage.Balance: %w", err)
	}
	return parseDec(raw), nil
}

// Adjust suma delta al saldo del usuario en una transacción.
func (s *SQLiteStorage) Adjust(ctx context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("storage.Adjust: begin tx: %w", err)
	}
	defer tx.Rollback()

	bal, err := adjustTx(ctx, tx, userID, delta)
	if err != nil {
		return decimal.Zero, fmt.Errorf("storage.Adjust: %s: %w", userID, err)
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("storage.Adjust: commit: %w", err)
	}
	return bal, nil
}

// adjustTx es el read-modify-write del saldo dentro de una transacción abierta.
// Con una única conexión nadie más puede leer el saldo entre el SELECT y el UPSERT.
func adjustTx(ctx context.Context, tx *sql.Tx, userID string, delta decimal.Decimal) (decimal.Decimal, error) {
	current := decimal.Zero
	var raw string
	err := tx.QueryRowContext(ctx, `SELECT balance FROM balances WHERE user_id = ?`, userID).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return decimal.Zero, fmt.Errorf("read balance: %w", err)
	default:
		current = parseDec(raw)
	}

	next := current.Add(delta)
	if next.IsNegative() {
		return current, domain.ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO balances (user_id, balance, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			balance    = excluded.balance,
			updated_at = excluded.updated_at`,
		userID, next.String(), fmtTime(time.Now()),
	); err != nil {
		return decimal.Zero, fmt.Errorf("write balance: %w", err)
	}
	return next, nil
}

// SaveTransaction registra una transacción simulada.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, t domain.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, hash, kind, user_id, amount, fee, status, ledger, description, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Hash, string(t.Kind), t.UserID, t.Amount.String(), t.Fee.String(),
		string(t.Status), t.Ledger, t.Description, fmtTime(t.SubmittedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveTransaction: %w", err)
	}
	return nil
}

// ListTransactions devuelve las transacciones del usuario, más recientes primero.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hash, kind, user_id, amount, fee, status, ledger, description, submitted_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY submitted_at DESC, ledger DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("storage.ListTransactions: query: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var kind, amount, fee, status, submittedAt string
		if err := rows.Scan(&t.ID, &t.Hash, &kind, &t.UserID, &amount, &fee, &status,
			&t.Ledger, &t.Description, &submittedAt); err != nil {
			return nil, fmt.Errorf("storage.ListTransactions: scan row: %w", err)
		}
		t.Kind = domain.TxKind(kind)
		t.Amount = parseDec(amount)
		t.Fee = parseDec(fee)
		t.Status = domain.TxStatus(status)
		t.SubmittedAt = parseTime(submittedAt)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
