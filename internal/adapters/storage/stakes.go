package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alejandrodnm/predictx/internal/domain"
)

const stakeColumns = `id, poll_id, user_id, side, amount, placed_at, status, potential_winnings,
	tx_hash, payout, profit, roi, roi_defined, settled_at`

// RecordStake debita el saldo, deposita en el pool e inserta el stake en una
// sola transacción. Si algo falla no queda nada escrito.
func (s *SQLiteStorage) RecordStake(ctx context.Context, st domain.Stake) (domain.Pool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("storage.RecordStake: begin tx: %w", err)
	}
	defer tx.Rollback()

	var status, yesTotal, noTotal string
	var pool domain.Pool
	err = tx.QueryRowContext(ctx, `
		SELECT status, yes_total, no_total, yes_participants, no_participants
		FROM polls WHERE id = ?`, st.PollID,
	).Scan(&status, &yesTotal, &noTotal, &pool.YesParticipants, &pool.NoParticipants)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Pool{}, fmt.Errorf("storage.RecordStake: poll %s: %w", st.PollID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Pool{}, fmt.Errorf("storage.RecordStake: read poll: %w", err)
	}
	if domain.PollStatus(status) != domain.PollActive {
		return domain.Pool{}, fmt.Errorf("storage.RecordStake: poll %s is %s: %w", st.PollID, status, domain.ErrPoolFrozen)
	}
	pool.YesTotal = parseDec(yesTotal)
	pool.NoTotal = parseDec(noTotal)

	if _, err := adjustTx(ctx, tx, st.UserID, st.Amount.Neg()); err != nil {
		return domain.Pool{}, fmt.Errorf("storage.RecordStake: debit %s: %w", st.UserID, err)
	}
	if err := pool.Deposit(st.Side, st.Amount); err != nil {
		return domain.Pool{}, fmt.Errorf("storage.RecordStake: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE polls SET
			yes_total        = ?,
			no_total         = ?,
			yes_participants = ?,
			no_participants  = ?
		WHERE id = ?`,
		pool.YesTotal.String(), pool.NoTotal.String(),
		pool.YesParticipants, pool.NoParticipants, st.PollID,
	); err != nil {
		return domain.Pool{}, fmt.Errorf("storage.RecordStake: update pool: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO stakes (`+stakeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.PollID, st.UserID, string(st.Side), st.Amount.String(), fmtTime(st.PlacedAt),
		string(st.Status), st.PotentialWinnings.String(), st.TxHash,
		st.Payout.String(), st.Profit.String(), st.ROI.String(), boolInt(st.ROIDefined),
		fmtTimePtr(st.SettledAt),
	); err != nil {
		return domain.Pool{}, fmt.Errorf("storage.RecordStake: insert stake: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Pool{}, fmt.Errorf("storage.RecordStake: commit: %w", err)
	}
	return pool, nil
}

// GetStake devuelve el stake con id dado o domain.ErrNotFound.
func (s *SQLiteStorage) GetStake(ctx context.Context, id string) (domain.Stake, error) {
	st, err := scanStake(s.db.QueryRowContext(ctx, `SELECT `+stakeColumns+` FROM stakes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Stake{}, fmt.Errorf("storage.GetStake: %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Stake{}, fmt.Errorf("storage.GetStake: %w", err)
	}
	return st, nil
}

// ListStakesByPoll devuelve los stakes del poll en orden de colocación.
func (s *SQLiteStorage) ListStakesByPoll(ctx context.Context, pollID string) ([]domain.Stake, error) {
	return s.queryStakes(ctx, "storage.ListStakesByPoll",
		`SELECT `+stakeColumns+` FROM stakes WHERE poll_id = ? ORDER BY placed_at, rowid`, pollID)
}

// ListStakesByUser devuelve los stakes del usuario, más recientes primero.
func (s *SQLiteStorage) ListStakesByUser(ctx context.Context, userID string) ([]domain.Stake, error) {
	return s.queryStakes(ctx, "storage.ListStakesByUser",
		`SELECT `+stakeColumns+` FROM stakes WHERE user_id = ? ORDER BY placed_at DESC, rowid DESC`, userID)
}

// MarkStakesPending pasa los stakes activos del poll a pending_resolution.
func (s *SQLiteStorage) MarkStakesPending(ctx context.Context, pollID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE stakes SET status = ?
		WHERE poll_id = ? AND status = ?`,
		string(domain.StakePendingResolution), pollID, string(domain.StakeActive),
	)
	if err != nil {
		return 0, fmt.Errorf("storage.MarkStakesPending: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStorage) queryStakes(ctx context.Context, op, query string, args ...any) ([]domain.Stake, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	var stakes []domain.Stake
	for rows.Next() {
		st, err := scanStake(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		stakes = append(stakes, st)
	}
	return stakes, rows.Err()
}

func scanStake(r rowScanner) (domain.Stake, error) {
	var st domain.Stake
	var side, amount, placedAt, status, potential, payout, profit, roi string
	var roiDefined int
	var settledAt sql.NullString

	if err := r.Scan(
		&st.ID, &st.PollID, &st.UserID, &side, &amount, &placedAt, &status, &potential,
		&st.TxHash, &payout, &profit, &roi, &roiDefined, &settledAt,
	); err != nil {
		return domain.Stake{}, err
	}

	st.Side = domain.Side(side)
	st.Amount = parseDec(amount)
	st.PlacedAt = parseTime(placedAt)
	st.Status = domain.StakeStatus(status)
	st.PotentialWinnings = parseDec(potential)
	st.Payout = parseDec(payout)
	st.Profit = parseDec(profit)
	st.ROI = parseDec(roi)
	st.ROIDefined = roiDefined != 0
	st.SettledAt = parseTimePtr(settledAt)
	return st, nil
}
