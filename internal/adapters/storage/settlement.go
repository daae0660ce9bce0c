package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alejandrodnm/predictx/internal/domain"
	"github.com/shopspring/decimal"
)

// SaveSettlement aplica una liquidación completa en una transacción:
// resultado de cada stake, créditos a ganadores/reembolsos, registro y
// marca settled_at en el poll. Una segunda llamada no acredita nada.
func (s *SQLiteStorage) SaveSettlement(ctx context.Context, st domain.Settlement, payouts []domain.Payout) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveSettlement: begin tx: %w", err)
	}
	defer tx.Rollback()

	var settledAt sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT settled_at FROM polls WHERE id = ?`, st.PollID).Scan(&settledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("storage.SaveSettlement: poll %s: %w", st.PollID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("storage.SaveSettlement: read poll: %w", err)
	}
	if settledAt.Valid {
		return fmt.Errorf("storage.SaveSettlement: poll %s: %w", st.PollID, domain.ErrAlreadySettled)
	}

	at := fmtTime(st.SettledAt)
	for _, p := range payouts {
		res, err := tx.ExecContext(ctx, `
			UPDATE stakes SET
				status      = ?,
				payout      = ?,
				profit      = ?,
				roi         = ?,
				roi_defined = ?,
				settled_at  = ?
			WHERE id = ? AND poll_id = ?`,
			string(p.Status), p.Net.String(), p.Profit.String(), p.ROI.String(),
			boolInt(p.ROIDefined), at, p.StakeID, st.PollID,
		)
		if err != nil {
			return fmt.Errorf("storage.SaveSettlement: update stake %s: %w", p.StakeID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("storage.SaveSettlement: stake %s: %w", p.StakeID, domain.ErrNotFound)
		}
		if p.Net.IsPositive() {
			if _, err := adjustTx(ctx, tx, p.UserID, p.Net); err != nil {
				return fmt.Errorf("storage.SaveSettlement: credit %s: %w", p.UserID, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO settlements (poll_id, result, total, fee, distributable, paid_out, winners, losers, refunded, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.PollID, string(st.Result), st.Total.String(), st.Fee.String(), st.Distributable.String(),
		st.PaidOut.String(), st.Winners, st.Losers, boolInt(st.Refunded), at,
	); err != nil {
		return fmt.Errorf("storage.SaveSettlement: insert settlement: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE polls SET settled_at = ? WHERE id = ?`, at, st.PollID); err != nil {
		return fmt.Errorf("storage.SaveSettlement: mark poll: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveSettlement: commit: %w", err)
	}
	return nil
}

// GetSettlement devuelve la liquidación del poll o domain.ErrNotFound.
func (s *SQLiteStorage) GetSettlement(ctx context.Context, pollID string) (domain.Settlement, error) {
	var st domain.Settlement
	var result, total, fee, distributable, paidOut, settledAt string
	var refunded int
	err := s.db.QueryRowContext(ctx, `
		SELECT poll_id, result, total, fee, distributable, paid_out, winners, losers, refunded, settled_at
		FROM settlements WHERE poll_id = ?`, pollID,
	).Scan(&st.PollID, &result, &total, &fee, &distributable, &paidOut,
		&st.Winners, &st.Losers, &refunded, &settledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settlement{}, fmt.Errorf("storage.GetSettlement: %s: %w", pollID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("storage.GetSettlement: %w", err)
	}
	st.Result = domain.Side(result)
	st.Total = parseDec(total)
	st.Fee = parseDec(fee)
	st.Distributable = parseDec(distributable)
	st.PaidOut = parseDec(paidOut)
	st.Refunded = refunded != 0
	st.SettledAt = parseTime(settledAt)
	return st, nil
}

// PlatformStats agrega las métricas de la plataforma.
// Los importes se suman en Go: SUM() sobre TEXT pasaría por REAL.
func (s *SQLiteStorage) PlatformStats(ctx context.Context) (domain.PlatformStats, error) {
	stats := domain.PlatformStats{
		TotalValueLocked:  decimal.Zero,
		TotalPayouts:      decimal.Zero,
		TotalFees:         decimal.Zero,
		TotalVoterRewards: decimal.Zero,
	}

	var err error
	stats.TotalValueLocked, err = s.sumColumn(ctx, `
		SELECT amount FROM stakes WHERE status IN (?, ?)`,
		string(domain.StakeActive), string(domain.StakePendingResolution))
	if err != nil {
		return stats, fmt.Errorf("storage.PlatformStats: tvl: %w", err)
	}
	stats.TotalPayouts, err = s.sumColumn(ctx, `SELECT paid_out FROM settlements WHERE refunded = 0`)
	if err != nil {
		return stats, fmt.Errorf("storage.PlatformStats: payouts: %w", err)
	}
	stats.TotalFees, err = s.sumColumn(ctx, `SELECT fee FROM settlements`)
	if err != nil {
		return stats, fmt.Errorf("storage.PlatformStats: fees: %w", err)
	}
	stats.TotalVoterRewards, err = s.sumColumn(ctx, `
		SELECT reward FROM votes
		UNION ALL SELECT amount FROM voter_bonuses`)
	if err != nil {
		return stats, fmt.Errorf("storage.PlatformStats: voter rewards: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM polls WHERE status = ?`, string(domain.PollActive),
	).Scan(&stats.ActivePredictions); err != nil {
		return stats, fmt.Errorf("storage.PlatformStats: active polls: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT user_id FROM balances
			UNION SELECT user_id FROM stakes
			UNION SELECT voter_id FROM votes
		)`).Scan(&stats.CommunityMembers); err != nil {
		return stats, fmt.Errorf("storage.PlatformStats: members: %w", err)
	}
	return stats, nil
}

func (s *SQLiteStorage) sumColumn(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(parseDec(raw))
	}
	return sum, rows.Err()
}
