package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/predictx/internal/domain"
)

// RecordVote inserta el voto y acredita el reward en la misma transacción.
func (s *SQLiteStorage) RecordVote(ctx context.Context, v domain.Vote) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.RecordVote: begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM votes WHERE poll_id = ? AND voter_id = ?`, v.PollID, v.VoterID,
	).Scan(&exists)
	switch {
	case err == nil:
		return fmt.Errorf("storage.RecordVote: %s on %s: %w", v.VoterID, v.PollID, domain.ErrAlreadyVoted)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("storage.RecordVote: check duplicate: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO votes (id, poll_id, voter_id, choice, reward, cast_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.PollID, v.VoterID, string(v.Choice), v.Reward.String(), fmtTime(v.CastAt),
	); err != nil {
		return fmt.Errorf("storage.RecordVote: insert: %w", err)
	}

	if v.Reward.IsPositive() {
		if _, err := adjustTx(ctx, tx, v.VoterID, v.Reward); err != nil {
			return fmt.Errorf("storage.RecordVote: credit reward: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.RecordVote: commit: %w", err)
	}
	return nil
}

const voteColumns = `id, poll_id, voter_id, choice, reward, cast_at`

// GetVote devuelve el voto con id dado o domain.ErrNotFound.
func (s *SQLiteStorage) GetVote(ctx context.Context, id string) (domain.Vote, error) {
	v, err := scanVote(s.db.QueryRowContext(ctx, `SELECT `+voteColumns+` FROM votes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Vote{}, fmt.Errorf("storage.GetVote: %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Vote{}, fmt.Errorf("storage.GetVote: %w", err)
	}
	return v, nil
}

// ListVotes devuelve los votos del poll en orden de emisión.
func (s *SQLiteStorage) ListVotes(ctx context.Context, pollID string) ([]domain.Vote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE poll_id = ? ORDER BY cast_at, rowid`, pollID)
	if err != nil {
		return nil, fmt.Errorf("storage.ListVotes: query: %w", err)
	}
	defer rows.Close()

	var votes []domain.Vote
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListVotes: scan row: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func scanVote(r rowScanner) (domain.Vote, error) {
	var v domain.Vote
	var choice, reward, castAt string
	if err := r.Scan(&v.ID, &v.PollID, &v.VoterID, &choice, &reward, &castAt); err != nil {
		return domain.Vote{}, err
	}
	v.Choice = domain.VoteChoice(choice)
	v.Reward = parseDec(reward)
	v.CastAt = parseTime(castAt)
	return v, nil
}

// RecordVoterBonuses acredita los complementos de reward al cerrar la votación.
// Un votante recibe a lo sumo un complemento por poll: repetir la llamada no
// vuelve a acreditar.
func (s *SQLiteStorage) RecordVoterBonuses(ctx context.Context, bonuses []domain.VoterBonus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.RecordVoterBonuses: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, b := range bonuses {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO voter_bonuses (poll_id, voter_id, amount, credited_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (poll_id, voter_id) DO NOTHING`,
			b.PollID, b.VoterID, b.Amount.String(), fmtTime(b.CreditedAt),
		)
		if err != nil {
			return fmt.Errorf("storage.RecordVoterBonuses: insert %s: %w", b.VoterID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		if b.Amount.IsPositive() {
			if _, err := adjustTx(ctx, tx, b.VoterID, b.Amount); err != nil {
				return fmt.Errorf("storage.RecordVoterBonuses: credit %s: %w", b.VoterID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.RecordVoterBonuses: commit: %w", err)
	}
	return nil
}

// ListVoterBonuses devuelve los complementos acreditados en el poll.
func (s *SQLiteStorage) ListVoterBonuses(ctx context.Context, pollID string) ([]domain.VoterBonus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT poll_id, voter_id, amount, credited_at
		FROM voter_bonuses WHERE poll_id = ?
		ORDER BY credited_at, rowid`, pollID)
	if err != nil {
		return nil, fmt.Errorf("storage.ListVoterBonuses: query: %w", err)
	}
	defer rows.Close()

	var out []domain.VoterBonus
	for rows.Next() {
		var b domain.VoterBonus
		var amount, at string
		if err := rows.Scan(&b.PollID, &b.VoterID, &amount, &at); err != nil {
			return nil, fmt.Errorf("storage.ListVoterBonuses: scan row: %w", err)
		}
		b.Amount = parseDec(amount)
		b.CreditedAt = parseTime(at)
		out = append(out, b)
	}
	return out, rows.Err()
}

// SaveApproval guarda la aprobación de un admin. Un admin aprueba una sola vez.
func (s *SQLiteStorage) SaveApproval(ctx context.Context, a domain.Approval) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO approvals (poll_id, admin_id, result, approved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(poll_id, admin_id) DO NOTHING`,
		a.PollID, a.AdminID, string(a.Result), fmtTime(a.ApprovedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveApproval: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.SaveApproval: %s on %s: %w", a.AdminID, a.PollID, domain.ErrAlreadyVoted)
	}
	return nil
}

// ListApprovals devuelve las aprobaciones del poll en orden.
func (s *SQLiteStorage) ListApprovals(ctx context.Context, pollID string) ([]domain.Approval, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT poll_id, admin_id, result, approved_at
		FROM approvals WHERE poll_id = ?
		ORDER BY approved_at, rowid`, pollID)
	if err != nil {
		return nil, fmt.Errorf("storage.ListApprovals: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Approval
	for rows.Next() {
		var a domain.Approval
		var result, approvedAt string
		if err := rows.Scan(&a.PollID, &a.AdminID, &result, &approvedAt); err != nil {
			return nil, fmt.Errorf("storage.ListApprovals: scan row: %w", err)
		}
		a.Result = domain.Side(result)
		a.ApprovedAt = parseTime(approvedAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveDispute registra una disputa nueva.
func (s *SQLiteStorage) SaveDispute(ctx context.Context, d domain.Dispute) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO disputes (id, poll_id, user_id, reason, submitted_at, resolved_by, ruling, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.PollID, d.UserID, d.Reason, fmtTime(d.SubmittedAt),
		d.ResolvedBy, string(d.Ruling), fmtTimePtr(d.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveDispute: %w", err)
	}
	return nil
}

// ListDisputes devuelve las disputas del poll en orden de presentación.
func (s *SQLiteStorage) ListDisputes(ctx context.Context, pollID string) ([]domain.Dispute, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, poll_id, user_id, reason, submitted_at, resolved_by, ruling, resolved_at
		FROM disputes WHERE poll_id = ?
		ORDER BY submitted_at, rowid`, pollID)
	if err != nil {
		return nil, fmt.Errorf("storage.ListDisputes: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Dispute
	for rows.Next() {
		var d domain.Dispute
		var submittedAt, ruling string
		var resolvedAt sql.NullString
		if err := rows.Scan(&d.ID, &d.PollID, &d.UserID, &d.Reason, &submittedAt,
			&d.ResolvedBy, &ruling, &resolvedAt); err != nil {
			return nil, fmt.Errorf("storage.ListDisputes: scan row: %w", err)
		}
		d.SubmittedAt = parseTime(submittedAt)
		d.Ruling = domain.Side(ruling)
		d.ResolvedAt = parseTimePtr(resolvedAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ResolveDisputes cierra todas las disputas abiertas del poll con el fallo dado.
func (s *SQLiteStorage) ResolveDisputes(ctx context.Context, pollID, adminID string, ruling domain.Side, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE disputes SET resolved_by = ?, ruling = ?, resolved_at = ?
		WHERE poll_id = ? AND resolved_at IS NULL`,
		adminID, string(ruling), fmtTime(at), pollID,
	)
	if err != nil {
		return fmt.Errorf("storage.ResolveDisputes: %w", err)
	}
	return nil
}
