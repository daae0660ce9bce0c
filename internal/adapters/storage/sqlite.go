package storage

// sqlite.go: persistencia local del mercado.
//
// Estrategia:
//   - Importes como TEXT (decimal.String()): SQLite no tiene decimal y REAL
//     perdería centavos. Toda la aritmética se hace en Go.
//   - Fechas como TEXT en UTC, ancho fijo (ver timeLayout).
//   - Una sola conexión: SQLite es single-writer, así cada transacción
//     (stake, voto, liquidación) es atómica respecto de las demás.
//   - Las operaciones que mueven saldo y pool a la vez (RecordStake,
//     RecordVote, SaveSettlement) corren en UNA transacción.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/predictx/internal/domain"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS polls (
    id               TEXT PRIMARY KEY,
    match_id         TEXT NOT NULL DEFAULT '',
    question         TEXT NOT NULL,
    category         TEXT NOT NULL,
    created_by       TEXT NOT NULL DEFAULT '',
    created_at       TEXT NOT NULL,
    lock_time        TEXT NOT NULL,
    status           TEXT NOT NULL DEFAULT 'active',
    result           TEXT NOT NULL DEFAULT '',
    yes_total        TEXT NOT NULL DEFAULT '0',
    no_total         TEXT NOT NULL DEFAULT '0',
    yes_participants INTEGER NOT NULL DEFAULT 0,
    no_participants  INTEGER NOT NULL DEFAULT 0,
    eligible_voters  INTEGER NOT NULL DEFAULT 0,
    voting_ends_at   TEXT,
    resolved_at      TEXT,
    dispute_ends_at  TEXT,
    finalized_at     TEXT,
    settled_at       TEXT
);

CREATE TABLE IF NOT EXISTS stakes (
    id                 TEXT PRIMARY KEY,
    poll_id            TEXT NOT NULL,
    user_id            TEXT NOT NULL,
    side               TEXT NOT NULL,
    amount             TEXT NOT NULL,
    placed_at          TEXT NOT NULL,
    status             TEXT NOT NULL DEFAULT 'active',
    potential_winnings TEXT NOT NULL DEFAULT '0',
    tx_hash            TEXT NOT NULL DEFAULT '',
    payout             TEXT NOT NULL DEFAULT '0',
    profit             TEXT NOT NULL DEFAULT '0',
    roi                TEXT NOT NULL DEFAULT '0',
    roi_defined        INTEGER NOT NULL DEFAULT 0,
    settled_at         TEXT
);

CREATE TABLE IF NOT EXISTS votes (
    id       TEXT PRIMARY KEY,
    poll_id  TEXT NOT NULL,
    voter_id TEXT NOT NULL,
    choice   TEXT NOT NULL,
    reward   TEXT NOT NULL DEFAULT '0',
    cast_at  TEXT NOT NULL,
    UNIQUE (poll_id, voter_id)
);

CREATE TABLE IF NOT EXISTS voter_bonuses (
    poll_id     TEXT NOT NULL,
    voter_id    TEXT NOT NULL,
    amount      TEXT NOT NULL,
    credited_at TEXT NOT NULL,
    PRIMARY KEY (poll_id, voter_id)
);

CREATE TABLE IF NOT EXISTS approvals (
    poll_id     TEXT NOT NULL,
    admin_id    TEXT NOT NULL,
    result      TEXT NOT NULL,
    approved_at TEXT NOT NULL,
    PRIMARY KEY (poll_id, admin_id)
);

CREATE TABLE IF NOT EXISTS disputes (
    id           TEXT PRIMARY KEY,
    poll_id      TEXT NOT NULL,
    user_id      TEXT NOT NULL,
    reason       TEXT NOT NULL DEFAULT '',
    submitted_at TEXT NOT NULL,
    resolved_by  TEXT NOT NULL DEFAULT '',
    ruling       TEXT NOT NULL DEFAULT '',
    resolved_at  TEXT
);

CREATE TABLE IF NOT EXISTS settlements (
    poll_id       TEXT PRIMARY KEY,
    result        TEXT NOT NULL,
    total         TEXT NOT NULL,
    fee           TEXT NOT NULL,
    distributable TEXT NOT NULL,
    paid_out      TEXT NOT NULL,
    winners       INTEGER NOT NULL DEFAULT 0,
    losers        INTEGER NOT NULL DEFAULT 0,
    refunded      INTEGER NOT NULL DEFAULT 0,
    settled_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS balances (
    user_id    TEXT PRIMARY KEY,
    balance    TEXT NOT NULL DEFAULT '0',
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    id           TEXT PRIMARY KEY,
    hash         TEXT NOT NULL,
    kind         TEXT NOT NULL,
    user_id      TEXT NOT NULL,
    amount       TEXT NOT NULL,
    fee          TEXT NOT NULL DEFAULT '0',
    status       TEXT NOT NULL,
    ledger       INTEGER NOT NULL DEFAULT 0,
    description  TEXT NOT NULL DEFAULT '',
    submitted_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_polls_status   ON polls(status);
CREATE INDEX IF NOT EXISTS idx_stakes_poll    ON stakes(poll_id);
CREATE INDEX IF NOT EXISTS idx_stakes_user    ON stakes(user_id);
CREATE INDEX IF NOT EXISTS idx_votes_poll     ON votes(poll_id);
CREATE INDEX IF NOT EXISTS idx_disputes_poll  ON disputes(poll_id);
CREATE INDEX IF NOT EXISTS idx_tx_user        ON transactions(user_id);
`

// SQLiteStorage implementa ports.Store (saldos incluidos) usando SQLite
// (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

const pollColumns = `id, match_id, question, category, created_by, created_at, lock_time,
	status, result, yes_total, no_total, yes_participants, no_participants, eligible_voters,
	voting_ends_at, resolved_at, dispute_ends_at, finalized_at, settled_at`

// CreatePoll inserta un poll nuevo con su pool.
func (s *SQLiteStorage) CreatePoll(ctx context.Context, p domain.Poll) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO polls (`+pollColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.MatchID, p.Question, string(p.Category), p.CreatedBy,
		fmtTime(p.CreatedAt), fmtTime(p.LockTime), string(p.Status), string(p.Result),
		p.Pool.YesTotal.String(), p.Pool.NoTotal.String(),
		p.Pool.YesParticipants, p.Pool.NoParticipants, p.EligibleVoters,
		fmtTimePtr(p.VotingEndsAt), fmtTimePtr(p.ResolvedAt), fmtTimePtr(p.DisputeEndsAt),
		fmtTimePtr(p.FinalizedAt), fmtTimePtr(p.SettledAt),
	)
	if err != nil {
		return fmt.Errorf("storage.CreatePoll: %w", err)
	}
	return nil
}

// GetPoll devuelve el poll con id dado o domain.ErrNotFound.
func (s *SQLiteStorage) GetPoll(ctx context.Context, id string) (domain.Poll, error) {
	p, err := scanPoll(s.db.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Poll{}, fmt.Errorf("storage.GetPoll: %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Poll{}, fmt.Errorf("storage.GetPoll: %w", err)
	}
	return p, nil
}

// ListPolls devuelve polls filtrados por estado, ordenados por lock time.
func (s *SQLiteStorage) ListPolls(ctx context.Context, statuses ...domain.PollStatus) ([]domain.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		marks := make([]string, len(statuses))
		for i, st := range statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		query += ` WHERE status IN (` + strings.Join(marks, ", ") + `)`
	}
	query += ` ORDER BY lock_time, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListPolls: query: %w", err)
	}
	defer rows.Close()

	var polls []domain.Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListPolls: scan row: %w", err)
		}
		polls = append(polls, p)
	}
	return polls, rows.Err()
}

// UpdatePoll guarda estado, resultado y ventanas temporales.
// Los totales del pool no se tocan aquí: solo cambian vía RecordStake.
func (s *SQLiteStorage) UpdatePoll(ctx context.Context, p domain.Poll) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE polls SET
			status          = ?,
			result          = ?,
			voting_ends_at  = ?,
			resolved_at     = ?,
			dispute_ends_at = ?,
			finalized_at    = ?
		WHERE id = ?`,
		string(p.Status), string(p.Result),
		fmtTimePtr(p.VotingEndsAt), fmtTimePtr(p.ResolvedAt), fmtTimePtr(p.DisputeEndsAt),
		fmtTimePtr(p.FinalizedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdatePoll: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.UpdatePoll: %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

// --- helpers internos ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoll(r rowScanner) (domain.Poll, error) {
	var p domain.Poll
	var category, status, result, createdAt, lockTime, yesTotal, noTotal string
	var votingEnds, resolvedAt, disputeEnds, finalizedAt, settledAt sql.NullString

	if err := r.Scan(
		&p.ID, &p.MatchID, &p.Question, &category, &p.CreatedBy, &createdAt, &lockTime,
		&status, &result, &yesTotal, &noTotal,
		&p.Pool.YesParticipants, &p.Pool.NoParticipants, &p.EligibleVoters,
		&votingEnds, &resolvedAt, &disputeEnds, &finalizedAt, &settledAt,
	); err != nil {
		return domain.Poll{}, err
	}

	p.Category = domain.PollCategory(category)
	p.Status = domain.PollStatus(status)
	p.Result = domain.Side(result)
	p.CreatedAt = parseTime(createdAt)
	p.LockTime = parseTime(lockTime)
	p.Pool.YesTotal = parseDec(yesTotal)
	p.Pool.NoTotal = parseDec(noTotal)
	p.VotingEndsAt = parseTimePtr(votingEnds)
	p.ResolvedAt = parseTimePtr(resolvedAt)
	p.DisputeEndsAt = parseTimePtr(disputeEnds)
	p.FinalizedAt = parseTimePtr(finalizedAt)
	p.SettledAt = parseTimePtr(settledAt)
	return p, nil
}

// timeLayout tiene ancho fijo (nanosegundos con ceros) para que el orden
// lexicográfico de la columna TEXT sea el cronológico.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func parseDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
