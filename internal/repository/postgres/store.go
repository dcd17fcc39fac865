package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/apperrors"
	"github.com/prisonfinance/ledger-sync/internal/database"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/prisonfinance/ledger-sync/internal/repository"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements repository.Store on Postgres.
type Store struct {
	db   *sql.DB
	q    querier
	inTx bool
}

var _ repository.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, s repository.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(ctx, &Store{db: s.db, q: tx, inTx: true})
	})
}

func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return errors.Wrapf(apperrors.ErrUniqueViolation, "%s: %s", op, pqErr.Constraint)
	}
	return errors.Wrap(err, op)
}

const accountColumns = `id, kind, account_code, prison_id, prison_number, sub_account_type, nature, created_at`

func scanAccount(row interface{ Scan(dest ...any) error }) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Kind, &a.AccountCode, &a.PrisonID, &a.PrisonNumber, &a.SubAccountType, &a.Nature, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) findAccount(ctx context.Context, op, where string, args ...any) (*models.Account, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, args...)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, mapError(err, op)
}

func (s *Store) FindPrisonerAccount(ctx context.Context, prisonNumber string, accountCode int) (*models.Account, error) {
	return s.findAccount(ctx, "find prisoner account",
		`kind = 'PRISONER' AND prison_number = $1 AND account_code = $2`, prisonNumber, accountCode)
}

func (s *Store) FindGeneralLedgerAccount(ctx context.Context, prisonID string, accountCode int) (*models.Account, error) {
	return s.findAccount(ctx, "find general ledger account",
		`kind = 'GENERAL_LEDGER' AND prison_id = $1 AND account_code = $2`, prisonID, accountCode)
}

func (s *Store) FindAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return s.findAccount(ctx, "find account", `id = $1`, id)
}

func (s *Store) FindAccountsByPrisonNumber(ctx context.Context, prisonNumber string) ([]models.Account, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE kind = 'PRISONER' AND prison_number = $1 ORDER BY account_code`,
		prisonNumber)
	if err != nil {
		return nil, mapError(err, "list prisoner accounts")
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, mapError(err, "scan account")
		}
		accounts = append(accounts, *a)
	}
	return accounts, mapError(rows.Err(), "list prisoner accounts")
}

func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Kind, a.AccountCode, a.PrisonID, a.PrisonNumber, a.SubAccountType, a.Nature, a.CreatedAt)
	return mapError(err, "create account")
}

func (s *Store) FindPrison(ctx context.Context, code string) (*models.Prison, error) {
	var p models.Prison
	err := s.q.QueryRowContext(ctx, `SELECT id, code, created_at FROM prisons WHERE code = $1`, code).
		Scan(&p.ID, &p.Code, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "find prison")
	}
	return &p, nil
}

func (s *Store) CreatePrison(ctx context.Context, p *models.Prison) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO prisons (id, code, created_at) VALUES ($1, $2, $3)`,
		p.ID, p.Code, p.CreatedAt)
	return mapError(err, "create prison")
}

const transactionColumns = `id, type, description, date, created_at, legacy_transaction_id, synchronized_transaction_id, prison, reverses_transaction_id`

func (s *Store) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Type, t.Description, t.Date, t.CreatedAt, t.LegacyTransactionID, t.SynchronizedTransactionID, t.Prison, t.ReversesTransactionID)
	return mapError(err, "insert transaction")
}

func (s *Store) InsertEntries(ctx context.Context, entries []models.TransactionEntry) error {
	if len(entries) == 0 {
		return nil
	}

	values := make([]string, 0, len(entries))
	args := make([]any, 0, len(entries)*5)
	for i, e := range entries {
		n := i * 5
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5))
		args = append(args, e.ID, e.TransactionID, e.AccountID, e.Amount, e.EntryType)
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO transaction_entries (id, transaction_id, account_id, amount, entry_type) VALUES `+strings.Join(values, ", "),
		args...)
	return mapError(err, "insert entries")
}

func scanTransaction(row interface{ Scan(dest ...any) error }) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.Type, &t.Description, &t.Date, &t.CreatedAt, &t.LegacyTransactionID,
		&t.SynchronizedTransactionID, &t.Prison, &t.ReversesTransactionID)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) FindTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "find transaction")
	}
	return t, nil
}

func (s *Store) FindTransactionEntries(ctx context.Context, transactionID uuid.UUID) ([]models.TransactionEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, transaction_id, account_id, amount, entry_type
		FROM transaction_entries
		WHERE transaction_id = $1
		ORDER BY id`, transactionID)
	if err != nil {
		return nil, mapError(err, "find transaction entries")
	}
	defer rows.Close()

	var entries []models.TransactionEntry
	for rows.Next() {
		var e models.TransactionEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Amount, &e.EntryType); err != nil {
			return nil, mapError(err, "scan entry")
		}
		entries = append(entries, e)
	}
	return entries, mapError(rows.Err(), "find transaction entries")
}

func (s *Store) listTransactions(ctx context.Context, op, query string, args ...any) ([]models.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, op)
	}

	var txs []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, mapError(err, op)
		}
		txs = append(txs, *t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, mapError(err, op)
	}
	rows.Close()

	for i := range txs {
		entries, err := s.FindTransactionEntries(ctx, txs[i].ID)
		if err != nil {
			return nil, err
		}
		txs[i].Entries = entries
	}
	return txs, nil
}

func (s *Store) FindTransactionsBySyncID(ctx context.Context, syncID uuid.UUID) ([]models.Transaction, error) {
	return s.listTransactions(ctx, "find transactions by sync id",
		`SELECT `+transactionColumns+` FROM transactions WHERE synchronized_transaction_id = $1 ORDER BY created_at, id`,
		syncID)
}

func (s *Store) FindLiveTransactionsBySyncID(ctx context.Context, syncID uuid.UUID) ([]models.Transaction, error) {
	return s.listTransactions(ctx, "find live transactions by sync id", `
		SELECT `+transactionColumns+` FROM transactions t
		WHERE t.synchronized_transaction_id = $1
		  AND t.reverses_transaction_id IS NULL
		  AND NOT EXISTS (SELECT 1 FROM transactions r WHERE r.reverses_transaction_id = t.id)
		ORDER BY t.created_at, t.id`,
		syncID)
}

func (s *Store) ListPostedEntries(ctx context.Context, accountID uuid.UUID) ([]models.PostedEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT e.id, e.transaction_id, e.account_id, e.amount, e.entry_type, t.type, t.date, t.created_at, t.prison
		FROM transaction_entries e
		JOIN transactions t ON t.id = e.transaction_id
		WHERE e.account_id = $1
		ORDER BY t.date, t.created_at, e.id`, accountID)
	if err != nil {
		return nil, mapError(err, "list posted entries")
	}
	defer rows.Close()

	var entries []models.PostedEntry
	for rows.Next() {
		var e models.PostedEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Amount, &e.EntryType,
			&e.TransactionType, &e.TransactionDate, &e.TransactionCreatedAt, &e.Prison); err != nil {
			return nil, mapError(err, "scan posted entry")
		}
		entries = append(entries, e)
	}
	return entries, mapError(rows.Err(), "list posted entries")
}

func (s *Store) LatestMigration(ctx context.Context, accountID uuid.UUID, prison *string) (*models.MigrationInfo, error) {
	query := `
		SELECT t.created_at, t.date
		FROM transactions t
		JOIN transaction_entries e ON e.transaction_id = t.id
		WHERE e.account_id = $1 AND t.type = ANY($2)`
	args := []any{accountID, pq.Array(models.MigrationTypes.Slice())}
	if prison != nil {
		query += ` AND t.prison = $3`
		args = append(args, *prison)
	}
	query += ` ORDER BY t.created_at DESC, t.date DESC LIMIT 1`

	var info models.MigrationInfo
	err := s.q.QueryRowContext(ctx, query, args...).Scan(&info.CreatedAt, &info.TransactionDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "latest migration")
	}
	return &info, nil
}

func (s *Store) NetPrisonerAmount(ctx context.Context, q repository.NetAmountQuery) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN e.entry_type = 'CR' THEN e.amount ELSE -e.amount END), 0)
		FROM transaction_entries e
		JOIN accounts a ON a.id = e.account_id
		JOIN transactions t ON t.id = e.transaction_id
		WHERE a.kind = 'PRISONER' AND a.account_code = $1 AND t.prison = $2
		  AND NOT (t.type = ANY($3))`
	exclude := q.ExcludeTypes
	if exclude == nil {
		exclude = []string{}
	}
	args := []any{q.AccountCode, q.PrisonID, pq.Array(exclude)}
	if q.After != nil {
		query += ` AND t.date > $4`
		args = append(args, *q.After)
	}

	var net decimal.Decimal
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&net); err != nil {
		return decimal.Zero, mapError(err, "net prisoner amount")
	}
	return net, nil
}

const payloadColumns = `id, request_id, legacy_transaction_id, synchronized_transaction_id, request_kind, body, timestamp`

func (s *Store) findPayload(ctx context.Context, op, where string, args ...any) (*models.SyncPayload, error) {
	var p models.SyncPayload
	var body []byte
	err := s.q.QueryRowContext(ctx, `SELECT `+payloadColumns+` FROM sync_payloads WHERE `+where, args...).
		Scan(&p.ID, &p.RequestID, &p.LegacyTransactionID, &p.SynchronizedTransactionID, &p.RequestKind, &body, &p.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, op)
	}
	p.Body = body
	return &p, nil
}

func (s *Store) FindPayloadByRequestID(ctx context.Context, requestID uuid.UUID) (*models.SyncPayload, error) {
	return s.findPayload(ctx, "find payload by request id", `request_id = $1`, requestID)
}

func (s *Store) FindLatestPayloadByLegacyTransactionID(ctx context.Context, legacyID int64) (*models.SyncPayload, error) {
	return s.findPayload(ctx, "find payload by legacy id",
		`legacy_transaction_id = $1 ORDER BY timestamp DESC LIMIT 1`, legacyID)
}

func (s *Store) InsertPayload(ctx context.Context, p *models.SyncPayload) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sync_payloads (`+payloadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.RequestID, p.LegacyTransactionID, p.SynchronizedTransactionID, p.RequestKind, []byte(p.Body), p.Timestamp)
	return mapError(err, "insert payload")
}
