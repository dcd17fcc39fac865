package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Schema is the ledger DDL. Transactions and entries are append-only; the
// partial unique indexes on accounts enforce one account per owner and code.
const Schema = `
CREATE TABLE IF NOT EXISTS prisons (
	id UUID PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id UUID PRIMARY KEY,
	kind TEXT NOT NULL CHECK (kind IN ('PRISONER', 'GENERAL_LEDGER')),
	account_code INTEGER NOT NULL,
	prison_id TEXT,
	prison_number TEXT,
	sub_account_type TEXT NOT NULL,
	nature TEXT NOT NULL CHECK (nature IN ('DR', 'CR')),
	created_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT accounts_prisoner_number CHECK (kind <> 'PRISONER' OR prison_number IS NOT NULL)
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_accounts_prisoner
	ON accounts (prison_number, account_code) WHERE kind = 'PRISONER';
CREATE UNIQUE INDEX IF NOT EXISTS ux_accounts_general_ledger
	ON accounts (prison_id, account_code) WHERE kind = 'GENERAL_LEDGER';

CREATE TABLE IF NOT EXISTS transactions (
	id UUID PRIMARY KEY,
	type TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	date TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	legacy_transaction_id BIGINT,
	synchronized_transaction_id UUID,
	prison TEXT NOT NULL,
	reverses_transaction_id UUID REFERENCES transactions (id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_sync_id ON transactions (synchronized_transaction_id);
CREATE INDEX IF NOT EXISTS idx_transactions_reverses ON transactions (reverses_transaction_id);
CREATE INDEX IF NOT EXISTS idx_transactions_type_created ON transactions (type, created_at);

CREATE TABLE IF NOT EXISTS transaction_entries (
	id UUID PRIMARY KEY,
	transaction_id UUID NOT NULL REFERENCES transactions (id),
	account_id UUID NOT NULL REFERENCES accounts (id),
	amount NUMERIC(19, 2) NOT NULL CHECK (amount >= 0),
	entry_type TEXT NOT NULL CHECK (entry_type IN ('DR', 'CR'))
);

CREATE INDEX IF NOT EXISTS idx_entries_account ON transaction_entries (account_id);
CREATE INDEX IF NOT EXISTS idx_entries_transaction ON transaction_entries (transaction_id);

CREATE TABLE IF NOT EXISTS sync_payloads (
	id UUID PRIMARY KEY,
	request_id UUID NOT NULL UNIQUE,
	legacy_transaction_id BIGINT NOT NULL,
	synchronized_transaction_id UUID NOT NULL,
	request_kind TEXT NOT NULL,
	body JSONB NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_payloads_legacy ON sync_payloads (legacy_transaction_id, timestamp DESC);
`

// ApplySchema creates missing tables and indexes.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return errors.Wrap(err, "apply schema")
}
