// Package repository defines the persistence contract of the ledger. Lookups
// that find nothing return (nil, nil); writes that collide with a uniqueness
// constraint return an error matching apperrors.ErrUniqueViolation.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/shopspring/decimal"
)

type AccountStore interface {
	FindPrisonerAccount(ctx context.Context, prisonNumber string, accountCode int) (*models.Account, error)
	FindGeneralLedgerAccount(ctx context.Context, prisonID string, accountCode int) (*models.Account, error)
	FindAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	FindAccountsByPrisonNumber(ctx context.Context, prisonNumber string) ([]models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) error
}

type PrisonStore interface {
	FindPrison(ctx context.Context, code string) (*models.Prison, error)
	CreatePrison(ctx context.Context, prison *models.Prison) error
}

// NetAmountQuery selects prisoner-side entries at one account code and prison.
type NetAmountQuery struct {
	AccountCode  int
	PrisonID     string
	After        *time.Time
	ExcludeTypes []string
}

type TransactionStore interface {
	InsertTransaction(ctx context.Context, tx *models.Transaction) error
	InsertEntries(ctx context.Context, entries []models.TransactionEntry) error
	FindTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindTransactionEntries(ctx context.Context, transactionID uuid.UUID) ([]models.TransactionEntry, error)
	// FindTransactionsBySyncID returns every transaction for the id, entries included.
	FindTransactionsBySyncID(ctx context.Context, syncID uuid.UUID) ([]models.Transaction, error)
	// FindLiveTransactionsBySyncID skips reversals and transactions that have been reversed.
	FindLiveTransactionsBySyncID(ctx context.Context, syncID uuid.UUID) ([]models.Transaction, error)
	ListPostedEntries(ctx context.Context, accountID uuid.UUID) ([]models.PostedEntry, error)
	// LatestMigration returns the migration-typed transaction touching the account
	// with the greatest created_at, optionally restricted to one prison.
	LatestMigration(ctx context.Context, accountID uuid.UUID, prison *string) (*models.MigrationInfo, error)
	// NetPrisonerAmount is sum(CR) - sum(DR) over the selected prisoner entries.
	NetPrisonerAmount(ctx context.Context, q NetAmountQuery) (decimal.Decimal, error)
}

type PayloadStore interface {
	FindPayloadByRequestID(ctx context.Context, requestID uuid.UUID) (*models.SyncPayload, error)
	FindLatestPayloadByLegacyTransactionID(ctx context.Context, legacyID int64) (*models.SyncPayload, error)
	InsertPayload(ctx context.Context, payload *models.SyncPayload) error
}

// Store is the full ledger store.
type Store interface {
	AccountStore
	PrisonStore
	TransactionStore
	PayloadStore

	// WithinTx runs fn in one atomic unit of work. Calling it on a store that is
	// already inside a unit of work reuses that unit.
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}
