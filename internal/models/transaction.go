package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places an entry amount may carry.
const AmountScale = 2

// Transaction is an immutable, balanced ledger posting.
type Transaction struct {
	ID                        uuid.UUID          `json:"id" db:"id"`
	Type                      string             `json:"type" db:"type"`
	Description               string             `json:"description" db:"description"`
	Date                      time.Time          `json:"date" db:"date"`
	CreatedAt                 time.Time          `json:"createdAt" db:"created_at"`
	LegacyTransactionID       *int64             `json:"legacyTransactionId,omitempty" db:"legacy_transaction_id"`
	SynchronizedTransactionID *uuid.UUID         `json:"synchronizedTransactionId,omitempty" db:"synchronized_transaction_id"`
	Prison                    string             `json:"prison" db:"prison"`
	ReversesTransactionID     *uuid.UUID         `json:"reversesTransactionId,omitempty" db:"reverses_transaction_id"`
	Entries                   []TransactionEntry `json:"entries,omitempty" db:"-"`
}

// TransactionEntry is one leg. Amount is always a magnitude; EntryType carries the sign.
type TransactionEntry struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	TransactionID uuid.UUID       `json:"transactionId" db:"transaction_id"`
	AccountID     uuid.UUID       `json:"accountId" db:"account_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	EntryType     PostingType     `json:"entryType" db:"entry_type"`
}

// Signed returns the amount as seen by an account of the given nature.
func (e TransactionEntry) Signed(nature PostingType) decimal.Decimal {
	if e.EntryType == nature {
		return e.Amount
	}
	return e.Amount.Neg()
}

// PostedEntry is an entry joined with its parent transaction.
type PostedEntry struct {
	TransactionEntry
	TransactionType      string    `json:"transactionType"`
	TransactionDate      time.Time `json:"transactionDate"`
	TransactionCreatedAt time.Time `json:"transactionCreatedAt"`
	Prison               string    `json:"prison"`
}

// MigrationInfo locates the latest migration batch for an account.
type MigrationInfo struct {
	CreatedAt       time.Time
	TransactionDate time.Time
}

// Includes reports whether a posted entry survives the cutoff: it is part of
// the migration batch itself or happened strictly after it.
func (m *MigrationInfo) Includes(e PostedEntry) bool {
	if m == nil {
		return true
	}
	return e.TransactionCreatedAt.Equal(m.CreatedAt) || e.TransactionDate.After(m.TransactionDate)
}

// EntryInput is a leg handed to the recorder before it has an id.
type EntryInput struct {
	AccountID uuid.UUID
	Amount    decimal.Decimal
	EntryType PostingType
}

// TransactionDetail is the externally visible shape of a recorded transaction.
type TransactionDetail struct {
	ID                        uuid.UUID       `json:"id"`
	SynchronizedTransactionID *uuid.UUID      `json:"synchronizedTransactionId,omitempty"`
	LegacyTransactionID       *int64          `json:"legacyTransactionId,omitempty"`
	Type                      string          `json:"type"`
	Description               string          `json:"description"`
	Date                      time.Time       `json:"date"`
	Prison                    string          `json:"prison"`
	Postings                  []PostingDetail `json:"postings"`
}

type PostingDetail struct {
	AccountCode  int             `json:"accountCode"`
	PrisonNumber *string         `json:"prisonNumber,omitempty"`
	PostingType  PostingType     `json:"postingType"`
	Amount       decimal.Decimal `json:"amount"`
}
