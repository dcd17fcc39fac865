package models

import (
	"time"

	"github.com/google/uuid"
)

// OwnerKind says who an account belongs to.
type OwnerKind string

const (
	OwnerPrisoner      OwnerKind = "PRISONER"
	OwnerGeneralLedger OwnerKind = "GENERAL_LEDGER"
)

// PostingType is the debit/credit side of an entry.
type PostingType string

const (
	Debit  PostingType = "DR"
	Credit PostingType = "CR"
)

// Flip returns the opposite side.
func (p PostingType) Flip() PostingType {
	if p == Debit {
		return Credit
	}
	return Debit
}

func (p PostingType) Valid() bool {
	return p == Debit || p == Credit
}

// Account is one ledger account. PRISONER accounts are keyed by
// (PrisonNumber, AccountCode), GENERAL_LEDGER accounts by (PrisonID, AccountCode).
type Account struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	Kind           OwnerKind   `json:"kind" db:"kind"`
	AccountCode    int         `json:"accountCode" db:"account_code"`
	PrisonID       *string     `json:"prisonId,omitempty" db:"prison_id"`
	PrisonNumber   *string     `json:"prisonNumber,omitempty" db:"prison_number"`
	SubAccountType string      `json:"subAccountType" db:"sub_account_type"`
	Nature         PostingType `json:"nature" db:"nature"`
	CreatedAt      time.Time   `json:"createdAt" db:"created_at"`
}

// IsPrisoner reports whether the account is owned by a prisoner.
func (a *Account) IsPrisoner() bool {
	return a.Kind == OwnerPrisoner
}

// NewPrisonerAccount builds an unsaved prisoner account for code.
func NewPrisonerAccount(prisonNumber string, code int) *Account {
	pn := prisonNumber
	return &Account{
		ID:             uuid.New(),
		Kind:           OwnerPrisoner,
		AccountCode:    code,
		PrisonNumber:   &pn,
		SubAccountType: SubAccountName(code),
		Nature:         NatureOf(code),
		CreatedAt:      time.Now().UTC(),
	}
}

// NewGeneralLedgerAccount builds an unsaved general ledger account for code at prison.
func NewGeneralLedgerAccount(prisonID string, code int) *Account {
	pid := prisonID
	return &Account{
		ID:             uuid.New(),
		Kind:           OwnerGeneralLedger,
		AccountCode:    code,
		PrisonID:       &pid,
		SubAccountType: SubAccountName(code),
		Nature:         NatureOf(code),
		CreatedAt:      time.Now().UTC(),
	}
}

// Prison is an establishment known to the ledger.
type Prison struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
