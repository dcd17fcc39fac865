package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SyncAction is the outcome of a sync call.
type SyncAction string

const (
	SyncCreated   SyncAction = "CREATED"
	SyncUpdated   SyncAction = "UPDATED"
	SyncProcessed SyncAction = "PROCESSED"
)

// SyncResponse is returned for every accepted sync request.
type SyncResponse struct {
	RequestID                 uuid.UUID  `json:"requestId"`
	SynchronizedTransactionID uuid.UUID  `json:"synchronizedTransactionId"`
	Action                    SyncAction `json:"action"`
}

// RequestKind discriminates the sync request union.
type RequestKind string

const (
	KindOffenderTransaction      RequestKind = "OFFENDER_TRANSACTION"
	KindGeneralLedgerTransaction RequestKind = "GENERAL_LEDGER_TRANSACTION"
)

// SyncRequest is implemented by *SyncOffenderTransactionRequest and
// *SyncGeneralLedgerTransactionRequest.
type SyncRequest interface {
	Kind() RequestKind
	GetRequestID() uuid.UUID
	GetTransactionID() int64
	GetCaseloadID() string
	// Canonical is the JSON body with volatile fields cleared, used for change detection.
	Canonical() ([]byte, error)
}

// GeneralLedgerEntry is one leg of a legacy posting.
type GeneralLedgerEntry struct {
	EntrySequence int             `json:"entrySequence" validate:"gte=0"`
	Code          int             `json:"code" validate:"required,gt=0"`
	PostingType   PostingType     `json:"postingType" validate:"required,oneof=DR CR"`
	Amount        decimal.Decimal `json:"amount"`
}

// OffenderTransaction is a prisoner-side sub-transaction of a legacy transaction.
type OffenderTransaction struct {
	EntrySequence        int                  `json:"entrySequence" validate:"gte=0"`
	OffenderID           int64                `json:"offenderId"`
	OffenderDisplayID    string               `json:"offenderDisplayId" validate:"required"`
	OffenderBookingID    *int64               `json:"offenderBookingId,omitempty"`
	SubAccountType       string               `json:"subAccountType" validate:"required"`
	PostingType          PostingType          `json:"postingType" validate:"required,oneof=DR CR"`
	Type                 string               `json:"type" validate:"required"`
	Description          string               `json:"description"`
	Amount               decimal.Decimal      `json:"amount"`
	Reference            *string              `json:"reference,omitempty"`
	GeneralLedgerEntries []GeneralLedgerEntry `json:"generalLedgerEntries" validate:"dive"`
}

// SyncOffenderTransactionRequest carries one legacy transaction touching prisoner accounts.
type SyncOffenderTransactionRequest struct {
	TransactionID             int64                 `json:"transactionId" validate:"required"`
	RequestID                 uuid.UUID             `json:"requestId" validate:"required"`
	CaseloadID                string                `json:"caseloadId" validate:"required"`
	TransactionTimestamp      time.Time             `json:"transactionTimestamp" validate:"required"`
	CreatedAt                 time.Time             `json:"createdAt"`
	CreatedBy                 string                `json:"createdBy"`
	CreatedByDisplayName      string                `json:"createdByDisplayName"`
	LastModifiedAt            *time.Time            `json:"lastModifiedAt,omitempty"`
	LastModifiedBy            *string               `json:"lastModifiedBy,omitempty"`
	LastModifiedByDisplayName *string               `json:"lastModifiedByDisplayName,omitempty"`
	OffenderTransactions      []OffenderTransaction `json:"offenderTransactions" validate:"required,min=1,dive"`
}

func (r *SyncOffenderTransactionRequest) Kind() RequestKind       { return KindOffenderTransaction }
func (r *SyncOffenderTransactionRequest) GetRequestID() uuid.UUID { return r.RequestID }
func (r *SyncOffenderTransactionRequest) GetTransactionID() int64 { return r.TransactionID }
func (r *SyncOffenderTransactionRequest) GetCaseloadID() string   { return r.CaseloadID }

func (r *SyncOffenderTransactionRequest) Canonical() ([]byte, error) {
	c := *r
	c.RequestID = uuid.Nil
	c.TransactionTimestamp = c.TransactionTimestamp.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	return json.Marshal(c)
}

// SyncGeneralLedgerTransactionRequest carries a legacy transaction between general ledger accounts only.
type SyncGeneralLedgerTransactionRequest struct {
	TransactionID             int64                `json:"transactionId" validate:"required"`
	RequestID                 uuid.UUID            `json:"requestId" validate:"required"`
	Description               string               `json:"description"`
	Reference                 *string              `json:"reference,omitempty"`
	CaseloadID                string               `json:"caseloadId" validate:"required"`
	TransactionType           string               `json:"transactionType" validate:"required"`
	TransactionTimestamp      time.Time            `json:"transactionTimestamp" validate:"required"`
	CreatedAt                 time.Time            `json:"createdAt"`
	CreatedBy                 string               `json:"createdBy"`
	CreatedByDisplayName      string               `json:"createdByDisplayName"`
	LastModifiedAt            *time.Time           `json:"lastModifiedAt,omitempty"`
	LastModifiedBy            *string              `json:"lastModifiedBy,omitempty"`
	LastModifiedByDisplayName *string              `json:"lastModifiedByDisplayName,omitempty"`
	GeneralLedgerEntries      []GeneralLedgerEntry `json:"generalLedgerEntries" validate:"required,min=1,dive"`
}

func (r *SyncGeneralLedgerTransactionRequest) Kind() RequestKind       { return KindGeneralLedgerTransaction }
func (r *SyncGeneralLedgerTransactionRequest) GetRequestID() uuid.UUID { return r.RequestID }
func (r *SyncGeneralLedgerTransactionRequest) GetTransactionID() int64 { return r.TransactionID }
func (r *SyncGeneralLedgerTransactionRequest) GetCaseloadID() string   { return r.CaseloadID }

func (r *SyncGeneralLedgerTransactionRequest) Canonical() ([]byte, error) {
	c := *r
	c.RequestID = uuid.Nil
	c.TransactionTimestamp = c.TransactionTimestamp.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	return json.Marshal(c)
}

// SyncPayload is the audit row captured for every accepted sync body.
type SyncPayload struct {
	ID                        uuid.UUID       `json:"id" db:"id"`
	RequestID                 uuid.UUID       `json:"requestId" db:"request_id"`
	LegacyTransactionID       int64           `json:"legacyTransactionId" db:"legacy_transaction_id"`
	SynchronizedTransactionID uuid.UUID       `json:"synchronizedTransactionId" db:"synchronized_transaction_id"`
	RequestKind               RequestKind     `json:"requestKind" db:"request_kind"`
	Body                      json.RawMessage `json:"body" db:"body"`
	Timestamp                 time.Time       `json:"timestamp" db:"timestamp"`
}
