package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prisonfinance/ledger-sync/internal/generalledger"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/prisonfinance/ledger-sync/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockGeneralLedgerClient struct {
	mock.Mock
}

func (m *MockGeneralLedgerClient) FindAccountByReference(ctx context.Context, reference string) (*generalledger.Account, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generalledger.Account), args.Error(1)
}

func (m *MockGeneralLedgerClient) CreateAccount(ctx context.Context, reference string) (*generalledger.Account, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generalledger.Account), args.Error(1)
}

func (m *MockGeneralLedgerClient) FindSubAccount(ctx context.Context, parentReference, reference string) (*generalledger.SubAccount, error) {
	args := m.Called(ctx, parentReference, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generalledger.SubAccount), args.Error(1)
}

func (m *MockGeneralLedgerClient) CreateSubAccount(ctx context.Context, parentID uuid.UUID, reference string) (*generalledger.SubAccount, error) {
	args := m.Called(ctx, parentID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generalledger.SubAccount), args.Error(1)
}

func (m *MockGeneralLedgerClient) PostTransaction(ctx context.Context, req generalledger.TransferRequest) (uuid.UUID, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

type MockObserver struct {
	mock.Mock
}

func (m *MockObserver) TransactionRecorded(ctx context.Context, tx *models.Transaction) {
	m.Called(ctx, tx)
}

type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) Mirror(ctx context.Context, req models.SyncRequest) {
	m.Called(ctx, req)
}

// ledger wires every service over one memory store.
type ledger struct {
	store     *memory.Store
	recorder  *TransactionRecorder
	resolver  *AccountResolver
	balances  *BalanceService
	sync      *SyncService
	merge     *MergeService
	migration *MigrationService
	query     *TransactionQueryService
}

func newLedger(mirror SyncMirror, observers ...TransactionObserver) *ledger {
	store := memory.NewStore()
	resolver := NewAccountResolver()
	recorder := NewTransactionRecorder(observers...)
	prisons := NewPrisonService(resolver)
	balances := NewBalanceService(store, NewMigrationCutoffResolver(), nil)
	return &ledger{
		store:     store,
		recorder:  recorder,
		resolver:  resolver,
		balances:  balances,
		sync:      NewSyncService(store, NewLegacyDataNormalizer(), resolver, prisons, recorder, mirror),
		merge:     NewMergeService(store, resolver, balances, recorder),
		migration: NewMigrationService(store, resolver, prisons, recorder),
		query:     NewTransactionQueryService(store),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 10, 0, 0, 0, time.UTC)
}

// earnings credits amount to the prisoner's spends account from GL 1501.
func earnings(legacyID int64, prisonNumber, prison, amount string, at time.Time) *models.SyncOffenderTransactionRequest {
	return offenderTx(legacyID, prisonNumber, prison, "A_EARN", at,
		models.GeneralLedgerEntry{EntrySequence: 1, Code: 1501, PostingType: models.Debit, Amount: dec(amount)},
		models.GeneralLedgerEntry{EntrySequence: 2, Code: models.SpendsAccountCode, PostingType: models.Credit, Amount: dec(amount)},
	)
}

func offenderTx(legacyID int64, prisonNumber, prison, txType string, at time.Time, legs ...models.GeneralLedgerEntry) *models.SyncOffenderTransactionRequest {
	return &models.SyncOffenderTransactionRequest{
		TransactionID:        legacyID,
		RequestID:            uuid.New(),
		CaseloadID:           prison,
		TransactionTimestamp: at,
		CreatedAt:            at,
		CreatedBy:            "OMS_OWNER",
		CreatedByDisplayName: "OMS Owner",
		OffenderTransactions: []models.OffenderTransaction{{
			EntrySequence:        1,
			OffenderID:           1015388,
			OffenderDisplayID:    prisonNumber,
			SubAccountType:       models.SubAccountSpends,
			PostingType:          models.Credit,
			Type:                 txType,
			Description:          "Sync " + txType,
			Amount:               legs[0].Amount,
			GeneralLedgerEntries: legs,
		}},
	}
}
