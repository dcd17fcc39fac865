package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/apperrors"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func spendsBalance(t *testing.T, l *ledger, prisonNumber string) models.PrisonerAccountBalance {
	t.Helper()
	b, err := l.balances.PrisonerAccountBalance(context.Background(), prisonNumber, models.SpendsAccountCode)
	require.NoError(t, err)
	return *b
}

func TestSyncService_Sync_Idempotent(t *testing.T) {
	l := newLedger(nil)
	ctx := context.Background()
	req := earnings(19228028, "A1234BC", "MDI", "50.00", day(3))

	first, err := l.sync.Sync(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.SyncCreated, first.Action)
	assert.Equal(t, req.RequestID, first.RequestID)
	_, txCount, payloads := l.store.Counts()

	t.Run("same request id", func(t *testing.T) {
		again, err := l.sync.Sync(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, models.SyncProcessed, again.Action)
		assert.Equal(t, first.SynchronizedTransactionID, again.SynchronizedTransactionID)
	})

	t.Run("new request id, same body", func(t *testing.T) {
		replay := *req
		replay.RequestID = uuid.New()
		again, err := l.sync.Sync(ctx, &replay)
		require.NoError(t, err)
		assert.Equal(t, models.SyncProcessed, again.Action)
		assert.Equal(t, first.SynchronizedTransactionID, again.SynchronizedTransactionID)
	})

	_, txAfter, payloadsAfter := l.store.Counts()
	assert.Equal(t, txCount, txAfter)
	assert.Equal(t, payloads, payloadsAfter)
	assert.True(t, spendsBalance(t, l, "A1234BC").Total.Equal(dec("50")))
}

func TestSyncService_Sync_UpdatedBodyReplacesPosting(t *testing.T) {
	l := newLedger(nil)
	ctx := context.Background()

	first, err := l.sync.Sync(ctx, earnings(19228028, "A1234BC", "MDI", "50.00", day(3)))
	require.NoError(t, err)

	corrected := earnings(19228028, "A1234BC", "MDI", "35.00", day(3))
	second, err := l.sync.Sync(ctx, corrected)
	require.NoError(t, err)
	assert.Equal(t, models.SyncUpdated, second.Action)
	assert.Equal(t, first.SynchronizedTransactionID, second.SynchronizedTransactionID)

	assert.True(t, spendsBalance(t, l, "A1234BC").Total.Equal(dec("35")))

	details, err := l.query.TransactionsBySyncID(ctx, second.SynchronizedTransactionID)
	require.NoError(t, err)
	assert.Len(t, details, 3)

	// the corrected body is now the one replays compare against
	replay := *corrected
	replay.RequestID = uuid.New()
	third, err := l.sync.Sync(ctx, &replay)
	require.NoError(t, err)
	assert.Equal(t, models.SyncProcessed, third.Action)
}

func TestSyncService_Sync_GeneralLedgerTransaction(t *testing.T) {
	l := newLedger(nil)
	ctx := context.Background()
	req := &models.SyncGeneralLedgerTransactionRequest{
		TransactionID:        88,
		RequestID:            uuid.New(),
		Description:          "Canteen float",
		CaseloadID:           "LEI",
		TransactionType:      "GJ",
		TransactionTimestamp: day(4),
		CreatedAt:            day(4),
		GeneralLedgerEntries: []models.GeneralLedgerEntry{
			{EntrySequence: 1, Code: 1501, PostingType: models.Debit, Amount: dec("200.00")},
			{EntrySequence: 2, Code: 2501, PostingType: models.Credit, Amount: dec("200.00")},
		},
	}

	resp, err := l.sync.Sync(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.SyncCreated, resp.Action)

	bank, err := l.balances.GeneralLedgerAccountBalance(ctx, "LEI", 1501)
	require.NoError(t, err)
	assert.True(t, bank.Total.Equal(dec("200")))

	accounts, err := l.store.FindAccountsByPrisonNumber(ctx, "LEI")
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestSyncService_Sync_ValidationFailuresPersistNothing(t *testing.T) {
	l := newLedger(nil)
	ctx := context.Background()

	unbalanced := offenderTx(5, "A1234BC", "MDI", "CANT", day(3),
		models.GeneralLedgerEntry{EntrySequence: 1, Code: models.SpendsAccountCode, PostingType: models.Debit, Amount: dec("10.00")},
		models.GeneralLedgerEntry{EntrySequence: 2, Code: 2501, PostingType: models.Credit, Amount: dec("9.99")},
	)
	_, err := l.sync.Sync(ctx, unbalanced)
	assert.ErrorIs(t, err, apperrors.ErrUnbalancedTransaction)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	empty := offenderTx(6, "A1234BC", "MDI", "CANT", day(3), models.GeneralLedgerEntry{})
	empty.OffenderTransactions[0].GeneralLedgerEntries = nil
	_, err = l.sync.Sync(ctx, empty)
	assert.ErrorIs(t, err, apperrors.ErrNoEntries)

	accounts, txs, payloads := l.store.Counts()
	assert.Zero(t, accounts)
	assert.Zero(t, txs)
	assert.Zero(t, payloads)
}

func TestSyncService_Sync_RetriesUniqueViolationOnce(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		l := newLedger(nil)
		calls := 0
		l.store.BeforeCreateAccount = func(a *models.Account) error {
			calls++
			if calls == 1 {
				return errors.Wrap(apperrors.ErrUniqueViolation, "ux_accounts_general_ledger")
			}
			return nil
		}

		resp, err := l.sync.Sync(context.Background(), earnings(1, "A1234BC", "MDI", "5.00", day(3)))
		require.NoError(t, err)
		assert.Equal(t, models.SyncCreated, resp.Action)
	})

	t.Run("gives up after one retry", func(t *testing.T) {
		l := newLedger(nil)
		calls := 0
		l.store.BeforeCreateAccount = func(a *models.Account) error {
			calls++
			return apperrors.ErrUniqueViolation
		}

		_, err := l.sync.Sync(context.Background(), earnings(1, "A1234BC", "MDI", "5.00", day(3)))
		assert.ErrorIs(t, err, apperrors.ErrUniqueViolation)
		assert.Equal(t, 2, calls)
	})
}

func TestSyncService_Sync_ConcurrentFirstSyncsShareAccount(t *testing.T) {
	l := newLedger(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.sync.Sync(ctx, earnings(int64(100+i), "A1234BC", "MDI", "1.00", day(3)))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	accounts, err := l.store.FindAccountsByPrisonNumber(ctx, "A1234BC")
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.True(t, spendsBalance(t, l, "A1234BC").Total.Equal(dec("10")))
}

func TestSyncService_Sync_MirrorsCreatedOnly(t *testing.T) {
	mirror := new(MockMirror)
	l := newLedger(mirror)
	ctx := context.Background()
	req := earnings(7, "A1234BC", "MDI", "12.00", day(3))

	mirror.On("Mirror", mock.Anything, mock.MatchedBy(func(r models.SyncRequest) bool {
		return r.GetTransactionID() == 7
	})).Return().Once()

	_, err := l.sync.Sync(ctx, req)
	require.NoError(t, err)
	_, err = l.sync.Sync(ctx, req)
	require.NoError(t, err)

	mirror.AssertExpectations(t)
	mirror.AssertNumberOfCalls(t, "Mirror", 1)
}

func TestSyncService_Sync_NotifiesAfterCommit(t *testing.T) {
	observer := new(MockObserver)
	l := newLedger(nil, observer)
	observer.On("TransactionRecorded", mock.Anything, mock.AnythingOfType("*models.Transaction")).Return()

	_, err := l.sync.Sync(context.Background(), earnings(7, "A1234BC", "MDI", "12.00", day(3)))
	require.NoError(t, err)
	observer.AssertNumberOfCalls(t, "TransactionRecorded", 1)

	_, err = l.sync.Sync(context.Background(), offenderTx(8, "A1234BC", "MDI", "CANT", day(3),
		models.GeneralLedgerEntry{Code: models.SpendsAccountCode, PostingType: models.Debit, Amount: dec("1")},
		models.GeneralLedgerEntry{Code: 2501, PostingType: models.Credit, Amount: dec("2")},
	))
	require.Error(t, err)
	observer.AssertNumberOfCalls(t, "TransactionRecorded", 1)
}

func TestDecodeSyncRequest(t *testing.T) {
	_, err := DecodeSyncRequest("UNKNOWN", []byte(`{}`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	req, err := DecodeSyncRequest(models.KindGeneralLedgerTransaction, []byte(`{"transactionId":3,"caseloadId":"MDI"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), req.GetTransactionID())
	assert.Equal(t, "MDI", req.GetCaseloadID())
}
