package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prisonfinance/ledger-sync/internal/apperrors"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/prisonfinance/ledger-sync/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountCols = []string{"id", "kind", "account_code", "prison_id", "prison_number", "sub_account_type", "nature", "created_at"}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestStore_FindPrisonerAccount(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	t.Run("existing account", func(t *testing.T) {
		id := uuid.New()
		now := time.Now().UTC()
		mock.ExpectQuery("SELECT id, kind, account_code, prison_id, prison_number, sub_account_type, nature, created_at FROM accounts WHERE kind = 'PRISONER' AND prison_number = \\$1 AND account_code = \\$2").
			WithArgs("A1234BC", 2102).
			WillReturnRows(sqlmock.NewRows(accountCols).
				AddRow(id.String(), "PRISONER", 2102, nil, "A1234BC", "Spends", "CR", now))

		account, err := store.FindPrisonerAccount(ctx, "A1234BC", 2102)
		require.NoError(t, err)
		require.NotNil(t, account)
		assert.Equal(t, id, account.ID)
		assert.Equal(t, models.OwnerPrisoner, account.Kind)
		assert.Nil(t, account.PrisonID)
		assert.Equal(t, "A1234BC", *account.PrisonNumber)
		assert.Equal(t, models.Credit, account.Nature)
	})

	t.Run("missing account", func(t *testing.T) {
		mock.ExpectQuery("FROM accounts WHERE kind = 'PRISONER'").
			WithArgs("Z9999ZZ", 2101).
			WillReturnRows(sqlmock.NewRows(accountCols))

		account, err := store.FindPrisonerAccount(ctx, "Z9999ZZ", 2101)
		assert.NoError(t, err)
		assert.Nil(t, account)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateAccount(t *testing.T) {
	store, mock := newMockStore(t)
	account := models.NewPrisonerAccount("A1234BC", models.CashAccountCode)

	t.Run("inserted", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO accounts").
			WithArgs(account.ID, "PRISONER", 2101, nil, "A1234BC", "Cash", "CR", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		assert.NoError(t, store.CreateAccount(context.Background(), account))
	})

	t.Run("unique violation", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "ux_accounts_prisoner"})

		err := store.CreateAccount(context.Background(), account)
		assert.ErrorIs(t, err, apperrors.ErrUniqueViolation)
		assert.Contains(t, err.Error(), "ux_accounts_prisoner")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertEntries(t *testing.T) {
	store, mock := newMockStore(t)
	txID := uuid.New()
	entries := []models.TransactionEntry{
		{ID: uuid.New(), TransactionID: txID, AccountID: uuid.New(), Amount: decimal.RequireFromString("50.00"), EntryType: models.Debit},
		{ID: uuid.New(), TransactionID: txID, AccountID: uuid.New(), Amount: decimal.RequireFromString("50.00"), EntryType: models.Credit},
	}

	mock.ExpectExec("INSERT INTO transaction_entries \\(id, transaction_id, account_id, amount, entry_type\\) VALUES \\(\\$1, \\$2, \\$3, \\$4, \\$5\\), \\(\\$6, \\$7, \\$8, \\$9, \\$10\\)").
		WithArgs(entries[0].ID, txID, entries[0].AccountID, "50", "DR",
			entries[1].ID, txID, entries[1].AccountID, "50", "CR").
		WillReturnResult(sqlmock.NewResult(0, 2))

	assert.NoError(t, store.InsertEntries(context.Background(), entries))
	assert.NoError(t, store.InsertEntries(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LatestMigration(t *testing.T) {
	store, mock := newMockStore(t)
	accountID := uuid.New()
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	date := time.Date(2025, 2, 28, 23, 0, 0, 0, time.UTC)

	t.Run("scoped to prison", func(t *testing.T) {
		mock.ExpectQuery("t.type = ANY\\(\\$2\\) AND t.prison = \\$3 ORDER BY t.created_at DESC, t.date DESC LIMIT 1").
			WithArgs(accountID, sqlmock.AnyArg(), "MDI").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "date"}).AddRow(created, date))

		prison := "MDI"
		info, err := store.LatestMigration(context.Background(), accountID, &prison)
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, created, info.CreatedAt)
		assert.Equal(t, date, info.TransactionDate)
	})

	t.Run("no migration", func(t *testing.T) {
		mock.ExpectQuery("t.type = ANY\\(\\$2\\) ORDER BY").
			WithArgs(accountID, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "date"}))

		info, err := store.LatestMigration(context.Background(), accountID, nil)
		assert.NoError(t, err)
		assert.Nil(t, info)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_NetPrisonerAmount(t *testing.T) {
	store, mock := newMockStore(t)
	after := time.Date(2025, 2, 28, 23, 0, 0, 0, time.UTC)

	mock.ExpectQuery("a.kind = 'PRISONER' AND a.account_code = \\$1 AND t.prison = \\$2\\s+AND NOT \\(t.type = ANY\\(\\$3\\)\\) AND t.date > \\$4").
		WithArgs(2102, "MDI", sqlmock.AnyArg(), after).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("-12.50"))

	net, err := store.NetPrisonerAmount(context.Background(), repository.NetAmountQuery{
		AccountCode:  2102,
		PrisonID:     "MDI",
		After:        &after,
		ExcludeTypes: models.MigrationTypes.Slice(),
	})
	require.NoError(t, err)
	assert.True(t, net.Equal(decimal.RequireFromString("-12.50")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindLiveTransactionsBySyncID(t *testing.T) {
	store, mock := newMockStore(t)
	syncID := uuid.New()
	txID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("NOT EXISTS \\(SELECT 1 FROM transactions r WHERE r.reverses_transaction_id = t.id\\)").
		WithArgs(syncID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "description", "date", "created_at", "legacy_transaction_id", "synchronized_transaction_id", "prison", "reverses_transaction_id"}).
			AddRow(txID.String(), "CANT", "Canteen", now, now, int64(19228028), syncID.String(), "MDI", nil))
	mock.ExpectQuery("FROM transaction_entries\\s+WHERE transaction_id = \\$1").
		WithArgs(txID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "account_id", "amount", "entry_type"}).
			AddRow(uuid.NewString(), txID.String(), uuid.NewString(), "7.25", "DR").
			AddRow(uuid.NewString(), txID.String(), uuid.NewString(), "7.25", "CR"))

	txs, err := store.FindLiveTransactionsBySyncID(context.Background(), syncID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(19228028), *txs[0].LegacyTransactionID)
	assert.Equal(t, syncID, *txs[0].SynchronizedTransactionID)
	assert.Nil(t, txs[0].ReversesTransactionID)
	assert.Len(t, txs[0].Entries, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx(t *testing.T) {
	store, mock := newMockStore(t)
	payload := &models.SyncPayload{
		ID:                        uuid.New(),
		RequestID:                 uuid.New(),
		LegacyTransactionID:       1,
		SynchronizedTransactionID: uuid.New(),
		RequestKind:               models.KindOffenderTransaction,
		Body:                      []byte(`{"transactionId":1}`),
		Timestamp:                 time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO sync_payloads").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(ctx context.Context, s repository.Store) error {
		return s.WithinTx(ctx, func(ctx context.Context, s repository.Store) error {
			return s.InsertPayload(ctx, payload)
		})
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
