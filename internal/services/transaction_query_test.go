package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prisonfinance/ledger-sync/internal/apperrors"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/prisonfinance/ledger-sync/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionQueryService_TransactionsBySyncID(t *testing.T) {
	l := newLedger(nil)
	ctx := context.Background()

	resp, err := l.sync.Sync(ctx, earnings(19228028, "A1234BC", "MDI", "50.00", day(3)))
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		details, err := l.query.TransactionsBySyncID(ctx, resp.SynchronizedTransactionID)
		require.NoError(t, err)
		require.Len(t, details, 1)
		assert.Equal(t, int64(19228028), *details[0].LegacyTransactionID)
		require.Len(t, details[0].Postings, 2)

		var prisonerLeg *models.PostingDetail
		for i := range details[0].Postings {
			if details[0].Postings[i].PrisonNumber != nil {
				prisonerLeg = &details[0].Postings[i]
			}
		}
		require.NotNil(t, prisonerLeg)
		assert.Equal(t, models.SpendsAccountCode, prisonerLeg.AccountCode)
		assert.Equal(t, models.Credit, prisonerLeg.PostingType)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := l.query.TransactionsBySyncID(ctx, uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("dangling account", func(t *testing.T) {
		q := NewTransactionQueryService(forgetfulStore{l.store})
		_, err := q.TransactionsBySyncID(ctx, resp.SynchronizedTransactionID)
		assert.ErrorIs(t, err, apperrors.ErrAccountNotFound)
		assert.Equal(t, apperrors.KindIntegrity, apperrors.KindOf(err))
	})
}

// forgetfulStore loses every account, as if rows were removed under the ledger.
type forgetfulStore struct {
	*memory.Store
}

func (forgetfulStore) FindAccountByID(context.Context, uuid.UUID) (*models.Account, error) {
	return nil, nil
}
