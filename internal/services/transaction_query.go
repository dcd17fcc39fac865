package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/apperrors"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/prisonfinance/ledger-sync/internal/repository"
)

// TransactionQueryService exposes recorded transactions by synchronization id.
type TransactionQueryService struct {
	store repository.Store
}

func NewTransactionQueryService(store repository.Store) *TransactionQueryService {
	return &TransactionQueryService{store: store}
}

// TransactionsBySyncID returns every transaction recorded under syncID,
// reversals included, with postings resolved to account codes.
func (q *TransactionQueryService) TransactionsBySyncID(ctx context.Context, syncID uuid.UUID) ([]models.TransactionDetail, error) {
	txs, err := q.store.FindTransactionsBySyncID(ctx, syncID)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, errors.Wrapf(apperrors.ErrNotFound, "synchronized transaction %s", syncID)
	}

	accounts := make(map[uuid.UUID]*models.Account)
	out := make([]models.TransactionDetail, 0, len(txs))
	for _, t := range txs {
		detail := models.TransactionDetail{
			ID:                        t.ID,
			SynchronizedTransactionID: t.SynchronizedTransactionID,
			LegacyTransactionID:       t.LegacyTransactionID,
			Type:                      t.Type,
			Description:               t.Description,
			Date:                      t.Date,
			Prison:                    t.Prison,
			Postings:                  make([]models.PostingDetail, 0, len(t.Entries)),
		}
		for _, e := range t.Entries {
			account, ok := accounts[e.AccountID]
			if !ok {
				account, err = q.store.FindAccountByID(ctx, e.AccountID)
				if err != nil {
					return nil, err
				}
				if account == nil {
					return nil, errors.Wrapf(apperrors.ErrAccountNotFound, "entry %s references account %s", e.ID, e.AccountID)
				}
				accounts[e.AccountID] = account
			}
			detail.Postings = append(detail.Postings, models.PostingDetail{
				AccountCode:  account.AccountCode,
				PrisonNumber: account.PrisonNumber,
				PostingType:  e.EntryType,
				Amount:       e.Amount,
			})
		}
		out = append(out, detail)
	}
	return out, nil
}
