package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/apperrors"
	"github.com/prisonfinance/ledger-sync/internal/logging"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/prisonfinance/ledger-sync/internal/repository"
	"github.com/sirupsen/logrus"
)

// MergeService consolidates one prisoner's accounts into another's. Every
// contributing transaction of the source is reversed and re-posted against
// the target, so both ledgers keep a full audit trail.
type MergeService struct {
	store    repository.Store
	resolver *AccountResolver
	balances *BalanceService
	recorder *TransactionRecorder
	now      func() time.Time
	log      *logrus.Entry
}

func NewMergeService(store repository.Store, resolver *AccountResolver, balances *BalanceService, recorder *TransactionRecorder) *MergeService {
	return &MergeService{
		store:    store,
		resolver: resolver,
		balances: balances,
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logging.Component("merge"),
	}
}

// Consolidate moves everything from fromPrisonNumber onto toPrisonNumber.
func (m *MergeService) Consolidate(ctx context.Context, fromPrisonNumber, toPrisonNumber string) error {
	if fromPrisonNumber == toPrisonNumber {
		return errors.Wrapf(apperrors.ErrInvalidRequest, "cannot merge %s into itself", fromPrisonNumber)
	}

	var recorded []*models.Transaction
	err := m.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		recorded, err = m.consolidate(ctx, tx, fromPrisonNumber, toPrisonNumber)
		return err
	})
	if errors.Is(err, apperrors.ErrUniqueViolation) {
		err = m.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
			var err error
			recorded, err = m.consolidate(ctx, tx, fromPrisonNumber, toPrisonNumber)
			return err
		})
	}

	entry := m.log.WithFields(logrus.Fields{"from": fromPrisonNumber, "to": toPrisonNumber})
	if err != nil {
		entry.WithError(err).Error("Failed to merge prisoner accounts")
		return err
	}

	m.recorder.Notify(ctx, recorded...)
	entry.WithField("transactions", len(recorded)).Info("Merged prisoner accounts")
	return nil
}

func (m *MergeService) consolidate(ctx context.Context, tx repository.Store, from, to string) ([]*models.Transaction, error) {
	fromAccounts, err := tx.FindAccountsByPrisonNumber(ctx, from)
	if err != nil {
		return nil, err
	}
	if len(fromAccounts) == 0 {
		return nil, errors.Wrapf(apperrors.ErrPrisonerNotFound, "prisoner %s has no accounts", from)
	}

	target := make(map[uuid.UUID]uuid.UUID, len(fromAccounts))
	var originals []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for i := range fromAccounts {
		account := &fromAccounts[i]
		toAccount, err := m.resolver.ResolvePrisonerAccount(ctx, tx, to, account.AccountCode)
		if err != nil {
			return nil, err
		}
		target[account.ID] = toAccount.ID

		entries, err := m.balances.contributingEntries(ctx, tx, account)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !seen[e.TransactionID] {
				seen[e.TransactionID] = true
				originals = append(originals, e.TransactionID)
			}
		}
	}

	now := m.now()
	recorded := make([]*models.Transaction, 0, 2*len(originals))
	for _, id := range originals {
		original, err := tx.FindTransaction(ctx, id)
		if err != nil {
			return nil, err
		}
		if original == nil {
			return nil, errors.Wrapf(apperrors.ErrNotFound, "transaction %s", id)
		}
		legs, err := tx.FindTransactionEntries(ctx, id)
		if err != nil {
			return nil, err
		}

		originalID := original.ID
		txType := models.MergeType(original.Type)
		reversal, err := m.recorder.Record(ctx, tx, RecordRequest{
			Type:                  txType,
			Description:           fmt.Sprintf("REVERSE TRANSACTION %s: %s", original.ID, original.Description),
			Entries:               flipped(legs),
			Date:                  now,
			CreatedAt:             now,
			Prison:                original.Prison,
			ReversesTransactionID: &originalID,
		})
		if err != nil {
			return nil, errors.WithMessagef(err, "reverse %s", original.ID)
		}

		reinstated := make([]models.EntryInput, 0, len(legs))
		for _, l := range legs {
			accountID := l.AccountID
			if moved, ok := target[accountID]; ok {
				accountID = moved
			}
			reinstated = append(reinstated, models.EntryInput{AccountID: accountID, Amount: l.Amount, EntryType: l.EntryType})
		}
		reinstatement, err := m.recorder.Record(ctx, tx, RecordRequest{
			Type:        txType,
			Description: fmt.Sprintf("MERGE TRANSFER %s: %s", original.ID, original.Description),
			Entries:     reinstated,
			Date:        now,
			CreatedAt:   now,
			Prison:      original.Prison,
		})
		if err != nil {
			return nil, errors.WithMessagef(err, "reinstate %s", original.ID)
		}
		recorded = append(recorded, reversal, reinstatement)
	}
	return recorded, nil
}
