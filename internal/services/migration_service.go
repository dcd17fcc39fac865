package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/apperrors"
	"github.com/prisonfinance/ledger-sync/internal/logging"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/prisonfinance/ledger-sync/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// MigrationService loads legacy opening balances. Each call is one batch: all
// of its transactions share a creation instant, which later acts as the cutoff.
type MigrationService struct {
	store    repository.Store
	resolver *AccountResolver
	prisons  *PrisonService
	recorder *TransactionRecorder
	now      func() time.Time
	log      *logrus.Entry
}

func NewMigrationService(store repository.Store, resolver *AccountResolver, prisons *PrisonService, recorder *TransactionRecorder) *MigrationService {
	return &MigrationService{
		store:    store,
		resolver: resolver,
		prisons:  prisons,
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logging.Component("migration"),
	}
}

// MigratePrisonerBalances posts an OB transaction per balance and an OHB
// transaction per non-zero hold, each against the prison's migration clearing account.
func (m *MigrationService) MigratePrisonerBalances(ctx context.Context, prisonNumber string, req *models.PrisonerBalancesMigrationRequest) error {
	batch := m.now()
	var recorded []*models.Transaction

	err := m.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		recorded = recorded[:0]
		for _, b := range req.AccountBalances {
			if !models.IsPrisonerAccountCode(b.AccountCode) {
				return errors.Wrapf(apperrors.ErrAccountCodeNotFound, "%d is not a prisoner account code", b.AccountCode)
			}
			if _, err := m.prisons.Ensure(ctx, tx, b.PrisonID); err != nil {
				return err
			}
			account, err := m.resolver.ResolvePrisonerAccount(ctx, tx, prisonNumber, b.AccountCode)
			if err != nil {
				return err
			}
			clearing, err := m.resolver.ResolveGeneralLedgerAccount(ctx, tx, b.PrisonID, models.MigrationClearingAccountCode)
			if err != nil {
				return err
			}

			ob, err := m.recorder.Record(ctx, tx, RecordRequest{
				Type:        models.TypeOpeningBalance,
				Description: "Opening balance",
				Entries:     openingLegs(account, clearing, b.Balance, account.Nature),
				Date:        b.AsOf,
				CreatedAt:   batch,
				Prison:      b.PrisonID,
			})
			if err != nil {
				return err
			}
			recorded = append(recorded, ob)

			if b.HoldBalance.IsZero() {
				continue
			}
			ohb, err := m.recorder.Record(ctx, tx, RecordRequest{
				Type:        models.TypeOpeningHoldBalance,
				Description: "Opening hold balance",
				Entries:     openingLegs(account, clearing, b.HoldBalance, models.Debit),
				Date:        b.AsOf,
				CreatedAt:   batch,
				Prison:      b.PrisonID,
			})
			if err != nil {
				return err
			}
			recorded = append(recorded, ohb)
		}
		return nil
	})

	entry := m.log.WithFields(logrus.Fields{"prisonNumber": prisonNumber, "balances": len(req.AccountBalances)})
	if err != nil {
		entry.WithError(err).Error("Failed to migrate prisoner balances")
		return err
	}
	m.recorder.Notify(ctx, recorded...)
	entry.Info("Migrated prisoner balances")
	return nil
}

// MigrateGeneralLedgerBalances posts an OB transaction per GL account at prisonID.
func (m *MigrationService) MigrateGeneralLedgerBalances(ctx context.Context, prisonID string, req *models.GeneralLedgerBalancesMigrationRequest) error {
	batch := m.now()
	var recorded []*models.Transaction

	err := m.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		recorded = recorded[:0]
		if _, err := m.prisons.Ensure(ctx, tx, prisonID); err != nil {
			return err
		}
		clearing, err := m.resolver.ResolveGeneralLedgerAccount(ctx, tx, prisonID, models.MigrationClearingAccountCode)
		if err != nil {
			return err
		}
		for _, b := range req.AccountBalances {
			if b.AccountCode == models.MigrationClearingAccountCode {
				return errors.Wrapf(apperrors.ErrInvalidRequest, "account %d cannot be migrated", b.AccountCode)
			}
			account, err := m.resolver.ResolveGeneralLedgerAccount(ctx, tx, prisonID, b.AccountCode)
			if err != nil {
				return err
			}
			ob, err := m.recorder.Record(ctx, tx, RecordRequest{
				Type:        models.TypeOpeningBalance,
				Description: "Opening balance",
				Entries:     openingLegs(account, clearing, b.Balance, account.Nature),
				Date:        b.AsOf,
				CreatedAt:   batch,
				Prison:      prisonID,
			})
			if err != nil {
				return err
			}
			recorded = append(recorded, ob)
		}
		return nil
	})

	entry := m.log.WithFields(logrus.Fields{"prisonId": prisonID, "balances": len(req.AccountBalances)})
	if err != nil {
		entry.WithError(err).Error("Failed to migrate general ledger balances")
		return err
	}
	m.recorder.Notify(ctx, recorded...)
	entry.Info("Migrated general ledger balances")
	return nil
}

// openingLegs posts amount on the increasing side of account, offset against
// clearing. A negative amount posts on the opposite side.
func openingLegs(account, clearing *models.Account, amount decimal.Decimal, increasing models.PostingType) []models.EntryInput {
	side := increasing
	if amount.IsNegative() {
		side = side.Flip()
	}
	return []models.EntryInput{
		{AccountID: account.ID, Amount: amount.Abs(), EntryType: side},
		{AccountID: clearing.ID, Amount: amount.Abs(), EntryType: side.Flip()},
	}
}
