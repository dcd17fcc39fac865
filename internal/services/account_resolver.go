package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/prisonfinance/ledger-sync/internal/repository"
)

// AccountResolver finds or creates the ledger account a legacy code refers to.
// Prisoner-classified codes resolve to the prisoner's own account when a prison
// number is known; everything else resolves to the prison's GL account.
type AccountResolver struct{}

func NewAccountResolver() *AccountResolver {
	return &AccountResolver{}
}

// Resolve returns the account for accountCode. A create that loses a race
// returns an error matching apperrors.ErrUniqueViolation; callers retry the
// whole unit of work rather than re-reading inside an aborted transaction.
func (r *AccountResolver) Resolve(ctx context.Context, s repository.AccountStore, accountCode int, prisonNumber, prisonID string) (*models.Account, error) {
	if prisonNumber != "" && models.IsPrisonerAccountCode(accountCode) {
		return r.ResolvePrisonerAccount(ctx, s, prisonNumber, accountCode)
	}
	return r.ResolveGeneralLedgerAccount(ctx, s, prisonID, accountCode)
}

func (r *AccountResolver) ResolvePrisonerAccount(ctx context.Context, s repository.AccountStore, prisonNumber string, accountCode int) (*models.Account, error) {
	account, err := s.FindPrisonerAccount(ctx, prisonNumber, accountCode)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	account = models.NewPrisonerAccount(prisonNumber, accountCode)
	if err := s.CreateAccount(ctx, account); err != nil {
		return nil, errors.Wrapf(err, "create account %d for prisoner %s", accountCode, prisonNumber)
	}
	return account, nil
}

func (r *AccountResolver) ResolveGeneralLedgerAccount(ctx context.Context, s repository.AccountStore, prisonID string, accountCode int) (*models.Account, error) {
	account, err := s.FindGeneralLedgerAccount(ctx, prisonID, accountCode)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	account = models.NewGeneralLedgerAccount(prisonID, accountCode)
	if err := s.CreateAccount(ctx, account); err != nil {
		return nil, errors.Wrapf(err, "create account %d for prison %s", accountCode, prisonID)
	}
	return account, nil
}
