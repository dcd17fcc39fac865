package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/prisonfinance/ledger-sync/internal/repository"
)

// PrisonService bootstraps establishments on first sight.
type PrisonService struct {
	resolver *AccountResolver
}

func NewPrisonService(resolver *AccountResolver) *PrisonService {
	return &PrisonService{resolver: resolver}
}

// Ensure returns the prison with the given code, creating it together with
// its core GL accounts when it is new.
func (p *PrisonService) Ensure(ctx context.Context, s repository.Store, code string) (*models.Prison, error) {
	prison, err := s.FindPrison(ctx, code)
	if err != nil {
		return nil, err
	}
	if prison != nil {
		return prison, nil
	}

	prison = &models.Prison{ID: uuid.New(), Code: code, CreatedAt: time.Now().UTC()}
	if err := s.CreatePrison(ctx, prison); err != nil {
		return nil, errors.Wrapf(err, "create prison %s", code)
	}
	for _, accountCode := range models.CoreGeneralLedgerAccountCodes {
		if _, err := p.resolver.ResolveGeneralLedgerAccount(ctx, s, code, accountCode); err != nil {
			return nil, err
		}
	}
	return prison, nil
}
