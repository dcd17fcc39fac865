package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/prisonfinance/ledger-sync/internal/repository"
)

// MigrationCutoffResolver locates the latest opening balance batch for an
// account. Entries older than the batch are superseded by it.
type MigrationCutoffResolver struct{}

func NewMigrationCutoffResolver() *MigrationCutoffResolver {
	return &MigrationCutoffResolver{}
}

// Latest returns the newest migration batch touching the account, optionally
// at one prison only. A nil result means nothing was migrated and every entry counts.
func (m *MigrationCutoffResolver) Latest(ctx context.Context, s repository.TransactionStore, accountID uuid.UUID, prison *string) (*models.MigrationInfo, error) {
	info, err := s.LatestMigration(ctx, accountID, prison)
	if err != nil {
		return nil, errors.Wrapf(err, "latest migration for account %s", accountID)
	}
	return info, nil
}

// Contributing filters entries down to those that survive the cutoff.
func (m *MigrationCutoffResolver) Contributing(entries []models.PostedEntry, cutoff *models.MigrationInfo) []models.PostedEntry {
	out := make([]models.PostedEntry, 0, len(entries))
	for _, e := range entries {
		if cutoff.Includes(e) {
			out = append(out, e)
		}
	}
	return out
}
