package services

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/apperrors"
	"github.com/prisonfinance/ledger-sync/internal/cache"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/prisonfinance/ledger-sync/internal/repository"
	"github.com/shopspring/decimal"
)

// BalanceCache is an optional read-through cache for computed balances.
type BalanceCache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any)
}

// BalanceService derives balances from posted entries. Nothing is stored.
type BalanceService struct {
	store  repository.Store
	cutoff *MigrationCutoffResolver
	cache  BalanceCache
}

func NewBalanceService(store repository.Store, cutoff *MigrationCutoffResolver, cache BalanceCache) *BalanceService {
	return &BalanceService{store: store, cutoff: cutoff, cache: cache}
}

// AccountBalance returns (total, hold) for any account.
func (b *BalanceService) AccountBalance(ctx context.Context, account *models.Account) (models.Balance, error) {
	if !account.IsPrisoner() {
		total, err := b.generalLedgerBalance(ctx, b.store, account)
		return models.Balance{Total: total, Hold: decimal.Zero}, err
	}

	establishments, err := b.establishmentBalances(ctx, b.store, account)
	if err != nil {
		return models.Balance{}, err
	}
	sum := models.Balance{Total: decimal.Zero, Hold: decimal.Zero}
	for _, e := range establishments {
		sum = sum.Add(models.Balance{Total: e.Total, Hold: e.Hold})
	}
	return sum, nil
}

// PerEstablishmentBalances splits a prisoner account's balance by prison.
func (b *BalanceService) PerEstablishmentBalances(ctx context.Context, account *models.Account) ([]models.EstablishmentBalance, error) {
	return b.establishmentBalances(ctx, b.store, account)
}

// PrisonerAccountBalance looks up a prisoner sub-account and returns its
// aggregate and per-prison balances.
func (b *BalanceService) PrisonerAccountBalance(ctx context.Context, prisonNumber string, accountCode int) (*models.PrisonerAccountBalance, error) {
	if !models.IsPrisonerAccountCode(accountCode) {
		return nil, errors.Wrapf(apperrors.ErrAccountCodeNotFound, "%d is not a prisoner account code", accountCode)
	}
	account, err := b.store.FindPrisonerAccount(ctx, prisonNumber, accountCode)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errors.Wrapf(apperrors.ErrNotFound, "account %d for prisoner %s", accountCode, prisonNumber)
	}

	key := cache.AccountKey(account.ID)
	var cached models.PrisonerAccountBalance
	if b.cache != nil && b.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	establishments, err := b.establishmentBalances(ctx, b.store, account)
	if err != nil {
		return nil, err
	}
	out := &models.PrisonerAccountBalance{
		PrisonNumber:   prisonNumber,
		AccountCode:    accountCode,
		Total:          decimal.Zero,
		Hold:           decimal.Zero,
		Establishments: establishments,
	}
	for _, e := range establishments {
		out.Total = out.Total.Add(e.Total)
		out.Hold = out.Hold.Add(e.Hold)
	}

	if b.cache != nil {
		b.cache.Set(ctx, key, out)
	}
	return out, nil
}

// GeneralLedgerAccountBalance returns the balance of a prison's GL account.
func (b *BalanceService) GeneralLedgerAccountBalance(ctx context.Context, prisonID string, accountCode int) (*models.GeneralLedgerAccountBalance, error) {
	account, err := b.store.FindGeneralLedgerAccount(ctx, prisonID, accountCode)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errors.Wrapf(apperrors.ErrNotFound, "account %d for prison %s", accountCode, prisonID)
	}

	key := cache.AccountKey(account.ID)
	if models.IsPrisonerAccountCode(accountCode) {
		key = cache.MirrorKey(prisonID, accountCode)
	}
	var cached models.GeneralLedgerAccountBalance
	if b.cache != nil && b.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	total, err := b.generalLedgerBalance(ctx, b.store, account)
	if err != nil {
		return nil, err
	}
	out := &models.GeneralLedgerAccountBalance{PrisonID: prisonID, AccountCode: accountCode, Total: total}
	if b.cache != nil {
		b.cache.Set(ctx, key, out)
	}
	return out, nil
}

// contributingEntries returns the prisoner account's entries that survive the
// per-prison migration cutoff, ordered by prison.
func (b *BalanceService) contributingEntries(ctx context.Context, s repository.TransactionStore, account *models.Account) ([]models.PostedEntry, error) {
	entries, err := s.ListPostedEntries(ctx, account.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "list entries for account %s", account.ID)
	}

	byPrison := make(map[string][]models.PostedEntry)
	for _, e := range entries {
		byPrison[e.Prison] = append(byPrison[e.Prison], e)
	}
	prisons := make([]string, 0, len(byPrison))
	for p := range byPrison {
		prisons = append(prisons, p)
	}
	sort.Strings(prisons)

	out := make([]models.PostedEntry, 0, len(entries))
	for _, prison := range prisons {
		p := prison
		cutoff, err := b.cutoff.Latest(ctx, s, account.ID, &p)
		if err != nil {
			return nil, err
		}
		out = append(out, b.cutoff.Contributing(byPrison[prison], cutoff)...)
	}
	return out, nil
}

func (b *BalanceService) establishmentBalances(ctx context.Context, s repository.TransactionStore, account *models.Account) ([]models.EstablishmentBalance, error) {
	entries, err := b.contributingEntries(ctx, s, account)
	if err != nil {
		return nil, err
	}

	out := make([]models.EstablishmentBalance, 0)
	index := make(map[string]int)
	for _, e := range entries {
		i, ok := index[e.Prison]
		if !ok {
			i = len(out)
			index[e.Prison] = i
			out = append(out, models.EstablishmentBalance{PrisonID: e.Prison, Total: decimal.Zero, Hold: decimal.Zero})
		}
		if !models.BidirectionalHoldTypes.Contains(e.TransactionType) {
			out[i].Total = out[i].Total.Add(e.Signed(account.Nature))
		}
		if models.HoldTypes.Contains(e.TransactionType) {
			out[i].Hold = out[i].Hold.Add(e.Signed(models.Debit))
		}
	}
	return out, nil
}

// generalLedgerBalance handles both kinds of GL account. A prisoner-classified
// GL account mirrors its prisoners: the opening batch plus every prisoner entry
// at that code and prison since. Other GL accounts sum their own entries.
func (b *BalanceService) generalLedgerBalance(ctx context.Context, s repository.TransactionStore, account *models.Account) (decimal.Decimal, error) {
	cutoff, err := b.cutoff.Latest(ctx, s, account.ID, nil)
	if err != nil {
		return decimal.Zero, err
	}
	entries, err := s.ListPostedEntries(ctx, account.ID)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "list entries for account %s", account.ID)
	}

	if !models.IsPrisonerAccountCode(account.AccountCode) {
		total := decimal.Zero
		for _, e := range b.cutoff.Contributing(entries, cutoff) {
			total = total.Add(e.Signed(account.Nature))
		}
		return total, nil
	}

	opening := decimal.Zero
	for _, e := range entries {
		if cutoff == nil || e.TransactionCreatedAt.Equal(cutoff.CreatedAt) {
			opening = opening.Add(e.Signed(account.Nature))
		}
	}

	q := repository.NetAmountQuery{
		AccountCode:  account.AccountCode,
		ExcludeTypes: models.MigrationTypes.Slice(),
	}
	if account.PrisonID != nil {
		q.PrisonID = *account.PrisonID
	}
	if cutoff != nil {
		after := cutoff.TransactionDate
		q.After = &after
	}
	net, err := s.NetPrisonerAmount(ctx, q)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "net prisoner amount for %d at %s", q.AccountCode, q.PrisonID)
	}
	if account.Nature == models.Debit {
		net = net.Neg()
	}
	return opening.Add(net), nil
}
