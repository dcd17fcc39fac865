// Package memory is an in-process repository.Store. It enforces the same
// uniqueness rules as the Postgres schema and serialises units of work, so it
// is suitable for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/apperrors"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/prisonfinance/ledger-sync/internal/repository"
	"github.com/shopspring/decimal"
)

type accountKey struct {
	kind  models.OwnerKind
	owner string
	code  int
}

type state struct {
	accounts     map[uuid.UUID]models.Account
	accountIndex map[accountKey]uuid.UUID
	prisons      map[string]models.Prison
	transactions map[uuid.UUID]models.Transaction
	txOrder      []uuid.UUID
	entries      map[uuid.UUID][]models.TransactionEntry // by transaction
	byAccount    map[uuid.UUID][]models.TransactionEntry
	payloads     []models.SyncPayload
}

func newState() *state {
	return &state{
		accounts:     map[uuid.UUID]models.Account{},
		accountIndex: map[accountKey]uuid.UUID{},
		prisons:      map[string]models.Prison{},
		transactions: map[uuid.UUID]models.Transaction{},
		entries:      map[uuid.UUID][]models.TransactionEntry{},
		byAccount:    map[uuid.UUID][]models.TransactionEntry{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.accountIndex {
		c.accountIndex[k] = v
	}
	for k, v := range s.prisons {
		c.prisons[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	c.txOrder = append([]uuid.UUID(nil), s.txOrder...)
	for k, v := range s.entries {
		c.entries[k] = append([]models.TransactionEntry(nil), v...)
	}
	for k, v := range s.byAccount {
		c.byAccount[k] = append([]models.TransactionEntry(nil), v...)
	}
	c.payloads = append([]models.SyncPayload(nil), s.payloads...)
	return c
}

// Store implements repository.Store in memory.
type Store struct {
	txMu *sync.Mutex
	mu   *sync.RWMutex
	data **state
	inTx bool

	// BeforeCreateAccount, when set, runs before every account insert and can
	// inject a failure.
	BeforeCreateAccount func(account *models.Account) error
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	data := newState()
	return &Store{txMu: &sync.Mutex{}, mu: &sync.RWMutex{}, data: &data}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, s repository.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := (*s.data).clone()
	s.mu.RUnlock()

	scoped := *s
	scoped.inTx = true
	if err := fn(ctx, &scoped); err != nil {
		s.mu.Lock()
		*s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func keyOf(a *models.Account) accountKey {
	if a.Kind == models.OwnerPrisoner {
		return accountKey{kind: a.Kind, owner: deref(a.PrisonNumber), code: a.AccountCode}
	}
	return accountKey{kind: a.Kind, owner: deref(a.PrisonID), code: a.AccountCode}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Store) findByKey(k accountKey) *models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := (*s.data).accountIndex[k]
	if !ok {
		return nil
	}
	a := (*s.data).accounts[id]
	return &a
}

func (s *Store) FindPrisonerAccount(_ context.Context, prisonNumber string, accountCode int) (*models.Account, error) {
	return s.findByKey(accountKey{kind: models.OwnerPrisoner, owner: prisonNumber, code: accountCode}), nil
}

func (s *Store) FindGeneralLedgerAccount(_ context.Context, prisonID string, accountCode int) (*models.Account, error) {
	return s.findByKey(accountKey{kind: models.OwnerGeneralLedger, owner: prisonID, code: accountCode}), nil
}

func (s *Store) FindAccountByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := (*s.data).accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) FindAccountsByPrisonNumber(_ context.Context, prisonNumber string) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Account
	for _, a := range (*s.data).accounts {
		if a.Kind == models.OwnerPrisoner && deref(a.PrisonNumber) == prisonNumber {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountCode < out[j].AccountCode })
	return out, nil
}

func (s *Store) CreateAccount(_ context.Context, a *models.Account) error {
	if s.BeforeCreateAccount != nil {
		if err := s.BeforeCreateAccount(a); err != nil {
			return err
		}
	}
	if a.Kind == models.OwnerPrisoner && a.PrisonNumber == nil {
		return errors.New("create account: prisoner account without prison number")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d := *s.data
	k := keyOf(a)
	if _, exists := d.accountIndex[k]; exists {
		return errors.Wrapf(apperrors.ErrUniqueViolation, "create account: %s/%s/%d", k.kind, k.owner, k.code)
	}
	if _, exists := d.accounts[a.ID]; exists {
		return errors.Wrap(apperrors.ErrUniqueViolation, "create account: duplicate id")
	}
	d.accounts[a.ID] = *a
	d.accountIndex[k] = a.ID
	return nil
}

func (s *Store) FindPrison(_ context.Context, code string) (*models.Prison, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := (*s.data).prisons[code]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) CreatePrison(_ context.Context, p *models.Prison) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := *s.data
	if _, exists := d.prisons[p.Code]; exists {
		return errors.Wrapf(apperrors.ErrUniqueViolation, "create prison: %s", p.Code)
	}
	d.prisons[p.Code] = *p
	return nil
}

func (s *Store) InsertTransaction(_ context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := *s.data
	if _, exists := d.transactions[t.ID]; exists {
		return errors.Wrap(apperrors.ErrUniqueViolation, "insert transaction: duplicate id")
	}
	stored := *t
	stored.Entries = nil
	d.transactions[t.ID] = stored
	d.txOrder = append(d.txOrder, t.ID)
	return nil
}

func (s *Store) InsertEntries(_ context.Context, entries []models.TransactionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := *s.data
	for _, e := range entries {
		if _, ok := d.transactions[e.TransactionID]; !ok {
			return errors.Errorf("insert entries: unknown transaction %s", e.TransactionID)
		}
		if _, ok := d.accounts[e.AccountID]; !ok {
			return errors.Errorf("insert entries: unknown account %s", e.AccountID)
		}
		d.entries[e.TransactionID] = append(d.entries[e.TransactionID], e)
		d.byAccount[e.AccountID] = append(d.byAccount[e.AccountID], e)
	}
	return nil
}

func (s *Store) FindTransaction(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := (*s.data).transactions[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) FindTransactionEntries(_ context.Context, transactionID uuid.UUID) ([]models.TransactionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.TransactionEntry(nil), (*s.data).entries[transactionID]...), nil
}

func (s *Store) collect(match func(d *state, t models.Transaction) bool) []models.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := *s.data
	var out []models.Transaction
	for _, id := range d.txOrder {
		t := d.transactions[id]
		if match(d, t) {
			t.Entries = append([]models.TransactionEntry(nil), d.entries[id]...)
			out = append(out, t)
		}
	}
	return out
}

func sameSyncID(t models.Transaction, syncID uuid.UUID) bool {
	return t.SynchronizedTransactionID != nil && *t.SynchronizedTransactionID == syncID
}

func (s *Store) FindTransactionsBySyncID(_ context.Context, syncID uuid.UUID) ([]models.Transaction, error) {
	return s.collect(func(_ *state, t models.Transaction) bool { return sameSyncID(t, syncID) }), nil
}

func (s *Store) FindLiveTransactionsBySyncID(_ context.Context, syncID uuid.UUID) ([]models.Transaction, error) {
	return s.collect(func(d *state, t models.Transaction) bool {
		if !sameSyncID(t, syncID) || t.ReversesTransactionID != nil {
			return false
		}
		for _, other := range d.transactions {
			if other.ReversesTransactionID != nil && *other.ReversesTransactionID == t.ID {
				return false
			}
		}
		return true
	}), nil
}

func (s *Store) ListPostedEntries(_ context.Context, accountID uuid.UUID) ([]models.PostedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := *s.data
	var out []models.PostedEntry
	for _, e := range d.byAccount[accountID] {
		t := d.transactions[e.TransactionID]
		out = append(out, models.PostedEntry{
			TransactionEntry:     e,
			TransactionType:      t.Type,
			TransactionDate:      t.Date,
			TransactionCreatedAt: t.CreatedAt,
			Prison:               t.Prison,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].TransactionDate.Before(out[j].TransactionDate)
		}
		return out[i].TransactionCreatedAt.Before(out[j].TransactionCreatedAt)
	})
	return out, nil
}

func (s *Store) LatestMigration(_ context.Context, accountID uuid.UUID, prison *string) (*models.MigrationInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := *s.data
	var latest *models.MigrationInfo
	for _, e := range d.byAccount[accountID] {
		t := d.transactions[e.TransactionID]
		if !models.MigrationTypes.Contains(t.Type) {
			continue
		}
		if prison != nil && t.Prison != *prison {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) ||
			(t.CreatedAt.Equal(latest.CreatedAt) && t.Date.After(latest.TransactionDate)) {
			latest = &models.MigrationInfo{CreatedAt: t.CreatedAt, TransactionDate: t.Date}
		}
	}
	return latest, nil
}

func (s *Store) NetPrisonerAmount(_ context.Context, q repository.NetAmountQuery) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := *s.data
	exclude := models.NewTypeSet(q.ExcludeTypes...)
	net := decimal.Zero
	for accountID, entries := range d.byAccount {
		a := d.accounts[accountID]
		if a.Kind != models.OwnerPrisoner || a.AccountCode != q.AccountCode {
			continue
		}
		for _, e := range entries {
			t := d.transactions[e.TransactionID]
			if t.Prison != q.PrisonID || exclude.Contains(t.Type) {
				continue
			}
			if q.After != nil && !t.Date.After(*q.After) {
				continue
			}
			net = net.Add(e.Signed(models.Credit))
		}
	}
	return net, nil
}

func (s *Store) FindPayloadByRequestID(_ context.Context, requestID uuid.UUID) (*models.SyncPayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range (*s.data).payloads {
		if p.RequestID == requestID {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) FindLatestPayloadByLegacyTransactionID(_ context.Context, legacyID int64) (*models.SyncPayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.SyncPayload
	for _, p := range (*s.data).payloads {
		if p.LegacyTransactionID != legacyID {
			continue
		}
		if latest == nil || !p.Timestamp.Before(latest.Timestamp) {
			found := p
			latest = &found
		}
	}
	return latest, nil
}

func (s *Store) InsertPayload(_ context.Context, p *models.SyncPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := *s.data
	for _, existing := range d.payloads {
		if existing.RequestID == p.RequestID {
			return errors.Wrap(apperrors.ErrUniqueViolation, "insert payload: duplicate request id")
		}
	}
	d.payloads = append(d.payloads, *p)
	return nil
}

// Counts reports row totals, for assertions in tests.
func (s *Store) Counts() (accounts, transactions, payloads int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := *s.data
	return len(d.accounts), len(d.transactions), len(d.payloads)
}
