package generalledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is a parent account in the external ledger.
type Account struct {
	ID          uuid.UUID    `json:"id"`
	Reference   string       `json:"reference"`
	CreatedAt   time.Time    `json:"createdAt"`
	SubAccounts []SubAccount `json:"subAccounts"`
}

type SubAccount struct {
	ID              uuid.UUID `json:"id"`
	Reference       string    `json:"reference"`
	ParentAccountID uuid.UUID `json:"parentAccountId"`
}

// FindSubAccount looks up a sub-account by reference.
func (a Account) FindSubAccount(reference string) (SubAccount, bool) {
	for _, sa := range a.SubAccounts {
		if sa.Reference == reference {
			return sa, true
		}
	}
	return SubAccount{}, false
}

// WithSubAccount returns a copy of a that also holds sa. a is not modified.
func (a Account) WithSubAccount(sa SubAccount) Account {
	subs := make([]SubAccount, 0, len(a.SubAccounts)+1)
	subs = append(subs, a.SubAccounts...)
	a.SubAccounts = append(subs, sa)
	return a
}

// TransferRequest moves Amount from the debtor to the creditor sub-account.
type TransferRequest struct {
	DebtorID    uuid.UUID       `json:"debtorSubAccountId"`
	CreditorID  uuid.UUID       `json:"creditorSubAccountId"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
}

// AccountCache holds the last known snapshot of each parent account for the
// lifetime of one request. Snapshots are replaced, never mutated.
type AccountCache struct {
	entries map[string]Account
}

func NewAccountCache() *AccountCache {
	return &AccountCache{entries: make(map[string]Account)}
}

func (c *AccountCache) Get(reference string) (Account, bool) {
	a, ok := c.entries[reference]
	if !ok {
		return Account{}, false
	}
	return a.clone(), true
}

// Put stores a snapshot of a under reference, which is the locally mapped
// parent reference and not necessarily the one the remote echoes back.
func (c *AccountCache) Put(reference string, a Account) {
	c.entries[reference] = a.clone()
}

// clone returns a copy that shares no slice with a.
func (a Account) clone() Account {
	a.SubAccounts = append([]SubAccount(nil), a.SubAccounts...)
	return a
}
