package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionEntry_Signed(t *testing.T) {
	amount := decimal.RequireFromString("12.50")

	credit := TransactionEntry{Amount: amount, EntryType: Credit}
	debit := TransactionEntry{Amount: amount, EntryType: Debit}

	assert.True(t, credit.Signed(Credit).Equal(amount))
	assert.True(t, debit.Signed(Credit).Equal(amount.Neg()))
	assert.True(t, debit.Signed(Debit).Equal(amount))
}

func TestMigrationInfo_Includes(t *testing.T) {
	batch := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	cutoff := time.Date(2025, 2, 28, 23, 59, 0, 0, time.UTC)
	info := &MigrationInfo{CreatedAt: batch, TransactionDate: cutoff}

	t.Run("migration batch entry", func(t *testing.T) {
		e := PostedEntry{TransactionCreatedAt: batch, TransactionDate: cutoff}
		assert.True(t, info.Includes(e))
	})

	t.Run("pre migration entry", func(t *testing.T) {
		e := PostedEntry{TransactionCreatedAt: batch.Add(-time.Hour), TransactionDate: cutoff.Add(-time.Hour)}
		assert.False(t, info.Includes(e))
	})

	t.Run("entry at the cutoff instant is excluded", func(t *testing.T) {
		e := PostedEntry{TransactionCreatedAt: batch.Add(time.Hour), TransactionDate: cutoff}
		assert.False(t, info.Includes(e))
	})

	t.Run("post migration entry", func(t *testing.T) {
		e := PostedEntry{TransactionCreatedAt: batch.Add(time.Hour), TransactionDate: cutoff.Add(time.Second)}
		assert.True(t, info.Includes(e))
	})

	t.Run("no migration counts everything", func(t *testing.T) {
		var none *MigrationInfo
		assert.True(t, none.Includes(PostedEntry{}))
	})
}

func TestMergeType(t *testing.T) {
	assert.Equal(t, TypeTransfer, MergeType(TypeOpeningBalance))
	assert.Equal(t, TypeHoldMergeTransfer, MergeType(TypeOpeningHoldBalance))
	assert.Equal(t, "CANT", MergeType("CANT"))
	assert.False(t, MigrationTypes.Contains(MergeType(TypeOpeningHoldBalance)))
	assert.True(t, HoldTypes.Contains(MergeType(TypeOpeningHoldBalance)))
}

func TestTypeSet(t *testing.T) {
	s := NewTypeSet("B", "A").Union(NewTypeSet("C"))
	assert.Equal(t, []string{"A", "B", "C"}, s.Slice())
	assert.True(t, HoldTypes.Contains(TypeHoldAllocation))
	assert.True(t, HoldTypes.Contains(TypeHoldRelease))
	assert.False(t, HoldTypes.Contains(TypeOpeningBalance))
}

func TestAccountCodes(t *testing.T) {
	code, ok := AccountCodeForSubAccountType(SubAccountSpends)
	assert.True(t, ok)
	assert.Equal(t, SpendsAccountCode, code)

	_, ok = AccountCodeForSubAccountType("XYZ")
	assert.False(t, ok)

	assert.True(t, IsPrisonerAccountCode(SavingsAccountCode))
	assert.False(t, IsPrisonerAccountCode(HoldsAccountCode))
	assert.Equal(t, Credit, NatureOf(SpendsAccountCode))
	assert.Equal(t, Debit, NatureOf(1501))
	assert.Equal(t, "Spends", NewPrisonerAccount("A1234BC", SpendsAccountCode).SubAccountType)
}

func TestCanonical_IgnoresRequestID(t *testing.T) {
	ts := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)
	base := SyncOffenderTransactionRequest{
		TransactionID:        19228028,
		RequestID:            uuid.New(),
		CaseloadID:           "MDI",
		TransactionTimestamp: ts,
		OffenderTransactions: []OffenderTransaction{{
			EntrySequence:     1,
			OffenderDisplayID: "A1234BC",
			SubAccountType:    SubAccountSpends,
			PostingType:       Credit,
			Type:              "CANT",
			Amount:            decimal.RequireFromString("50.00"),
		}},
	}
	other := base
	other.RequestID = uuid.New()
	other.TransactionTimestamp = ts.In(time.FixedZone("BST", 3600))

	a, err := base.Canonical()
	require.NoError(t, err)
	b, err := other.Canonical()
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))

	changed := base
	changed.OffenderTransactions = []OffenderTransaction{base.OffenderTransactions[0]}
	changed.OffenderTransactions[0].Amount = decimal.RequireFromString("51.00")
	c, err := changed.Canonical()
	require.NoError(t, err)
	assert.NotEqual(t, string(a), string(c))
}
