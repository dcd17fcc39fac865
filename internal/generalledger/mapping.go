package generalledger

import (
	"fmt"

	"github.com/prisonfinance/ledger-sync/internal/models"
)

// AccountReferences maps a legacy account code to the external parent and
// sub-account references. Prisoner codes live under the prisoner; every other
// code lives under the prison, split by transaction type.
func AccountReferences(prisonID, ownerID string, accountCode int, transactionType string) (parent, sub string) {
	if models.IsPrisonerAccountCode(accountCode) {
		return ownerID, models.SubAccountReference(accountCode)
	}
	return prisonID, fmt.Sprintf("%d:%s", accountCode, transactionType)
}
