package models

// Legacy account codes.
const (
	CashAccountCode    = 2101
	SpendsAccountCode  = 2102
	SavingsAccountCode = 2103

	HoldsAccountCode              = 2150
	TransferInClearingAccountCode = 2199
	MigrationClearingAccountCode  = 9999
)

// CoreGeneralLedgerAccountCodes are created for every new prison.
var CoreGeneralLedgerAccountCodes = []int{CashAccountCode, SpendsAccountCode, SavingsAccountCode}

// Legacy sub-account labels carried on offender transactions.
const (
	SubAccountRegular = "REG"
	SubAccountSpends  = "SPND"
	SubAccountSavings = "SAV"
)

var subAccountCodes = map[string]int{
	SubAccountRegular: CashAccountCode,
	SubAccountSpends:  SpendsAccountCode,
	SubAccountSavings: SavingsAccountCode,
}

// AccountCodeForSubAccountType maps a legacy sub-account label to its account code.
func AccountCodeForSubAccountType(label string) (int, bool) {
	code, ok := subAccountCodes[label]
	return code, ok
}

// IsPrisonerAccountCode reports whether code is one of a prisoner's own sub-accounts.
func IsPrisonerAccountCode(code int) bool {
	switch code {
	case CashAccountCode, SpendsAccountCode, SavingsAccountCode:
		return true
	}
	return false
}

// SubAccountReference is the external ledger key for a prisoner sub-account.
func SubAccountReference(code int) string {
	switch code {
	case CashAccountCode:
		return "CASH"
	case SpendsAccountCode:
		return "SPENDS"
	case SavingsAccountCode:
		return "SAVINGS"
	}
	return ""
}

// SubAccountName is the human label stored on the account row.
func SubAccountName(code int) string {
	switch code {
	case CashAccountCode:
		return "Cash"
	case SpendsAccountCode:
		return "Spends"
	case SavingsAccountCode:
		return "Savings"
	case HoldsAccountCode:
		return "Holds"
	case TransferInClearingAccountCode:
		return "Transfer In Clearing"
	case MigrationClearingAccountCode:
		return "Migration Clearing"
	}
	return "General Ledger"
}

// NatureOf returns the side that increases an account with this code.
// Codes below 2000 are assets; everything else is a liability or income.
func NatureOf(code int) PostingType {
	if code < 2000 {
		return Debit
	}
	return Credit
}
