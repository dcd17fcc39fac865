package models

import "github.com/shopspring/decimal"

// Balance is an account's available total and amount on hold.
type Balance struct {
	Total decimal.Decimal `json:"total"`
	Hold  decimal.Decimal `json:"hold"`
}

// Add returns the element-wise sum.
func (b Balance) Add(o Balance) Balance {
	return Balance{Total: b.Total.Add(o.Total), Hold: b.Hold.Add(o.Hold)}
}

// EstablishmentBalance is the share of a balance held at one prison.
type EstablishmentBalance struct {
	PrisonID string          `json:"prisonId"`
	Total    decimal.Decimal `json:"total"`
	Hold     decimal.Decimal `json:"hold"`
}

// PrisonerAccountBalance is the aggregate plus per-prison view of a prisoner sub-account.
type PrisonerAccountBalance struct {
	PrisonNumber   string                 `json:"prisonNumber"`
	AccountCode    int                    `json:"accountCode"`
	Total          decimal.Decimal        `json:"total"`
	Hold           decimal.Decimal        `json:"hold"`
	Establishments []EstablishmentBalance `json:"establishments"`
}

// GeneralLedgerAccountBalance is the balance of one GL account at a prison.
type GeneralLedgerAccountBalance struct {
	PrisonID    string          `json:"prisonId"`
	AccountCode int             `json:"accountCode"`
	Total       decimal.Decimal `json:"total"`
}
