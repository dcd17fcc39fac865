package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PrisonerBalance is a legacy opening balance for one prisoner sub-account at one prison.
type PrisonerBalance struct {
	PrisonID    string          `json:"prisonId" validate:"required"`
	AccountCode int             `json:"accountCode" validate:"required"`
	Balance     decimal.Decimal `json:"balance"`
	HoldBalance decimal.Decimal `json:"holdBalance"`
	AsOf        time.Time       `json:"asOfTimestamp" validate:"required"`
}

type PrisonerBalancesMigrationRequest struct {
	AccountBalances []PrisonerBalance `json:"accountBalances" validate:"required,min=1,dive"`
}

// GeneralLedgerBalance is a legacy opening balance for one GL account.
type GeneralLedgerBalance struct {
	AccountCode int             `json:"accountCode" validate:"required"`
	Balance     decimal.Decimal `json:"balance"`
	AsOf        time.Time       `json:"asOfTimestamp" validate:"required"`
}

type GeneralLedgerBalancesMigrationRequest struct {
	AccountBalances []GeneralLedgerBalance `json:"accountBalances" validate:"required,min=1,dive"`
}
