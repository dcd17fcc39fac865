package services

import (
	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/apperrors"
	"github.com/prisonfinance/ledger-sync/internal/models"
)

// LegacyDataNormalizer repairs known defects in legacy offender transactions
// before they are recorded.
type LegacyDataNormalizer struct{}

func NewLegacyDataNormalizer() *LegacyDataNormalizer {
	return &LegacyDataNormalizer{}
}

// Fix returns a corrected copy of req. Second legs of sub-account shuffles
// that arrive without GL entries are dropped. Transfer-in legs without GL
// entries get a synthetic pair: DR the transfer-in clearing account, CR the
// prisoner sub-account named by the leg's label.
func (n *LegacyDataNormalizer) Fix(req *models.SyncOffenderTransactionRequest) (*models.SyncOffenderTransactionRequest, error) {
	fixed := *req
	fixed.OffenderTransactions = make([]models.OffenderTransaction, 0, len(req.OffenderTransactions))

	for _, ot := range req.OffenderTransactions {
		if len(ot.GeneralLedgerEntries) > 0 {
			fixed.OffenderTransactions = append(fixed.OffenderTransactions, ot)
			continue
		}

		switch {
		case ot.EntrySequence == 2 && models.NormalizerSkipTypes.Contains(ot.Type):
			continue
		case ot.Type == models.TypeTransferIn:
			code, ok := models.AccountCodeForSubAccountType(ot.SubAccountType)
			if !ok {
				return nil, errors.Wrapf(apperrors.ErrUnknownSubAccountType,
					"transaction %d entry %d: %q", req.TransactionID, ot.EntrySequence, ot.SubAccountType)
			}
			amount := ot.Amount.Abs()
			ot.GeneralLedgerEntries = []models.GeneralLedgerEntry{
				{EntrySequence: 1, Code: models.TransferInClearingAccountCode, PostingType: models.Debit, Amount: amount},
				{EntrySequence: 2, Code: code, PostingType: models.Credit, Amount: amount},
			}
		}
		fixed.OffenderTransactions = append(fixed.OffenderTransactions, ot)
	}

	return &fixed, nil
}
