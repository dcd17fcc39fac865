package services

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/apperrors"
	"github.com/prisonfinance/ledger-sync/internal/generalledger"
	"github.com/prisonfinance/ledger-sync/internal/logging"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// GeneralLedgerMirror replays accepted sync requests into the external general
// ledger as sub-account transfers.
type GeneralLedgerMirror struct {
	forwarder *DualWriteForwarder
	resolver  *SubAccountResolver
	client    generalledger.Client
	log       *logrus.Entry
}

func NewGeneralLedgerMirror(forwarder *DualWriteForwarder, resolver *SubAccountResolver, client generalledger.Client) *GeneralLedgerMirror {
	return &GeneralLedgerMirror{
		forwarder: forwarder,
		resolver:  resolver,
		client:    client,
		log:       logging.Component("general-ledger-mirror"),
	}
}

// Mirror forwards req. Offender transactions route by prisoner number, GL
// transactions by prison.
func (m *GeneralLedgerMirror) Mirror(ctx context.Context, req models.SyncRequest) {
	switch r := req.(type) {
	case *models.SyncOffenderTransactionRequest:
		for _, ot := range r.OffenderTransactions {
			posting := mirroredPosting{
				prisonID:    r.CaseloadID,
				ownerID:     ot.OffenderDisplayID,
				txType:      ot.Type,
				description: ot.Description,
				reference:   strconv.FormatInt(r.TransactionID, 10),
				legs:        ot.GeneralLedgerEntries,
				timestamp:   r.TransactionTimestamp,
			}
			m.forward(ctx, "offender-transaction", ot.OffenderDisplayID, posting)
		}
	case *models.SyncGeneralLedgerTransactionRequest:
		posting := mirroredPosting{
			prisonID:    r.CaseloadID,
			txType:      r.TransactionType,
			description: r.Description,
			reference:   strconv.FormatInt(r.TransactionID, 10),
			legs:        r.GeneralLedgerEntries,
			timestamp:   r.TransactionTimestamp,
		}
		m.forward(ctx, "general-ledger-transaction", r.CaseloadID, posting)
	}
}

func (m *GeneralLedgerMirror) forward(ctx context.Context, label, routingKey string, p mirroredPosting) {
	ids, ok := ExecuteIfEnabled(ctx, m.forwarder, label, routingKey, func(ctx context.Context) ([]uuid.UUID, error) {
		ids, err := m.post(ctx, p)
		if apperrors.IsRetryAfterConflict(err) {
			// a concurrent creator has finished by now in the common case
			ids, err = m.post(ctx, p)
		}
		return ids, err
	})
	if ok {
		m.log.WithFields(logrus.Fields{"reference": p.reference, "transfers": len(ids)}).Info("Mirrored to general ledger")
	}
}

func (m *GeneralLedgerMirror) post(ctx context.Context, p mirroredPosting) ([]uuid.UUID, error) {
	cache := generalledger.NewAccountCache()
	transfers := allocate(p.legs)
	ids := make([]uuid.UUID, 0, len(transfers))

	for _, t := range transfers {
		debtor, err := m.resolver.ResolveSubAccount(ctx, p.prisonID, p.ownerID, t.debitCode, p.txType, cache)
		if err != nil {
			return ids, err
		}
		creditor, err := m.resolver.ResolveSubAccount(ctx, p.prisonID, p.ownerID, t.creditCode, p.txType, cache)
		if err != nil {
			return ids, err
		}
		id, err := m.client.PostTransaction(ctx, generalledger.TransferRequest{
			DebtorID:    debtor,
			CreditorID:  creditor,
			Amount:      t.amount,
			Reference:   p.reference,
			Description: p.description,
			Timestamp:   p.timestamp,
		})
		if err != nil {
			return ids, errors.Wrapf(err, "post transfer %d->%d", t.debitCode, t.creditCode)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

type mirroredPosting struct {
	prisonID    string
	ownerID     string
	txType      string
	description string
	reference   string
	legs        []models.GeneralLedgerEntry
	timestamp   time.Time
}

type transfer struct {
	debitCode  int
	creditCode int
	amount     decimal.Decimal
}

// allocate pairs debit legs with credit legs in order, splitting amounts so
// every pair moves a positive sum from one code to another.
func allocate(legs []models.GeneralLedgerEntry) []transfer {
	type remaining struct {
		code   int
		amount decimal.Decimal
	}
	var debits, credits []remaining
	for _, l := range legs {
		r := remaining{code: l.Code, amount: l.Amount.Abs()}
		if r.amount.IsZero() {
			continue
		}
		if l.PostingType == models.Debit {
			debits = append(debits, r)
		} else {
			credits = append(credits, r)
		}
	}

	var out []transfer
	i, j := 0, 0
	for i < len(debits) && j < len(credits) {
		amount := decimal.Min(debits[i].amount, credits[j].amount)
		out = append(out, transfer{debitCode: debits[i].code, creditCode: credits[j].code, amount: amount})
		debits[i].amount = debits[i].amount.Sub(amount)
		credits[j].amount = credits[j].amount.Sub(amount)
		if debits[i].amount.IsZero() {
			i++
		}
		if credits[j].amount.IsZero() {
			j++
		}
	}
	return out
}
