package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/apperrors"
	"github.com/prisonfinance/ledger-sync/internal/logging"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/prisonfinance/ledger-sync/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TransactionObserver is told about every transaction once its unit of work commits.
type TransactionObserver interface {
	TransactionRecorded(ctx context.Context, tx *models.Transaction)
}

// RecordRequest describes a transaction to persist.
type RecordRequest struct {
	Type                      string
	Description               string
	Entries                   []models.EntryInput
	Date                      time.Time
	CreatedAt                 time.Time
	LegacyTransactionID       *int64
	SynchronizedTransactionID *uuid.UUID
	Prison                    string
	ReversesTransactionID     *uuid.UUID
}

// TransactionRecorder validates and persists balanced transactions.
type TransactionRecorder struct {
	observers []TransactionObserver
	now       func() time.Time
	log       *logrus.Entry
}

func NewTransactionRecorder(observers ...TransactionObserver) *TransactionRecorder {
	return &TransactionRecorder{
		observers: observers,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logging.Component("recorder"),
	}
}

// Record checks the double-entry invariant and writes the transaction with its
// entries through s. Amounts are stored as magnitudes.
func (r *TransactionRecorder) Record(ctx context.Context, s repository.TransactionStore, req RecordRequest) (*models.Transaction, error) {
	if err := validateEntries(req.Entries); err != nil {
		return nil, errors.WithMessagef(err, "record %s transaction", req.Type)
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	tx := &models.Transaction{
		ID:                        uuid.New(),
		Type:                      req.Type,
		Description:               req.Description,
		Date:                      req.Date,
		CreatedAt:                 createdAt,
		LegacyTransactionID:       req.LegacyTransactionID,
		SynchronizedTransactionID: req.SynchronizedTransactionID,
		Prison:                    req.Prison,
		ReversesTransactionID:     req.ReversesTransactionID,
	}
	tx.Entries = make([]models.TransactionEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		tx.Entries = append(tx.Entries, models.TransactionEntry{
			ID:            uuid.New(),
			TransactionID: tx.ID,
			AccountID:     e.AccountID,
			Amount:        e.Amount.Abs(),
			EntryType:     e.EntryType,
		})
	}

	if err := s.InsertTransaction(ctx, tx); err != nil {
		return nil, errors.Wrap(err, "insert transaction")
	}
	if err := s.InsertEntries(ctx, tx.Entries); err != nil {
		return nil, errors.Wrap(err, "insert transaction entries")
	}
	return tx, nil
}

// Notify hands committed transactions to every observer.
func (r *TransactionRecorder) Notify(ctx context.Context, txs ...*models.Transaction) {
	for _, tx := range txs {
		r.log.WithFields(logrus.Fields{
			"transactionId": tx.ID,
			"type":          tx.Type,
			"prison":        tx.Prison,
			"entries":       len(tx.Entries),
		}).Debug("Transaction recorded")

		for _, o := range r.observers {
			o.TransactionRecorded(ctx, tx)
		}
	}
}

func validateEntries(entries []models.EntryInput) error {
	if len(entries) == 0 {
		return apperrors.ErrNoEntries
	}

	debits, credits := decimal.Zero, decimal.Zero
	for _, e := range entries {
		if !e.Amount.Equal(e.Amount.Round(models.AmountScale)) {
			return errors.Wrapf(apperrors.ErrInvalidRequest, "amount %s has more than %d decimal places", e.Amount, models.AmountScale)
		}
		switch e.EntryType {
		case models.Debit:
			debits = debits.Add(e.Amount.Abs())
		case models.Credit:
			credits = credits.Add(e.Amount.Abs())
		default:
			return errors.Wrapf(apperrors.ErrInvalidRequest, "posting type %q", e.EntryType)
		}
	}

	if !debits.Equal(credits) {
		return &apperrors.UnbalancedError{Debits: debits.String(), Credits: credits.String()}
	}
	return nil
}
