package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/apperrors"
	"github.com/prisonfinance/ledger-sync/internal/logging"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/prisonfinance/ledger-sync/internal/repository"
	"github.com/sirupsen/logrus"
)

// SyncMirror receives every newly created sync request after commit.
type SyncMirror interface {
	Mirror(ctx context.Context, req models.SyncRequest)
}

// SyncService is the idempotent entry point for legacy transactions. A request
// id seen before is PROCESSED; a legacy transaction id seen before with the
// same body is PROCESSED, with a different body UPDATED; anything else CREATED.
type SyncService struct {
	store      repository.Store
	normalizer *LegacyDataNormalizer
	resolver   *AccountResolver
	prisons    *PrisonService
	recorder   *TransactionRecorder
	mirror     SyncMirror
	now        func() time.Time
	log        *logrus.Entry
}

func NewSyncService(
	store repository.Store,
	normalizer *LegacyDataNormalizer,
	resolver *AccountResolver,
	prisons *PrisonService,
	recorder *TransactionRecorder,
	mirror SyncMirror,
) *SyncService {
	return &SyncService{
		store:      store,
		normalizer: normalizer,
		resolver:   resolver,
		prisons:    prisons,
		recorder:   recorder,
		mirror:     mirror,
		now:        func() time.Time { return time.Now().UTC() },
		log:        logging.Component("sync"),
	}
}

type syncOutcome struct {
	response *models.SyncResponse
	recorded []*models.Transaction
	applied  models.SyncRequest
}

// Sync classifies and applies req. A unique violation from a concurrent writer
// is retried exactly once; the retry re-classifies, so it may find the winner's work.
func (s *SyncService) Sync(ctx context.Context, req models.SyncRequest) (*models.SyncResponse, error) {
	entry := s.log.WithFields(logrus.Fields{
		"requestId":     req.GetRequestID(),
		"transactionId": req.GetTransactionID(),
		"caseloadId":    req.GetCaseloadID(),
		"kind":          req.Kind(),
	})

	outcome, err := s.attempt(ctx, req)
	if errors.Is(err, apperrors.ErrUniqueViolation) {
		entry.WithError(err).Warn("Concurrent write detected, retrying sync once")
		outcome, err = s.attempt(ctx, req)
	}
	if err != nil {
		entry.WithError(err).Error("Failed to sync transaction")
		return nil, err
	}

	s.recorder.Notify(ctx, outcome.recorded...)
	if outcome.response.Action == models.SyncCreated && s.mirror != nil {
		s.mirror.Mirror(ctx, outcome.applied)
	}

	entry.WithFields(logrus.Fields{
		"action":                    outcome.response.Action,
		"synchronizedTransactionId": outcome.response.SynchronizedTransactionID,
	}).Info("Transaction synced")
	return outcome.response, nil
}

func (s *SyncService) attempt(ctx context.Context, req models.SyncRequest) (*syncOutcome, error) {
	var outcome *syncOutcome
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		seen, err := tx.FindPayloadByRequestID(ctx, req.GetRequestID())
		if err != nil {
			return err
		}
		if seen != nil {
			outcome = &syncOutcome{response: s.response(req, seen.SynchronizedTransactionID, models.SyncProcessed)}
			return nil
		}

		prior, err := tx.FindLatestPayloadByLegacyTransactionID(ctx, req.GetTransactionID())
		if err != nil {
			return err
		}

		if prior == nil {
			syncID := uuid.New()
			applied, recorded, err := s.apply(ctx, tx, req, syncID)
			if err != nil {
				return err
			}
			if err := s.capture(ctx, tx, req, syncID); err != nil {
				return err
			}
			outcome = &syncOutcome{response: s.response(req, syncID, models.SyncCreated), recorded: recorded, applied: applied}
			return nil
		}

		same, err := sameBody(prior, req)
		if err != nil {
			return err
		}
		if same {
			outcome = &syncOutcome{response: s.response(req, prior.SynchronizedTransactionID, models.SyncProcessed)}
			return nil
		}

		syncID := prior.SynchronizedTransactionID
		reversals, err := s.reverseLive(ctx, tx, syncID)
		if err != nil {
			return err
		}
		applied, recorded, err := s.apply(ctx, tx, req, syncID)
		if err != nil {
			return err
		}
		if err := s.capture(ctx, tx, req, syncID); err != nil {
			return err
		}
		outcome = &syncOutcome{
			response: s.response(req, syncID, models.SyncUpdated),
			recorded: append(reversals, recorded...),
			applied:  applied,
		}
		return nil
	})
	return outcome, err
}

// apply records req under syncID and returns the request as actually applied.
func (s *SyncService) apply(ctx context.Context, tx repository.Store, req models.SyncRequest, syncID uuid.UUID) (models.SyncRequest, []*models.Transaction, error) {
	if _, err := s.prisons.Ensure(ctx, tx, req.GetCaseloadID()); err != nil {
		return nil, nil, err
	}

	switch r := req.(type) {
	case *models.SyncOffenderTransactionRequest:
		return s.applyOffenderTransactions(ctx, tx, r, syncID)
	case *models.SyncGeneralLedgerTransactionRequest:
		recorded, err := s.applyGeneralLedgerTransaction(ctx, tx, r, syncID)
		return r, recorded, err
	default:
		return nil, nil, errors.Wrapf(apperrors.ErrInvalidRequest, "unsupported sync request %T", req)
	}
}

func (s *SyncService) applyOffenderTransactions(ctx context.Context, tx repository.Store, req *models.SyncOffenderTransactionRequest, syncID uuid.UUID) (models.SyncRequest, []*models.Transaction, error) {
	fixed, err := s.normalizer.Fix(req)
	if err != nil {
		return nil, nil, err
	}

	legacyID := req.TransactionID
	recorded := make([]*models.Transaction, 0, len(fixed.OffenderTransactions))
	for _, ot := range fixed.OffenderTransactions {
		entries := make([]models.EntryInput, 0, len(ot.GeneralLedgerEntries))
		for _, gl := range ot.GeneralLedgerEntries {
			account, err := s.resolver.Resolve(ctx, tx, gl.Code, ot.OffenderDisplayID, req.CaseloadID)
			if err != nil {
				return nil, nil, err
			}
			entries = append(entries, models.EntryInput{AccountID: account.ID, Amount: gl.Amount, EntryType: gl.PostingType})
		}

		t, err := s.recorder.Record(ctx, tx, RecordRequest{
			Type:                      ot.Type,
			Description:               ot.Description,
			Entries:                   entries,
			Date:                      req.TransactionTimestamp,
			LegacyTransactionID:       &legacyID,
			SynchronizedTransactionID: &syncID,
			Prison:                    req.CaseloadID,
		})
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "offender transaction %d entry %d", req.TransactionID, ot.EntrySequence)
		}
		recorded = append(recorded, t)
	}
	return fixed, recorded, nil
}

func (s *SyncService) applyGeneralLedgerTransaction(ctx context.Context, tx repository.Store, req *models.SyncGeneralLedgerTransactionRequest, syncID uuid.UUID) ([]*models.Transaction, error) {
	entries := make([]models.EntryInput, 0, len(req.GeneralLedgerEntries))
	for _, gl := range req.GeneralLedgerEntries {
		account, err := s.resolver.ResolveGeneralLedgerAccount(ctx, tx, req.CaseloadID, gl.Code)
		if err != nil {
			return nil, err
		}
		entries = append(entries, models.EntryInput{AccountID: account.ID, Amount: gl.Amount, EntryType: gl.PostingType})
	}

	legacyID := req.TransactionID
	t, err := s.recorder.Record(ctx, tx, RecordRequest{
		Type:                      req.TransactionType,
		Description:               req.Description,
		Entries:                   entries,
		Date:                      req.TransactionTimestamp,
		LegacyTransactionID:       &legacyID,
		SynchronizedTransactionID: &syncID,
		Prison:                    req.CaseloadID,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "general ledger transaction %d", req.TransactionID)
	}
	return []*models.Transaction{t}, nil
}

// reverseLive posts a mirror image of every live transaction under syncID,
// dated like the original so it nets out inside the same cutoff window.
func (s *SyncService) reverseLive(ctx context.Context, tx repository.Store, syncID uuid.UUID) ([]*models.Transaction, error) {
	live, err := tx.FindLiveTransactionsBySyncID(ctx, syncID)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Transaction, 0, len(live))
	for _, original := range live {
		id := original.ID
		t, err := s.recorder.Record(ctx, tx, RecordRequest{
			Type:                      original.Type,
			Description:               fmt.Sprintf("REVERSE TRANSACTION %s: %s", original.ID, original.Description),
			Entries:                   flipped(original.Entries),
			Date:                      original.Date,
			LegacyTransactionID:       original.LegacyTransactionID,
			SynchronizedTransactionID: &syncID,
			Prison:                    original.Prison,
			ReversesTransactionID:     &id,
		})
		if err != nil {
			return nil, errors.WithMessagef(err, "reverse transaction %s", original.ID)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *SyncService) capture(ctx context.Context, tx repository.Store, req models.SyncRequest, syncID uuid.UUID) error {
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "encode sync payload")
	}
	return tx.InsertPayload(ctx, &models.SyncPayload{
		ID:                        uuid.New(),
		RequestID:                 req.GetRequestID(),
		LegacyTransactionID:       req.GetTransactionID(),
		SynchronizedTransactionID: syncID,
		RequestKind:               req.Kind(),
		Body:                      body,
		Timestamp:                 s.now(),
	})
}

func (s *SyncService) response(req models.SyncRequest, syncID uuid.UUID, action models.SyncAction) *models.SyncResponse {
	return &models.SyncResponse{RequestID: req.GetRequestID(), SynchronizedTransactionID: syncID, Action: action}
}

// sameBody compares the stored payload with req, ignoring the request id.
func sameBody(prior *models.SyncPayload, req models.SyncRequest) (bool, error) {
	if prior.RequestKind != req.Kind() {
		return false, nil
	}
	stored, err := DecodeSyncRequest(prior.RequestKind, prior.Body)
	if err != nil {
		return false, errors.Wrapf(err, "decode stored payload %s", prior.ID)
	}
	a, err := stored.Canonical()
	if err != nil {
		return false, err
	}
	b, err := req.Canonical()
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, b), nil
}

// DecodeSyncRequest parses a body of the given kind.
func DecodeSyncRequest(kind models.RequestKind, body []byte) (models.SyncRequest, error) {
	var req models.SyncRequest
	switch kind {
	case models.KindOffenderTransaction:
		req = &models.SyncOffenderTransactionRequest{}
	case models.KindGeneralLedgerTransaction:
		req = &models.SyncGeneralLedgerTransactionRequest{}
	default:
		return nil, errors.Wrapf(apperrors.ErrInvalidRequest, "unknown request kind %q", kind)
	}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, errors.Wrap(apperrors.ErrInvalidRequest, err.Error())
	}
	return req, nil
}

func flipped(entries []models.TransactionEntry) []models.EntryInput {
	out := make([]models.EntryInput, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.EntryInput{AccountID: e.AccountID, Amount: e.Amount, EntryType: e.EntryType.Flip()})
	}
	return out
}
