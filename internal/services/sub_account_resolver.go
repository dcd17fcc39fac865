package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/apperrors"
	"github.com/prisonfinance/ledger-sync/internal/generalledger"
	"github.com/prisonfinance/ledger-sync/internal/logging"
	"github.com/sirupsen/logrus"
)

// SubAccountResolver maps local account codes to sub-account ids in the
// external general ledger, creating parents and sub-accounts on demand.
type SubAccountResolver struct {
	client generalledger.Client
	log    *logrus.Entry
}

func NewSubAccountResolver(client generalledger.Client) *SubAccountResolver {
	return &SubAccountResolver{client: client, log: logging.Component("sub-account-resolver")}
}

// ResolveSubAccount returns the external sub-account id for accountCode. The
// cache lives for one request and is updated with every account it learns about.
func (r *SubAccountResolver) ResolveSubAccount(ctx context.Context, prisonID, ownerID string, accountCode int, transactionType string, cache *generalledger.AccountCache) (uuid.UUID, error) {
	parentRef, subRef := generalledger.AccountReferences(prisonID, ownerID, accountCode, transactionType)

	parent, ok := cache.Get(parentRef)
	if !ok {
		found, err := r.findOrCreateAccount(ctx, parentRef)
		if err != nil {
			return uuid.Nil, err
		}
		parent = *found
		cache.Put(parentRef, parent)
	}

	if sa, ok := parent.FindSubAccount(subRef); ok {
		return sa.ID, nil
	}

	sa, err := r.findOrCreateSubAccount(ctx, parentRef, parent, subRef)
	if err != nil {
		return uuid.Nil, err
	}
	cache.Put(parentRef, parent.WithSubAccount(*sa))
	return sa.ID, nil
}

func (r *SubAccountResolver) findOrCreateAccount(ctx context.Context, reference string) (*generalledger.Account, error) {
	account, err := r.client.FindAccountByReference(ctx, reference)
	if err != nil {
		return nil, errors.Wrapf(err, "find account %s", reference)
	}
	if account != nil {
		return account, nil
	}

	account, err = r.client.CreateAccount(ctx, reference)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, apperrors.ErrAlreadyExists) {
		return nil, errors.Wrapf(err, "create account %s", reference)
	}

	r.log.WithField("reference", reference).Info("Account created concurrently, re-fetching")
	account, err = r.client.FindAccountByReference(ctx, reference)
	if err != nil {
		return nil, errors.Wrapf(err, "re-fetch account %s", reference)
	}
	if account == nil {
		return nil, &apperrors.RetryAfterConflictError{Resource: "account", Reference: reference}
	}
	return account, nil
}

func (r *SubAccountResolver) findOrCreateSubAccount(ctx context.Context, parentRef string, parent generalledger.Account, reference string) (*generalledger.SubAccount, error) {
	sa, err := r.client.CreateSubAccount(ctx, parent.ID, reference)
	if err == nil {
		return sa, nil
	}
	if !errors.Is(err, apperrors.ErrAlreadyExists) {
		return nil, errors.Wrapf(err, "create sub-account %s/%s", parentRef, reference)
	}

	r.log.WithFields(logrus.Fields{"parent": parentRef, "reference": reference}).Info("Sub-account created concurrently, re-fetching")
	sa, err = r.client.FindSubAccount(ctx, parentRef, reference)
	if err != nil {
		return nil, errors.Wrapf(err, "re-fetch sub-account %s/%s", parentRef, reference)
	}
	if sa == nil {
		return nil, &apperrors.RetryAfterConflictError{Resource: "sub-account", Reference: parentRef + "/" + reference}
	}
	return sa, nil
}
