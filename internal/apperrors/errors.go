package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors, match with errors.Is.
var (
	// Validation failures. Fatal for the current request, never retried.
	ErrUnbalancedTransaction = errors.New("unbalanced transaction")
	ErrNoEntries             = errors.New("transaction has no entries")
	ErrUnknownSubAccountType = errors.New("unknown sub-account type")
	ErrAccountCodeNotFound   = errors.New("account code not found")
	ErrInvalidRequest        = errors.New("invalid request")

	// ErrUniqueViolation is a transient write conflict raised by the store
	// when two writers race to create the same row.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrAccountNotFound means an entry references an account that no longer resolves.
	ErrAccountNotFound = errors.New("account not found")

	ErrPrisonerNotFound = errors.New("prisoner not found")
	ErrNotFound         = errors.New("not found")

	// ErrAlreadyExists is the external ledger's 409 answer to a create.
	ErrAlreadyExists = errors.New("already exists")
)

// Kind classifies an error for the boundary layer.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindIntegrity  Kind = "integrity"
	KindInternal   Kind = "internal"
)

// KindOf returns the taxonomy bucket of err.
func KindOf(err error) Kind {
	var retry *RetryAfterConflictError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnbalancedTransaction),
		errors.Is(err, ErrNoEntries),
		errors.Is(err, ErrUnknownSubAccountType),
		errors.Is(err, ErrAccountCodeNotFound),
		errors.Is(err, ErrInvalidRequest):
		return KindValidation
	case errors.Is(err, ErrAccountNotFound):
		return KindIntegrity
	case errors.Is(err, ErrPrisonerNotFound), errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUniqueViolation), errors.Is(err, ErrAlreadyExists), errors.As(err, &retry):
		return KindConflict
	default:
		return KindInternal
	}
}

// RetryAfterConflictError signals that a create raced with another writer on
// the external ledger and the winner is not visible yet. The whole mirrored
// operation should be retried later; it has not failed permanently.
type RetryAfterConflictError struct {
	Resource  string
	Reference string
}

func (e *RetryAfterConflictError) Error() string {
	return fmt.Sprintf("%s %q conflicted on create but could not be re-fetched, retry later", e.Resource, e.Reference)
}

// IsRetryAfterConflict reports whether err carries a RetryAfterConflictError.
func IsRetryAfterConflict(err error) bool {
	var retry *RetryAfterConflictError
	return errors.As(err, &retry)
}

// UnbalancedError details a debit/credit mismatch.
type UnbalancedError struct {
	Debits  string
	Credits string
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("unbalanced transaction: debits %s != credits %s", e.Debits, e.Credits)
}

func (e *UnbalancedError) Unwrap() error {
	return ErrUnbalancedTransaction
}
