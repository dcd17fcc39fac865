package apperrors

import (
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"unbalanced", &UnbalancedError{Debits: "10", Credits: "5"}, KindValidation},
		{"wrapped no entries", fmt.Errorf("record: %w", ErrNoEntries), KindValidation},
		{"pkg wrapped sub account", pkgerrors.Wrap(ErrUnknownSubAccountType, "fix"), KindValidation},
		{"integrity", pkgerrors.Wrapf(ErrAccountNotFound, "entry %d", 3), KindIntegrity},
		{"prisoner missing", ErrPrisonerNotFound, KindNotFound},
		{"unique", ErrUniqueViolation, KindConflict},
		{"retry", &RetryAfterConflictError{Resource: "account", Reference: "A1234BC"}, KindConflict},
		{"other", fmt.Errorf("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsRetryAfterConflict(t *testing.T) {
	err := fmt.Errorf("mirror: %w", &RetryAfterConflictError{Resource: "sub-account", Reference: "CASH"})
	assert.True(t, IsRetryAfterConflict(err))
	assert.Contains(t, err.Error(), `"CASH"`)
	assert.False(t, IsRetryAfterConflict(ErrAlreadyExists))
}
