package domain_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestTypedErrors_MatchSentinels(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		err      error
		sentinel error
	}{
		{&domain.ValidationError{Field: "id", Reason: "required"}, domain.ErrValidation},
		{&domain.PreconditionError{Subject: "s1", Condition: "role eq admin"}, domain.ErrPrecondition},
		{&domain.LocateError{Target: domain.Target{Value: "#x"}, Attempts: 3, Err: cause}, domain.ErrLocate},
		{&domain.ActionTimeoutError{StepID: "s1", Timeout: time.Second}, domain.ErrActionTimeout},
		{&domain.StateError{Op: "start guide", Reason: "busy"}, domain.ErrState},
		{&domain.StorageError{Op: "save", Key: "k", Err: cause}, domain.ErrStorage},
	}

	for _, tt := range tests {
		wrapped := fmt.Errorf("failed to run: %w", tt.err)
		assert.ErrorIs(t, wrapped, tt.sentinel, tt.err.Error())
	}
}

func TestLocateError_Message(t *testing.T) {
	err := &domain.LocateError{
		Target:   domain.Target{Strategy: domain.StrategySelector, Value: "#missing"},
		Attempts: 2,
		Err:      domain.ErrElementNotFound,
	}

	assert.Contains(t, err.Error(), "Failed to locate element")
	assert.ErrorIs(t, err, domain.ErrElementNotFound)
}

func TestStateError_UnwrapsSpecificSentinel(t *testing.T) {
	err := &domain.StateError{Op: "complete execution", Reason: "id mismatch", Err: domain.ErrNoActiveExecution}

	assert.ErrorIs(t, err, domain.ErrState)
	assert.ErrorIs(t, err, domain.ErrNoActiveExecution)
}
