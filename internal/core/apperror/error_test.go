package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestInsufficientFunds(t *testing.T) {
	err := NewInsufficientFunds("acc-1", decimal.RequireFromString("150.00"), decimal.RequireFromString("100.00"))

	wrapped := fmt.Errorf("debit: %w", err)
	assert.True(t, IsInsufficientFunds(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(wrapped))
	assert.Equal(t, "150", err.Details["requested"])
	assert.Equal(t, "100", err.Details["available"])
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewDatabase(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "caused by: connection reset")
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(err))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(cause))
}

func TestNotFoundAndConcurrentModification(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFound("account", "acc-1")))
	assert.True(t, IsConcurrentModification(NewConcurrentModification("account", "acc-1")))
	assert.False(t, IsAppError(errors.New("plain")))

	err := NewValidation("amount must be positive").WithDetail("field", "amount")
	assert.Equal(t, "amount", err.Details["field"])
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatus(err))
}

func TestDuplicateWithCause(t *testing.T) {
	cause := errors.New("UNIQUE constraint failed: accounts.id")
	err := NewDuplicate("account", "id", "acc-1").WithCause(cause)

	assert.True(t, IsDuplicate(fmt.Errorf("create: %w", err)))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(err))
	assert.Equal(t, "acc-1", err.Details["value"])
}
