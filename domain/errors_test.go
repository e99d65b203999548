package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("load payment: %w", NotFound("payment"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "payment not found", errors.Unwrap(err).Error())
}

func TestBudgetExceededError_Message(t *testing.T) {
	err := &BudgetExceededError{Total: decimal.NewFromInt(1000), Attempted: decimal.RequireFromString("1100.5")}

	assert.Equal(t, "total paid cannot exceed the budget: total 1000.00, attempted 1100.50", err.Error())
}

func TestStorage(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Storage("op", nil))
	})

	t.Run("driver errors are wrapped", func(t *testing.T) {
		cause := errors.New("disk I/O error")
		err := Storage("insert payment", cause)

		var se *StorageError
		assert.True(t, errors.As(err, &se))
		assert.Equal(t, "insert payment", se.Op)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("domain errors pass through", func(t *testing.T) {
		exceeded := &BudgetExceededError{Total: decimal.NewFromInt(1), Attempted: decimal.NewFromInt(2)}
		assert.Same(t, exceeded, Storage("op", exceeded))
		assert.ErrorIs(t, Storage("op", NotFound("budget")), ErrNotFound)
	})
}
