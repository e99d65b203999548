package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error codes carried by DomainError.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeInvalidAmount  = "INVALID_AMOUNT"
	CodeBudgetExceeded = "BUDGET_EXCEEDED"
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeStorage        = "STORAGE_FAILURE"
)

// DomainError is an error the API reports to the caller as-is.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches on code so wrapped copies of the sentinels below compare equal.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	ErrNotFound      = NewDomainError(CodeNotFound, "resource not found")
	ErrUnauthorized  = NewDomainError(CodeUnauthorized, "not authorized")
	ErrValidation    = NewDomainError(CodeValidation, "invalid input")
	ErrInvalidAmount = NewDomainError(CodeInvalidAmount, "amount must be a number greater than 0")
)

// Validation returns a validation error with a caller-facing message.
func Validation(message string) error {
	return NewDomainError(CodeValidation, message)
}

// NotFound returns a not-found error naming the missing resource.
func NotFound(resource string) error {
	return NewDomainError(CodeNotFound, resource+" not found")
}

// BudgetExceededError reports an attempt to pay more than a budget's total.
type BudgetExceededError struct {
	Total     decimal.Decimal
	Attempted decimal.Decimal
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("total paid cannot exceed the budget: total %s, attempted %s",
		e.Total.StringFixed(2), e.Attempted.StringFixed(2))
}

// StorageError wraps an unexpected failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Storage wraps err as a StorageError unless it already carries a domain meaning.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	var be *BudgetExceededError
	var se *StorageError
	if errors.As(err, &de) || errors.As(err, &be) || errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
