package scheduling

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by Store implementations
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// ErrorCode identifies a failure class for API consumers
type ErrorCode string

const (
	CodeShiftNotFound            ErrorCode = "SHIFT_NOT_FOUND"
	CodeAssignmentNotFound       ErrorCode = "ASSIGNMENT_NOT_FOUND"
	CodeAssignmentExists         ErrorCode = "ASSIGNMENT_EXISTS"
	CodeGuardNotEligible         ErrorCode = "GUARD_NOT_ELIGIBLE"
	CodeConflictOverrideRequired ErrorCode = "CONFLICT_OVERRIDE_REQUIRED"
	CodeInvalidAssignmentStatus  ErrorCode = "INVALID_ASSIGNMENT_STATUS"
	CodeResponseDeadlinePassed   ErrorCode = "RESPONSE_DEADLINE_PASSED"
	CodeBatchOperationFailed     ErrorCode = "BATCH_OPERATION_FAILED"
	CodeValidation               ErrorCode = "VALIDATION_ERROR"
	CodeDatabaseError            ErrorCode = "DATABASE_ERROR"
	CodeServiceError             ErrorCode = "SERVICE_ERROR"
)

// ServiceError is the structured failure type returned by every scheduling
// operation. Eligibility and conflict failures carry enough detail for the
// caller to decide on an override.
type ServiceError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewServiceError builds a ServiceError with a formatted message
func NewServiceError(code ErrorCode, format string, args ...any) *ServiceError {
	return &ServiceError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a structured detail and returns the error for chaining
func (e *ServiceError) WithDetail(key string, value any) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// AsServiceError unwraps err into a *ServiceError; persistence failures that
// were not classified become DATABASE_ERROR.
func AsServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	if errors.Is(err, ErrNotFound) {
		return NewServiceError(CodeDatabaseError, "record not found")
	}
	return NewServiceError(CodeDatabaseError, "persistence failure: %v", err)
}

// storeError wraps an unexpected persistence failure
func storeError(op string, err error) *ServiceError {
	return NewServiceError(CodeDatabaseError, "%s: %v", op, err)
}
