package services

import (
	"errors"
	"fmt"

	"github.com/upb/manual-share/repositories"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeExternal     ErrorType = "external"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrOrganizationNotFound = NewDomainError(ErrorTypeNotFound, "organization not found", nil)
	ErrUserNotFound         = NewDomainError(ErrorTypeNotFound, "user not found", nil)
	ErrManualNotFound       = NewDomainError(ErrorTypeNotFound, "manual not found", nil)
	ErrSessionNotFound      = NewDomainError(ErrorTypeNotFound, "quiz session not found", nil)
	ErrTranslationNotFound  = NewDomainError(ErrorTypeNotFound, "translation not found", nil)
	ErrInviteTokenInvalid   = NewDomainError(ErrorTypeNotFound, "invalid invite token", nil)

	// Validation Errors
	ErrInvalidInput         = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidEmail         = NewDomainError(ErrorTypeValidation, "invalid email format", nil)
	ErrPasswordTooShort     = NewDomainError(ErrorTypeValidation, "password must be at least 8 characters", nil)
	ErrInviteTokenExpired   = NewDomainError(ErrorTypeValidation, "invite token has expired", nil)
	ErrAlreadyOnboarded     = NewDomainError(ErrorTypeValidation, "user is already registered", nil)
	ErrUnsupportedLanguage  = NewDomainError(ErrorTypeValidation, "unsupported language", nil)
	ErrUnsupportedMediaType = NewDomainError(ErrorTypeValidation, "unsupported file type", nil)
	ErrFileTooLarge         = NewDomainError(ErrorTypeValidation, "file too large", nil)
	ErrInsufficientContent  = NewDomainError(ErrorTypeValidation, "manual content is too short to generate a quiz", nil)
	ErrEmptyAnswers         = NewDomainError(ErrorTypeValidation, "at least one answer is required", nil)
	ErrCannotDeleteSelf     = NewDomainError(ErrorTypeValidation, "you cannot delete your own account", nil)

	// Authorization Errors
	ErrUnauthorized       = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidCredentials = NewDomainError(ErrorTypeUnauthorized, "incorrect email or password", nil)
	ErrInvalidToken       = NewDomainError(ErrorTypeUnauthorized, "invalid authentication token", nil)
	ErrTokenExpired       = NewDomainError(ErrorTypeUnauthorized, "authentication token expired", nil)

	// Permission Errors
	ErrForbidden               = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
	ErrInsufficientPermissions = NewDomainError(ErrorTypeForbidden, "insufficient permissions", nil)
	ErrOrgMismatch             = NewDomainError(ErrorTypeForbidden, "organization mismatch", nil)

	// Rate Limit Errors
	ErrRateLimitExceeded = NewDomainError(ErrorTypeRateLimit, "rate limit exceeded", nil)

	// Conflict Errors
	ErrDuplicateEmail       = NewDomainError(ErrorTypeConflict, "email already exists", nil)
	ErrQuizAlreadySubmitted = NewDomainError(ErrorTypeConflict, "quiz already submitted", nil)
	ErrInviteNotPending     = NewDomainError(ErrorTypeConflict, "user has already completed onboarding", nil)

	// Internal Errors
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError     = NewDomainError(ErrorTypeInternal, "database error", nil)
	ErrTransactionFailed = NewDomainError(ErrorTypeInternal, "transaction failed", nil)
	ErrUserRecordMissing = NewDomainError(ErrorTypeInternal, "user record not found for identity", nil)

	// External Provider Errors
	ErrUpstreamUnavailable = NewDomainError(ErrorTypeExternal, "authentication service unavailable", nil)
	ErrProviderUnavailable = NewDomainError(ErrorTypeExternal, "LLM provider unavailable", nil)
	ErrProviderError       = NewDomainError(ErrorTypeExternal, "LLM provider error", nil)
	ErrMalformedQuiz       = NewDomainError(ErrorTypeExternal, "LLM returned a malformed quiz", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeUnauthorized
	}
	return false
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeForbidden
	}
	return false
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeRateLimit
	}
	return false
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeConflict
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
}

// IsExternalError checks if an error is an external provider error
func IsExternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeExternal
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapExternal wraps an error as an external provider error
func WrapExternal(message string, err error) error {
	return NewDomainError(ErrorTypeExternal, message, err)
}

// Derive returns a fresh copy of a sentinel so details can be attached without
// mutating the shared value
func Derive(sentinel *DomainError, err error) *DomainError {
	return NewDomainError(sentinel.Type, sentinel.Message, err)
}

// FromRepository maps a repository error: ErrNotFound becomes notFound,
// ErrDuplicate becomes duplicate when given, anything else is internal
func FromRepository(err error, notFound, duplicate *DomainError, message string) error {
	switch {
	case err == nil:
		return nil
	case notFound != nil && errors.Is(err, repositories.ErrNotFound):
		return Derive(notFound, err)
	case duplicate != nil && errors.Is(err, repositories.ErrDuplicate):
		return Derive(duplicate, err)
	default:
		return WrapInternal(message, err)
	}
}

// FromCompletion maps an LLM completion failure. Transient failures report the
// provider as unavailable, anything else as a provider error.
func FromCompletion(err error, transient bool) error {
	if err == nil {
		return nil
	}
	if transient {
		return Derive(ErrProviderUnavailable, err)
	}
	return Derive(ErrProviderError, err)
}
