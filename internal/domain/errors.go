package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeFeatureDisabled  = "FEATURE_DISABLED"
	ErrCodeIndexUnavailable = "INDEX_UNAVAILABLE"
	ErrCodeJudgeUnavailable = "JUDGE_UNAVAILABLE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrInvalidSimilarityThreshold = NewDomainError(ErrCodeValidation, "similarity threshold must be in (0,1]")
	ErrInvalidConfidence          = NewDomainError(ErrCodeValidation, "confidence must be in [0,1]")
	ErrInvalidMaxGroups           = NewDomainError(ErrCodeValidation, "max groups must be positive")
	ErrInvalidSegmentStatus       = NewDomainError(ErrCodeValidation, "invalid segment status")
	ErrInvalidAnalysisStatus      = NewDomainError(ErrCodeValidation, "invalid analysis status")
	ErrMissingRequiredField       = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrProjectNotFound  = NewDomainError(ErrCodeNotFound, "project not found")
	ErrWorkflowNotFound = NewDomainError(ErrCodeNotFound, "workflow not found")
	ErrSegmentNotFound  = NewDomainError(ErrCodeNotFound, "segment not found")
	ErrAnalysisNotFound = NewDomainError(ErrCodeNotFound, "no analysis record for project")
)

// Precondition errors
var (
	ErrFeatureDisabled  = NewDomainError(ErrCodeFeatureDisabled, "redundancy analysis is not enabled")
	ErrIndexUnavailable = NewDomainError(ErrCodeIndexUnavailable, "vector similarity index is not built for this project")
	ErrJudgeUnavailable = NewDomainError(ErrCodeJudgeUnavailable, "quality judge endpoint is not configured")
)

// Operation errors
var (
	ErrInvalidOperation   = NewDomainError(ErrCodeInvalidOperation, "operation not valid in current analysis state")
	ErrAnalysisInProgress = NewDomainError(ErrCodeConflict, "analysis already in progress for project")
	ErrStaleAnalysis      = NewDomainError(ErrCodeConflict, "analysis record was superseded by a newer run")
	ErrStorageUnavailable = NewDomainError(ErrCodeInternalError, "report storage is not configured")
)
