package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ContractNotFound indicates the contract key is absent from the fact store
	ContractNotFound ErrorCode = "CONTRACT_NOT_FOUND"
	// FunctionNotFound indicates the function key is absent from the fact store
	FunctionNotFound ErrorCode = "FUNCTION_NOT_FOUND"
	// DetectorNotFound indicates an unknown detector name
	DetectorNotFound ErrorCode = "DETECTOR_NOT_FOUND"
	// AmbiguousResolution indicates a query needs a calling context to pick one candidate
	AmbiguousResolution ErrorCode = "AMBIGUOUS_RESOLUTION"
	// CorruptArtifact indicates the cache artifact is unreadable or fails integrity checks
	CorruptArtifact ErrorCode = "CORRUPT_ARTIFACT"
	// VersionMismatch indicates the artifact schema version is incompatible
	VersionMismatch ErrorCode = "VERSION_MISMATCH"
	// IOError indicates a cache read/write failure
	IOError ErrorCode = "IO_ERROR"
	// IngestError indicates analyzer output could not be mapped into facts
	IngestError ErrorCode = "INGEST_ERROR"
	// AnalysisFailed indicates the external analyzer invocation failed
	AnalysisFailed ErrorCode = "ANALYSIS_FAILED"
	// InvalidPattern indicates a search pattern failed to compile
	InvalidPattern ErrorCode = "INVALID_PATTERN"
	// InvalidArgument indicates a request parameter is out of range
	InvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// QueryError represents a typed failure with a stable code, so callers can
// branch on error kind instead of parsing messages.
type QueryError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error
}

// New creates a new QueryError with the given code and message
func New(code ErrorCode, message string) *QueryError {
	return &QueryError{Code: code, Message: message}
}

// Newf creates a new QueryError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *QueryError {
	return &QueryError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new QueryError wrapping an underlying cause
func Wrap(code ErrorCode, message string, cause error) *QueryError {
	return &QueryError{Code: code, Message: message, cause: cause}
}

// Error implements the error interface
func (e *QueryError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *QueryError) Unwrap() error {
	return e.cause
}

// WithDetails attaches structured details to the error
func (e *QueryError) WithDetails(details interface{}) *QueryError {
	e.Details = details
	return e
}

// CodeOf extracts the ErrorCode from an error chain.
// Returns InternalError for errors that are not QueryErrors.
func CodeOf(err error) ErrorCode {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return InternalError
}

// IsCode reports whether err carries the given error code
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
