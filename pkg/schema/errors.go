package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeExtractionCorrupt    = "EXTRACTION_CORRUPT"
	ErrCodeExtractionEmpty      = "EXTRACTION_EMPTY"
	ErrCodeSynthesisUnavailable = "SYNTHESIS_UNAVAILABLE"
	ErrCodeSynthesisMalformed   = "SYNTHESIS_MALFORMED"
	ErrCodeInvalidSyntax        = "RENDER_INVALID_SYNTAX"
	ErrCodeRenderSuperseded     = "RENDER_SUPERSEDED"
	ErrCodeNothingToExport      = "EXPORT_NOTHING"
	ErrCodeRasterizationFailed  = "EXPORT_RASTER_FAILED"
	ErrCodePipelineBusy         = "PIPELINE_BUSY"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeCancelled            = "CANCELLED"
	ErrCodeStore                = "STORE_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
)

// ErdError is the structured error type for all erdstudio operations.
type ErdError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *ErdError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ErdError) Unwrap() error {
	return e.Cause
}

// NewError creates a new ErdError.
func NewError(code, message string) *ErdError {
	return &ErdError{Code: code, Message: message}
}

// NewErrorf creates a new ErdError with a formatted message.
func NewErrorf(code, format string, args ...any) *ErdError {
	return &ErdError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches an underlying cause.
func (e *ErdError) WithCause(err error) *ErdError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *ErdError) WithDetails(details map[string]any) *ErdError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first ErdError in err's chain, or "".
func CodeOf(err error) string {
	var erdErr *ErdError
	if errors.As(err, &erdErr) {
		return erdErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Retryable reports whether the failed operation may succeed if repeated
// unchanged. Only generative-service outages qualify.
func Retryable(err error) bool {
	return IsCode(err, ErrCodeSynthesisUnavailable)
}

var userMessages = map[string]string{
	ErrCodeExtractionCorrupt:    "The file could not be read as a database.",
	ErrCodeExtractionEmpty:      "The database contains no tables.",
	ErrCodeSynthesisUnavailable: "The diagram service is unavailable. Please try again.",
	ErrCodeSynthesisMalformed:   "The diagram service returned something that is not a diagram.",
	ErrCodeInvalidSyntax:        "Syntax error: the diagram code is invalid.",
	ErrCodeRenderSuperseded:     "A newer edit replaced this render.",
	ErrCodeNothingToExport:      "There is no diagram to export yet.",
	ErrCodeRasterizationFailed:  "The image could not be rasterized. Try vector export instead.",
	ErrCodePipelineBusy:         "A diagram is already being generated.",
	ErrCodeInvalidTransition:    "That action is not available right now.",
	ErrCodeValidation:           "The request is invalid.",
	ErrCodeCancelled:            "The operation was cancelled.",
	ErrCodeStore:                "The activity log is unavailable.",
	ErrCodeNotFound:             "Not found.",
}

// UserMessage returns a short human-readable message for err.
// Invalid-syntax errors keep the renderer's own message so it can be shown.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var erdErr *ErdError
	if !errors.As(err, &erdErr) {
		return "Something went wrong: " + err.Error()
	}
	msg, ok := userMessages[erdErr.Code]
	if !ok {
		return erdErr.Message
	}
	if erdErr.Code == ErrCodeInvalidSyntax && erdErr.Message != "" {
		return msg + " " + erdErr.Message
	}
	return msg
}
