package schema

import "fmt"

// Severity indicates whether a diagnostic is an error or warning.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a single problem found in a diagram source, with its line.
type Diagnostic struct {
	Line     int      `json:"line"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("line %d: %s", d.Line, d.Message)
	}
	return d.Message
}

// Diagnostics aggregates the issues found while parsing a diagram source.
type Diagnostics struct {
	Errors   []Diagnostic `json:"errors,omitempty"`
	Warnings []Diagnostic `json:"warnings,omitempty"`
}

// Valid returns true if there are no errors (warnings are acceptable).
func (d *Diagnostics) Valid() bool {
	return len(d.Errors) == 0
}

// AddError appends an error-severity diagnostic.
func (d *Diagnostics) AddError(line int, format string, args ...any) {
	d.Errors = append(d.Errors, Diagnostic{
		Line: line, Message: fmt.Sprintf(format, args...), Severity: SeverityError,
	})
}

// AddWarning appends a warning-severity diagnostic.
func (d *Diagnostics) AddWarning(line int, format string, args ...any) {
	d.Warnings = append(d.Warnings, Diagnostic{
		Line: line, Message: fmt.Sprintf(format, args...), Severity: SeverityWarning,
	})
}

// ToError converts the diagnostics to an invalid-syntax ErdError, nil if valid.
// The message is the first error; the full list goes into details.
func (d *Diagnostics) ToError() error {
	if d.Valid() {
		return nil
	}

	msg := d.Errors[0].String()
	if len(d.Errors) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(d.Errors)-1)
	}

	return NewError(ErrCodeInvalidSyntax, msg).
		WithDetails(map[string]any{
			"error_count":   len(d.Errors),
			"warning_count": len(d.Warnings),
			"errors":        d.Errors,
			"warnings":      d.Warnings,
		})
}
