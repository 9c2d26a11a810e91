// Package validation checks settings documents and tool arguments against
// JSON Schema Draft 2020-12.
package validation

// Validator validates decoded JSON documents before they are unmarshalled.
type Validator interface {
	ValidateSettings(doc map[string]any) error
	ValidateInput(input map[string]any, inputSchema []byte) error
}
