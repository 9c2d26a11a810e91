package validation

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/erdstudio/pkg/schema"
)

//go:embed settings.schema.json
var settingsSchemaJSON []byte

const settingsSchemaURL = "https://erdstudio.dev/schemas/settings.json"

// JSONSchemaValidator validates against JSON Schema Draft 2020-12. It is safe
// for concurrent use.
type JSONSchemaValidator struct {
	settings *jsonschema.Schema

	mu    sync.Mutex
	cache map[string]*jsonschema.Schema // sha256 of the schema bytes
}

// NewJSONSchemaValidator compiles the settings schema.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	settings, err := compile(settingsSchemaURL, settingsSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("settings schema: %w", err)
	}
	return &JSONSchemaValidator{
		settings: settings,
		cache:    make(map[string]*jsonschema.Schema),
	}, nil
}

// ValidateSettings validates a merged settings document. Keys are the
// nested maps produced by the config loader.
func (v *JSONSchemaValidator) ValidateSettings(doc map[string]any) error {
	if doc == nil {
		return schema.NewError(schema.ErrCodeValidation, "settings document is nil")
	}
	return validate(v.settings, doc, "settings")
}

// ValidateInput validates input against a raw JSON Schema. An empty schema
// accepts anything. Compiled schemas are cached by content.
func (v *JSONSchemaValidator) ValidateInput(input map[string]any, inputSchema []byte) error {
	if input == nil {
		return schema.NewError(schema.ErrCodeValidation, "input is nil")
	}
	if len(inputSchema) == 0 {
		return nil
	}
	compiled, err := v.inputSchema(inputSchema)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid input schema").WithCause(err)
	}
	return validate(compiled, input, "input")
}

func (v *JSONSchemaValidator) inputSchema(raw []byte) (*jsonschema.Schema, error) {
	sum := sha256.Sum256(raw)
	key := hex.EncodeToString(sum[:])

	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.cache[key]; ok {
		return s, nil
	}
	s, err := compile("erdstudio://input/"+key, raw)
	if err != nil {
		return nil, err
	}
	v.cache[key] = s
	return s, nil
}

// compile builds one schema on its own compiler so resource URLs never clash.
func compile(url string, raw []byte) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(url)
}

func validate(s *jsonschema.Schema, value any, what string) error {
	// The library wants json.Number for numbers, so go through the encoder.
	b, err := json.Marshal(value)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "failed to serialize %s", what).WithCause(err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "failed to serialize %s", what).WithCause(err)
	}
	if err := s.Validate(doc); err != nil {
		return toErdError(err)
	}
	return nil
}

// toErdError flattens a validation error tree into one error whose details
// list every violated location, sorted.
func toErdError(err error) *schema.ErdError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}
	var violations []string
	collectViolations(verr, &violations)
	slices.Sort(violations)

	msg := verr.Error()
	switch len(violations) {
	case 0:
		return schema.NewError(schema.ErrCodeValidation, msg)
	case 1:
		msg = violations[0]
	default:
		msg = fmt.Sprintf("validation failed with %d errors", len(violations))
	}
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

func collectViolations(verr *jsonschema.ValidationError, out *[]string) {
	if len(verr.Causes) == 0 {
		*out = append(*out, "/"+strings.Join(verr.InstanceLocation, "/")+": "+verr.Error())
		return
	}
	for _, cause := range verr.Causes {
		collectViolations(cause, out)
	}
}

var _ Validator = (*JSONSchemaValidator)(nil)
