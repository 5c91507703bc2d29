package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema validates recovered payloads before they are decoded into Go types
type Schema struct {
	raw      json.RawMessage
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON Schema document
func CompileSchema(name, document string) (*Schema, error) {
	c := jsonschema.NewCompiler()
	url := "mem://" + name + ".schema.json"
	if err := c.AddResource(url, strings.NewReader(document)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{raw: json.RawMessage(document), compiled: s}, nil
}

// MustCompileSchema is CompileSchema for package-level schemas
func MustCompileSchema(name, document string) *Schema {
	s, err := CompileSchema(name, document)
	if err != nil {
		panic(err)
	}
	return s
}

// Raw returns the schema document, e.g. for structured-output requests
func (s *Schema) Raw() json.RawMessage {
	return s.raw
}

// Validate checks a decoded JSON value against the schema
func (s *Schema) Validate(v any) error {
	return s.compiled.Validate(v)
}

// Result is the outcome of a typed decode: either a value, or the caller's
// fallback together with the reason decoding failed
type Result[T any] struct {
	Value    T
	Strategy Strategy
	Err      error
}

// OK reports whether Value came from the response rather than the fallback
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Decode recovers a JSON object from text, validates it against schema
// (when non-nil) and decodes it into T. Any failure returns fallback.
func Decode[T any](text string, schema *Schema, defaultKey string, fallback T) Result[T] {
	obj, strategy, err := Extract(text, defaultKey)
	if err != nil {
		return Result[T]{Value: fallback, Strategy: StrategyFallback, Err: err}
	}
	return DecodeObject(obj, strategy, schema, fallback)
}

// DecodeObject validates and decodes an already extracted object
func DecodeObject[T any](obj map[string]any, strategy Strategy, schema *Schema, fallback T) Result[T] {
	if schema != nil {
		if err := schema.Validate(obj); err != nil {
			return Result[T]{Value: fallback, Strategy: strategy, Err: fmt.Errorf("schema validation: %w", err)}
		}
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return Result[T]{Value: fallback, Strategy: strategy, Err: fmt.Errorf("re-encode payload: %w", err)}
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return Result[T]{Value: fallback, Strategy: strategy, Err: fmt.Errorf("decode payload: %w", err)}
	}

	return Result[T]{Value: value, Strategy: strategy}
}
