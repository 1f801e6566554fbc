package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"unicode/utf8"
)

// JSON is a JSON Schema definition.
type JSON struct {
	Type        string          `json:"type,omitempty"`
	Description string          `json:"description,omitempty"`
	Properties  map[string]JSON `json:"properties,omitempty"`
	Required    []string        `json:"required,omitempty"`
	Items       *JSON           `json:"items,omitempty"`
	Enum        []any           `json:"enum,omitempty"`
	Default     any             `json:"default,omitempty"`
	Minimum     *float64        `json:"minimum,omitempty"`
	Maximum     *float64        `json:"maximum,omitempty"`
	MinLength   *int            `json:"minLength,omitempty"`
	MaxLength   *int            `json:"maxLength,omitempty"`
	Pattern     string          `json:"pattern,omitempty"`

	// AdditionalProperties set to false rejects object keys that are not
	// listed in Properties.
	AdditionalProperties *bool `json:"additionalProperties,omitempty"`
}

// Any creates a schema that accepts any value.
func Any() JSON {
	return JSON{}
}

// String creates a schema for a string.
func String() JSON {
	return JSON{Type: "string"}
}

// StringWithDesc creates a schema for a string with a description.
func StringWithDesc(desc string) JSON {
	return JSON{Type: "string", Description: desc}
}

// Int creates a schema for an integer.
func Int() JSON {
	return JSON{Type: "integer"}
}

// Number creates a schema for a number.
func Number() JSON {
	return JSON{Type: "number"}
}

// Bool creates a schema for a boolean.
func Bool() JSON {
	return JSON{Type: "boolean"}
}

// Array creates a schema for an array of items.
func Array(items JSON) JSON {
	return JSON{Type: "array", Items: &items}
}

// Object creates a schema for an object with the given properties and
// required keys.
func Object(properties map[string]JSON, required ...string) JSON {
	return JSON{Type: "object", Properties: properties, Required: required}
}

// Enum creates a schema that accepts only the listed values.
func Enum(values ...any) JSON {
	return JSON{Enum: values}
}

// WithDescription returns a copy with the description set.
func (s JSON) WithDescription(desc string) JSON {
	s.Description = desc
	return s
}

// WithPattern returns a copy that requires strings to match pattern.
func (s JSON) WithPattern(pattern string) JSON {
	s.Pattern = pattern
	return s
}

// WithMinLength returns a copy that requires strings of at least n runes.
func (s JSON) WithMinLength(n int) JSON {
	s.MinLength = &n
	return s
}

// WithMaxLength returns a copy that allows strings of at most n runes.
func (s JSON) WithMaxLength(n int) JSON {
	s.MaxLength = &n
	return s
}

// Closed returns a copy of an object schema that rejects unknown keys.
func (s JSON) Closed() JSON {
	closed := false
	s.AdditionalProperties = &closed
	return s
}

// Validate reports the first way value does not conform to s.
func (s JSON) Validate(value any) error {
	return s.validate("", value)
}

// ValidationError describes a value that does not conform to a schema.
type ValidationError struct {
	// Path locates the value, e.g. "results[2].id". Empty for the root.
	Path string

	// Reason describes the mismatch.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return e.Path + ": " + e.Reason
}

func fail(path, format string, args ...any) error {
	return &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func (s JSON) validate(path string, value any) error {
	if value == nil {
		if s.Type != "" {
			return fail(path, "expected %s, got null", s.Type)
		}
		return nil
	}

	if len(s.Enum) > 0 {
		for _, allowed := range s.Enum {
			if reflect.DeepEqual(value, allowed) {
				return nil
			}
		}
		return fail(path, "value %v is not one of %v", value, s.Enum)
	}

	switch s.Type {
	case "":
		return nil
	case "string":
		return s.validateString(path, value)
	case "integer":
		n, ok := toFloat(value)
		if !ok || n != float64(int64(n)) {
			return fail(path, "expected integer, got %T", value)
		}
		return s.validateRange(path, n)
	case "number":
		n, ok := toFloat(value)
		if !ok {
			return fail(path, "expected number, got %T", value)
		}
		return s.validateRange(path, n)
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fail(path, "expected boolean, got %T", value)
		}
		return nil
	case "array":
		return s.validateArray(path, value)
	case "object":
		return s.validateObject(path, value)
	default:
		return fail(path, "unsupported schema type %q", s.Type)
	}
}

func (s JSON) validateString(path string, value any) error {
	str, ok := value.(string)
	if !ok {
		return fail(path, "expected string, got %T", value)
	}

	n := utf8.RuneCountInString(str)
	if s.MinLength != nil && n < *s.MinLength {
		return fail(path, "string length %d is less than minimum %d", n, *s.MinLength)
	}
	if s.MaxLength != nil && n > *s.MaxLength {
		return fail(path, "string length %d is greater than maximum %d", n, *s.MaxLength)
	}

	if s.Pattern != "" {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return fail(path, "invalid pattern %q: %v", s.Pattern, err)
		}
		if !re.MatchString(str) {
			return fail(path, "%q does not match pattern %s", str, s.Pattern)
		}
	}
	return nil
}

func (s JSON) validateRange(path string, n float64) error {
	if s.Minimum != nil && n < *s.Minimum {
		return fail(path, "value %v is less than minimum %v", n, *s.Minimum)
	}
	if s.Maximum != nil && n > *s.Maximum {
		return fail(path, "value %v is greater than maximum %v", n, *s.Maximum)
	}
	return nil
}

func (s JSON) validateArray(path string, value any) error {
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return fail(path, "expected array, got %T", value)
	}
	if s.Items == nil {
		return nil
	}

	for i := 0; i < v.Len(); i++ {
		if err := s.Items.validate(fmt.Sprintf("%s[%d]", path, i), v.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

func (s JSON) validateObject(path string, value any) error {
	obj, err := toMap(value)
	if err != nil {
		return fail(path, "expected object, got %T", value)
	}

	for _, key := range s.Required {
		if _, ok := obj[key]; !ok {
			return fail(join(path, key), "required field is missing")
		}
	}

	// Sorted keys keep the reported error stable.
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		prop, ok := s.Properties[key]
		if !ok {
			if s.AdditionalProperties != nil && !*s.AdditionalProperties {
				return fail(join(path, key), "unknown field")
			}
			continue
		}
		if err := prop.validate(join(path, key), obj[key]); err != nil {
			return err
		}
	}
	return nil
}

func toFloat(value any) (float64, bool) {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return 0, false
	}
}

// toMap returns value as a map, going through encoding/json for structs
// and typed maps.
func toMap(value any) (map[string]any, error) {
	if m, ok := value.(map[string]any); ok {
		return m, nil
	}

	kind := reflect.Indirect(reflect.ValueOf(value)).Kind()
	if kind != reflect.Map && kind != reflect.Struct {
		return nil, fmt.Errorf("not an object: %T", value)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
