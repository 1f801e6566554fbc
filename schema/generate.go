package schema

import (
	"reflect"
	"strings"
	"time"
)

// FromType derives a schema from the Go type of v.
//
// Structs become objects keyed by their json tag names; fields without
// omitempty are required. A `description` struct tag becomes the property
// description. Slices become arrays, maps become open objects and
// interfaces accept anything. Recursive types are cut off at the first
// repetition with an open schema.
func FromType(v any) JSON {
	if v == nil {
		return JSON{}
	}
	return fromType(reflect.TypeOf(v), map[reflect.Type]bool{})
}

var timeType = reflect.TypeOf(time.Time{})

func fromType(t reflect.Type, seen map[reflect.Type]bool) JSON {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == timeType {
		return JSON{Type: "string", Description: "RFC 3339 timestamp"}
	}

	switch t.Kind() {
	case reflect.Struct:
		if seen[t] {
			return JSON{}
		}
		seen[t] = true
		defer delete(seen, t)
		return fromStruct(t, seen)
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return String()
		}
		return Array(fromType(t.Elem(), seen))
	case reflect.Map:
		return JSON{Type: "object"}
	case reflect.String:
		return String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int()
	case reflect.Float32, reflect.Float64:
		return Number()
	case reflect.Bool:
		return Bool()
	default:
		return JSON{}
	}
}

func fromStruct(t reflect.Type, seen map[reflect.Type]bool) JSON {
	properties := make(map[string]JSON)
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name, omitempty, skip := jsonName(field)
		if skip {
			continue
		}

		prop := fromType(field.Type, seen)
		if desc := field.Tag.Get("description"); desc != "" {
			prop.Description = desc
		}
		properties[name] = prop

		if !omitempty {
			required = append(required, name)
		}
	}

	return Object(properties, required...)
}

func jsonName(field reflect.StructField) (name string, omitempty, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}

	name = field.Name
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" || opt == "omitzero" {
			omitempty = true
		}
	}
	return name, omitempty, false
}
