package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type FieldErrors map[string]string

// FromBindError turns a gin bind error into field -> message, keyed by
// the json tag of dst's fields.
func FromBindError(err error, dst any) FieldErrors {
	out := FieldErrors{}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fieldKey(dst, fe.StructNamespace())] = messageForTag(fe.Tag(), fe.Param())
		}
		return out
	}

	// malformed JSON, wrong types
	out["_"] = "The request body is not valid."
	return out
}

// fieldKey walks Type.Field.Sub to the json path, e.g. billing.email.
func fieldKey(dst any, namespace string) string {
	t := reflect.TypeOf(dst)
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}

	keys := make([]string, 0, len(parts))
	for _, name := range parts {
		for t != nil && (t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice) {
			t = t.Elem()
		}
		if i := strings.Index(name, "["); i >= 0 {
			name = name[:i]
		}
		key := strings.ToLower(name)
		if t != nil && t.Kind() == reflect.Struct {
			if f, ok := t.FieldByName(name); ok {
				if tag := jsonName(f.Tag.Get("json")); tag != "" {
					key = tag
				}
				t = f.Type
			} else {
				t = nil
			}
		}
		keys = append(keys, key)
	}
	return strings.Join(keys, ".")
}

func jsonName(tag string) string {
	if i := strings.Index(tag, ","); i >= 0 {
		tag = tag[:i]
	}
	if tag == "-" {
		return ""
	}
	return tag
}

func messageForTag(tag, param string) string {
	switch tag {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return "Must be at least " + param + "."
	case "max":
		return "Must be at most " + param + "."
	case "oneof":
		return "Must be one of: " + param + "."
	case "numeric":
		return "Digits only."
	default:
		return "Invalid value."
	}
}
