// internal/form/validate.go
//
// Intake – Validator: payload validation and typed decoding.
//
// Context
//   Handlers receive raw JSON.  This file checks the decoded object against
//   a Schema: presence, type, rune length, email and RFC 3339 formats, and
//   boolean-must-be-true rules.  It then decodes the same bytes into the
//   caller's typed input struct.
//
// Workflow
//   •  Honeypot fields are checked first.  A filled honeypot returns
//      ErrBotDetected and nothing else, so bots learn nothing from the
//      response.
//   •  Every field is then validated in schema order.  Errors are collected
//      in []ErrorField (one per violated field path) rather than stopping
//      at the first problem.
//   •  A non-empty error slice is wrapped in *ValidationError; callers use
//      IsValidationError or errors.As to tell user errors from system
//      failures.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// -----------------------------------------------------------------------------
// Error types
// -----------------------------------------------------------------------------

// ErrorField describes a single validation failure.  Name is the dotted
// path of the offending key (“payload.event.answers.0.question”).
type ErrorField struct {
	Name    string `json:"field"`
	Message string `json:"message"`
}

// ValidationError wraps []ErrorField and satisfies the error interface.
type ValidationError struct{ Fields []ErrorField }

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d field error(s)", len(ve.Fields))
}

// ErrBotDetected reports a filled honeypot.  It deliberately carries no
// field detail.
var ErrBotDetected = errors.New("form: honeypot field filled")

// ErrUnknownSchema is returned when Decode is asked for an unregistered ID.
var ErrUnknownSchema = errors.New("form: unknown schema")

// IsValidationError reports whether err came from failed validation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// FieldErrors returns the field errors carried by err, if any.
func FieldErrors(err error) []ErrorField {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// -----------------------------------------------------------------------------
// Public API
// -----------------------------------------------------------------------------

// Decode validates body against schemaID and, on success, decodes it into a
// fresh T.
func Decode[T any](schemaID string, body []byte) (T, error) {
	var out T

	s, ok := GetSchema(schemaID)
	if !ok {
		return out, fmt.Errorf("%w: %s", ErrUnknownSchema, schemaID)
	}

	obj, err := decodeObject(body)
	if err != nil {
		return out, err
	}
	if err := Validate(s, obj); err != nil {
		return out, err
	}

	if err := json.Unmarshal(body, &out); err != nil {
		return out, &ValidationError{Fields: []ErrorField{{Message: "Request body does not match the expected shape."}}}
	}
	return out, nil
}

// Validate checks in against s.  It returns nil, ErrBotDetected, or a
// *ValidationError listing every violated field.
func Validate(s *Schema, in map[string]any) error {
	if honeypotFilled(s.Fields, in) {
		return ErrBotDetected
	}

	var errs []ErrorField
	validateObject(s.Fields, in, "", &errs)
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Body helpers
// -----------------------------------------------------------------------------

func decodeObject(body []byte) (map[string]any, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		return nil, &ValidationError{Fields: []ErrorField{{Message: "Malformed JSON body."}}}
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &ValidationError{Fields: []ErrorField{{Message: "Expected a JSON object."}}}
	}
	return obj, nil
}

// honeypotFilled reports whether any top-level honeypot holds a value.
// Absent, null, and "" all count as empty.
func honeypotFilled(fields []FieldDef, in map[string]any) bool {
	for i := range fields {
		if !fields[i].Honeypot {
			continue
		}
		switch v := in[fields[i].Name].(type) {
		case nil:
		case string:
			if v != "" {
				return true
			}
		default:
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Field-level helpers
// -----------------------------------------------------------------------------

var v = validator.New()

func validateObject(fields []FieldDef, in map[string]any, prefix string, errs *[]ErrorField) {
	for i := range fields {
		f := &fields[i]
		if f.Honeypot {
			continue
		}
		name := joinPath(prefix, f.Name)
		raw, present := in[f.Name]
		if raw == nil {
			present = false
		}

		if !present {
			if f.Required {
				*errs = append(*errs, ErrorField{name, requiredMsg(f)})
			}
			continue
		}
		validateValue(f, raw, name, errs)
	}
}

func validateValue(f *FieldDef, raw any, name string, errs *[]ErrorField) {
	add := func(msg string) { *errs = append(*errs, ErrorField{name, msg}) }

	switch f.Type {
	case TypeString, TypeEmail, TypeDateTime:
		s, ok := raw.(string)
		if !ok {
			add("Expected string.")
			return
		}
		val := strings.TrimSpace(s)
		if msg := lengthCheck(f, val); msg != "" {
			add(msg)
			return
		}
		switch {
		case f.Type == TypeEmail && v.Var(val, "required,email") != nil:
			add(invalidMsg(f, "Invalid email address."))
		case f.Type == TypeDateTime && val == "" && f.Required:
			add(requiredMsg(f))
		case f.Type == TypeDateTime && val != "" && !isDateTime(val):
			add(invalidMsg(f, "Invalid datetime, expected RFC 3339."))
		}

	case TypeBool:
		b, ok := raw.(bool)
		if !ok {
			add("Expected boolean.")
			return
		}
		if f.MustBeTrue && !b {
			add(invalidMsg(f, "Must be accepted."))
		}

	case TypeObject:
		obj, ok := raw.(map[string]any)
		if !ok {
			add("Expected object.")
			return
		}
		validateObject(f.Fields, obj, name, errs)

	case TypeArray:
		list, ok := raw.([]any)
		if !ok {
			add("Expected array.")
			return
		}
		for idx, item := range list {
			itemName := name + "." + strconv.Itoa(idx)
			obj, ok := item.(map[string]any)
			if !ok {
				*errs = append(*errs, ErrorField{itemName, "Expected object."})
				continue
			}
			validateObject(f.Fields, obj, itemName, errs)
		}
	}
}

// lengthCheck validates minlength / maxlength rules in runes.
func lengthCheck(f *FieldDef, s string) string {
	n := utf8.RuneCountInString(s)
	if f.MinLength > 0 && n < f.MinLength {
		return invalidMsg(f, fmt.Sprintf("Must be at least %d characters.", f.MinLength))
	}
	if f.MaxLength > 0 && n > f.MaxLength {
		return fmt.Sprintf("Must be at most %d characters.", f.MaxLength)
	}
	return ""
}

func isDateTime(s string) bool {
	_, err := time.Parse(time.RFC3339Nano, s)
	return err == nil
}

func requiredMsg(f *FieldDef) string {
	if f.ErrorMsg != "" {
		return f.ErrorMsg
	}
	return "Required."
}

func invalidMsg(f *FieldDef, def string) string {
	if f.ErrorMsg != "" {
		return f.ErrorMsg
	}
	return def
}
