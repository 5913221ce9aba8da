package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldEmail    FieldType = "email"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
	FieldDate     FieldType = "date"
	FieldFile     FieldType = "file"
)

var validate = validator.New()

// Field is one entry of a form's schema. Each variant carries only the
// parameters relevant to its type.
type Field interface {
	Key() string
	Type() FieldType
	DisplayLabel() string
	// Check validates a submitted value. value is nil when the field is absent.
	Check(value any) error
}

// FieldBase holds the attributes shared by every variant.
type FieldBase struct {
	Name     string    `json:"name" validate:"required"`
	Label    string    `json:"label"`
	Kind     FieldType `json:"type" validate:"required"`
	Required bool      `json:"required"`
}

func (b FieldBase) Key() string     { return b.Name }
func (b FieldBase) Type() FieldType { return b.Kind }

func (b FieldBase) DisplayLabel() string { return b.label() }

func (b FieldBase) label() string {
	if b.Label != "" {
		return b.Label
	}
	return b.Name
}

// checkRequired reports whether validation should continue.
func (b FieldBase) checkRequired(value any) (bool, error) {
	if isBlank(value) {
		if b.Required {
			return false, &FieldError{Field: b.Name, Rule: "required", Message: fmt.Sprintf("%s is required", b.label())}
		}
		return false, nil
	}
	return true, nil
}

type TextField struct {
	FieldBase
	MinLength int `json:"min_length" validate:"gte=0"`
	MaxLength int `json:"max_length" validate:"gte=0"`
}

func (f *TextField) Check(value any) error {
	if ok, err := f.checkRequired(value); !ok {
		return err
	}
	n := len([]rune(stringValue(value)))
	if f.MinLength > 0 && n < f.MinLength {
		return &FieldError{Field: f.Name, Rule: "min_length", Message: fmt.Sprintf("%s must be at least %d characters", f.label(), f.MinLength)}
	}
	if f.MaxLength > 0 && n > f.MaxLength {
		return &FieldError{Field: f.Name, Rule: "max_length", Message: fmt.Sprintf("%s must be at most %d characters", f.label(), f.MaxLength)}
	}
	return nil
}

type EmailField struct {
	FieldBase
}

func (f *EmailField) Check(value any) error {
	if ok, err := f.checkRequired(value); !ok {
		return err
	}
	if err := validate.Var(stringValue(value), "email"); err != nil {
		return &FieldError{Field: f.Name, Rule: "email", Message: fmt.Sprintf("%s must be a valid email address", f.label())}
	}
	return nil
}

type NumberField struct {
	FieldBase
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

func (f *NumberField) Check(value any) error {
	if ok, err := f.checkRequired(value); !ok {
		return err
	}
	var n float64
	switch v := value.(type) {
	case float64:
		n = v
	case int:
		n = float64(v)
	default:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(stringValue(value)), 64)
		if err != nil {
			return &FieldError{Field: f.Name, Rule: "number", Message: fmt.Sprintf("%s must be a number", f.label())}
		}
		n = parsed
	}
	if f.Min != nil && n < *f.Min {
		return &FieldError{Field: f.Name, Rule: "min", Message: fmt.Sprintf("%s must be at least %v", f.label(), *f.Min)}
	}
	if f.Max != nil && n > *f.Max {
		return &FieldError{Field: f.Name, Rule: "max", Message: fmt.Sprintf("%s must be at most %v", f.label(), *f.Max)}
	}
	return nil
}

type SelectField struct {
	FieldBase
	Options []string `json:"options" validate:"min=1,dive,required"`
	Multi   bool     `json:"multiple"`
}

func (f *SelectField) Check(value any) error {
	if ok, err := f.checkRequired(value); !ok {
		return err
	}
	var chosen []string
	switch v := value.(type) {
	case []any:
		if !f.Multi && len(v) > 1 {
			return &FieldError{Field: f.Name, Rule: "option", Message: fmt.Sprintf("%s accepts a single option", f.label())}
		}
		for _, item := range v {
			chosen = append(chosen, stringValue(item))
		}
	default:
		chosen = []string{stringValue(value)}
	}
	for _, c := range chosen {
		if !containsString(f.Options, c) {
			return &FieldError{Field: f.Name, Rule: "option", Message: fmt.Sprintf("%q is not a valid option for %s", c, f.label())}
		}
	}
	return nil
}

type CheckboxField struct {
	FieldBase
}

func (f *CheckboxField) Check(value any) error {
	if f.Required {
		switch v := value.(type) {
		case bool:
			if !v {
				return &FieldError{Field: f.Name, Rule: "required", Message: fmt.Sprintf("%s must be checked", f.label())}
			}
		default:
			s := strings.ToLower(stringValue(value))
			if s == "" || s == "false" || s == "off" || s == "0" {
				return &FieldError{Field: f.Name, Rule: "required", Message: fmt.Sprintf("%s must be checked", f.label())}
			}
		}
	}
	return nil
}

type DateField struct {
	FieldBase
}

func (f *DateField) Check(value any) error {
	if ok, err := f.checkRequired(value); !ok {
		return err
	}
	if _, err := time.Parse("2006-01-02", stringValue(value)); err != nil {
		return &FieldError{Field: f.Name, Rule: "date", Message: fmt.Sprintf("%s must be a date (YYYY-MM-DD)", f.label())}
	}
	return nil
}

// FileField only enforces presence; type and size rules live in the upload policy.
type FileField struct {
	FieldBase
}

func (f *FileField) Check(value any) error {
	_, err := f.checkRequired(value)
	return err
}

// FieldError names the schema rule a submitted value violated.
type FieldError struct {
	Field   string
	Rule    string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

// DecodeFields decodes a stored schema, dispatching on each entry's "type".
func DecodeFields(raw []byte) ([]Field, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode field schema: %w", err)
	}

	fields := make([]Field, 0, len(entries))
	for i, entry := range entries {
		var head struct {
			Type FieldType `json:"type"`
		}
		if err := json.Unmarshal(entry, &head); err != nil {
			return nil, fmt.Errorf("decode field %d: %w", i, err)
		}

		var field Field
		switch head.Type {
		case FieldText, FieldTextarea:
			field = &TextField{}
		case FieldEmail:
			field = &EmailField{}
		case FieldNumber:
			field = &NumberField{}
		case FieldSelect:
			field = &SelectField{}
		case FieldCheckbox:
			field = &CheckboxField{}
		case FieldDate:
			field = &DateField{}
		case FieldFile:
			field = &FileField{}
		default:
			return nil, fmt.Errorf("field %d: unknown type %q", i, head.Type)
		}
		if err := json.Unmarshal(entry, field); err != nil {
			return nil, fmt.Errorf("decode field %d: %w", i, err)
		}
		if err := validate.Struct(field); err != nil {
			return nil, fmt.Errorf("field %d (%s): %w", i, field.Key(), err)
		}
		if t, ok := field.(*TextField); ok && t.MaxLength > 0 && t.MinLength > t.MaxLength {
			return nil, fmt.Errorf("field %d (%s): min_length exceeds max_length", i, t.Name)
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// ValidateValues checks values against the schema in order and returns the
// first violation.
func ValidateValues(fields []Field, values map[string]any) error {
	for _, field := range fields {
		if err := field.Check(values[field.Key()]); err != nil {
			return err
		}
	}
	return nil
}

func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	}
	return false
}

func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
