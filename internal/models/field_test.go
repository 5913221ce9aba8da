package models

import (
	"errors"
	"testing"
)

const schema = `[
	{"name": "name", "label": "Full name", "type": "text", "required": true, "max_length": 10},
	{"name": "email", "type": "email", "required": true},
	{"name": "age", "type": "number", "min": 18},
	{"name": "plan", "type": "select", "options": ["basic", "pro"]},
	{"name": "terms", "type": "checkbox", "required": true},
	{"name": "start", "type": "date"},
	{"name": "resume", "type": "file"}
]`

func TestDecodeFieldsVariants(t *testing.T) {
	fields, err := DecodeFields([]byte(schema))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fields) != 7 {
		t.Fatalf("expected 7 fields, got %d", len(fields))
	}
	if _, ok := fields[0].(*TextField); !ok {
		t.Fatalf("expected *TextField, got %T", fields[0])
	}
	if _, ok := fields[3].(*SelectField); !ok {
		t.Fatalf("expected *SelectField, got %T", fields[3])
	}
	if fields[6].Type() != FieldFile {
		t.Fatalf("expected file type, got %s", fields[6].Type())
	}
}

func TestDecodeFieldsRejectsInvalidSchemas(t *testing.T) {
	cases := map[string]string{
		"unknown type":   `[{"name": "x", "type": "signature"}]`,
		"missing name":   `[{"type": "text"}]`,
		"select options": `[{"name": "x", "type": "select", "options": []}]`,
		"length range":   `[{"name": "x", "type": "text", "min_length": 5, "max_length": 2}]`,
		"not an array":   `{"name": "x"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeFields([]byte(raw)); err == nil {
				t.Fatalf("expected error for %s", raw)
			}
		})
	}
}

func TestDecodeFieldsEmpty(t *testing.T) {
	fields, err := DecodeFields(nil)
	if err != nil || fields != nil {
		t.Fatalf("expected no fields, got %v %v", fields, err)
	}
}

func TestValidateValues(t *testing.T) {
	fields, err := DecodeFields([]byte(schema))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	valid := map[string]any{
		"name":  "Ada",
		"email": "ada@example.com",
		"age":   "36",
		"plan":  "pro",
		"terms": "on",
		"start": "2026-01-02",
	}
	if err := ValidateValues(fields, valid); err != nil {
		t.Fatalf("expected valid values, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(map[string]any)
		rule   string
	}{
		{"missing name", func(v map[string]any) { delete(v, "name") }, "required"},
		{"long name", func(v map[string]any) { v["name"] = "Augusta Ada King" }, "max_length"},
		{"bad email", func(v map[string]any) { v["email"] = "not-an-email" }, "email"},
		{"underage", func(v map[string]any) { v["age"] = float64(12) }, "min"},
		{"nan age", func(v map[string]any) { v["age"] = "twelve" }, "number"},
		{"bad option", func(v map[string]any) { v["plan"] = "enterprise" }, "option"},
		{"unchecked", func(v map[string]any) { v["terms"] = false }, "required"},
		{"bad date", func(v map[string]any) { v["start"] = "02/01/2026" }, "date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			values := make(map[string]any, len(valid))
			for k, v := range valid {
				values[k] = v
			}
			tc.mutate(values)
			err := ValidateValues(fields, values)
			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) {
				t.Fatalf("expected FieldError, got %v", err)
			}
			if fieldErr.Rule != tc.rule {
				t.Fatalf("expected rule %s, got %s (%s)", tc.rule, fieldErr.Rule, fieldErr.Message)
			}
		})
	}
}

func TestAccountLimit(t *testing.T) {
	if got := (&Account{Plan: PlanPro}).Limit().MaxFileSizeMB; got != 25 {
		t.Fatalf("pro limit = %d", got)
	}
	if got := (&Account{Plan: PlanPro, MaxFileSizeMB: 7}).Limit().MaxFileSizeMB; got != 7 {
		t.Fatalf("override limit = %d", got)
	}
	if got := (&Account{Plan: "legacy"}).Limit().MaxFileSizeMB; got != 5 {
		t.Fatalf("unknown plan limit = %d", got)
	}
}

func TestLargestPlanFileSizeMB(t *testing.T) {
	if got := LargestPlanFileSizeMB(); got != 100 {
		t.Fatalf("largest plan limit = %d", got)
	}
}
