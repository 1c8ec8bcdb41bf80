// Package generator wraps the external text-generation collaborator.
// Generated output is schema-validated before it enters workflow state;
// anything that fails validation surfaces as a retryable node error.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// Request is one structured-generation request.
type Request struct {
	// System frames the collaborator's role for this call.
	System string

	// Prompt is the task description. The collaborator is expected to
	// answer with a single JSON document.
	Prompt string
}

// Generator produces structured records from natural-language context.
// Implementations must honor ctx cancellation and per-call timeouts.
type Generator interface {
	// GenerateInto runs one generation call and decodes the JSON response
	// into out (a pointer to a struct or slice). Decoded structs are
	// validated against their `validate` tags.
	GenerateInto(ctx context.Context, req Request, out any) error
}

// Decode parses raw generator text into out. The text may wrap the JSON in
// markdown fences or prose; Decode extracts the outermost JSON value first.
// Decoding is weakly typed (a quoted "3" fills an int field) because
// collaborator output is not strictly typed.
func Decode(text string, out any) error {
	payload := extractJSON(text)
	if payload == "" {
		return types.NewError(types.GEN_INVALID_OUTPUT, "no JSON value found in generator output")
	}

	var intermediate any
	if err := json.Unmarshal([]byte(payload), &intermediate); err != nil {
		return types.WrapError(types.GEN_INVALID_OUTPUT, "generator output is not valid JSON", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return types.WrapError(types.GEN_INVALID_OUTPUT, "failed to build decoder", err)
	}
	if err := decoder.Decode(intermediate); err != nil {
		return types.WrapError(types.GEN_INVALID_OUTPUT, "generator output does not match expected shape", err)
	}

	return ValidateOutput(out)
}

var validate = validator.New()

// ValidateOutput checks decoded generator output against `validate` struct
// tags. Slices are validated element-wise; non-struct values pass through.
func ValidateOutput(out any) error {
	v := reflect.ValueOf(out)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		if err := validate.Struct(v.Interface()); err != nil {
			return types.WrapError(types.GEN_SCHEMA_VIOLATION, "generator output failed schema validation", err)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			elem := v.Index(i)
			for elem.Kind() == reflect.Pointer {
				elem = elem.Elem()
			}
			if elem.Kind() != reflect.Struct {
				continue
			}
			if err := validate.Struct(elem.Interface()); err != nil {
				return types.WrapError(types.GEN_SCHEMA_VIOLATION,
					fmt.Sprintf("generator output element %d failed schema validation", i), err)
			}
		}
	}

	return nil
}

// extractJSON returns the outermost JSON object or array embedded in text,
// or "" when none is present. Handles ```json fences and leading prose.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}

	open := text[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}

	return ""
}
