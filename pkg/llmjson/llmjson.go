// Package llmjson pulls JSON documents out of free-form language model output and validates them
// against a JSON schema before decoding.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrNoJSON          = errors.New("no JSON object found in text")
	ErrSchemaViolation = errors.New("JSON does not match schema")
)

// Schema is a JSON schema expressed as a Go value, as loaded by gojsonschema.NewGoLoader.
type Schema map[string]any

// StripCodeFence removes a surrounding markdown code fence (```json ... ```) if present.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if newline := strings.IndexByte(text, '\n'); newline >= 0 {
		text = text[newline+1:]
	} else {
		text = ""
	}

	if end := strings.LastIndex(text, "```"); end >= 0 {
		text = text[:end]
	}

	return strings.TrimSpace(text)
}

// Extract returns the first balanced JSON object in text.
func Extract(text string) (string, error) {
	text = StripCodeFence(text)

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoJSON
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", ErrNoJSON
}

// Validate checks document against schema.
func Validate(schema Schema, document any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(map[string]any(schema)), gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(errs, "; "))
	}

	return nil
}

// Decode extracts the JSON object from text, validates it against schema and unmarshals it into out.
func Decode(text string, schema Schema, out any) error {
	raw, err := Extract(text)
	if err != nil {
		return err
	}

	var document any
	if err := json.Unmarshal([]byte(raw), &document); err != nil {
		return fmt.Errorf("%w: %w", ErrNoJSON, err)
	}

	if err := Validate(schema, document); err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}

	return nil
}
