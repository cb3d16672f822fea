package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// NullCell is the cell value used for keys missing from an object.
const NullCell = "null"

var (
	// ErrNoMapping is returned when a file or remote source has no mapping.
	ErrNoMapping = errors.New("no field mapping configured")
	// ErrMalformedJSON is returned when the payload is not valid JSON.
	ErrMalformedJSON = errors.New("malformed JSON")
	// ErrNotAnArray is returned when the JSON root is not an array.
	ErrNotAnArray = errors.New("JSON root is not an array")
)

// Extract turns raw JSON, expected to be an array of objects, into rows with
// one cell per mapping key. String values are used verbatim, other values
// are rendered as compact JSON and missing keys become "null".
func Extract(raw []byte, mapping []string) ([][]string, error) {
	if mapping == nil {
		return nil, ErrNoMapping
	}

	var root json.RawMessage
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	root = bytes.TrimSpace(root)
	if len(root) == 0 || root[0] != '[' {
		return nil, ErrNotAnArray
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(root, &elements); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	rows := make([][]string, 0, len(elements))
	for _, element := range elements {
		rows = append(rows, extractRow(element, mapping))
	}
	return rows, nil
}

func extractRow(element json.RawMessage, mapping []string) []string {
	row := make([]string, len(mapping))

	var fields map[string]json.RawMessage
	trimmed := bytes.TrimSpace(element)
	if len(trimmed) == 0 || trimmed[0] != '{' || json.Unmarshal(trimmed, &fields) != nil {
		fields = nil
	}

	for i, key := range mapping {
		value, ok := fields[key]
		if !ok {
			row[i] = NullCell
			continue
		}
		row[i] = cellText(value)
	}
	return row
}

// cellText renders one JSON value as a display string.
func cellText(value json.RawMessage) string {
	value = bytes.TrimSpace(value)
	if len(value) > 0 && value[0] == '"' {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return string(value)
	}
	return buf.String()
}
