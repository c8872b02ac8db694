package document

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeRow normalizes one specificationTable row. Two encodings are
// accepted and produce the same cells:
//
//	["Power", "10W"]
//	{"name": "Power", "value": "10W"}
//
// Anything else is an ErrInvalidRow.
func decodeRow(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty row", ErrInvalidRow)
	}

	switch trimmed[0] {
	case '[':
		cells := []string{}
		if err := json.Unmarshal(trimmed, &cells); err != nil {
			return nil, fmt.Errorf("%w: array row must contain only strings (or use an object with \"name\" and \"value\")", ErrInvalidRow)
		}
		return cells, nil

	case '{':
		var pair struct {
			Name  *string `json:"name"`
			Value *string `json:"value"`
		}
		if err := json.Unmarshal(trimmed, &pair); err != nil {
			return nil, fmt.Errorf("%w: object row must have string \"name\" and \"value\" (or use an array of cell strings)", ErrInvalidRow)
		}
		if pair.Name == nil || pair.Value == nil {
			return nil, fmt.Errorf("%w: object row needs both \"name\" and \"value\" (or use an array of cell strings)", ErrInvalidRow)
		}
		return []string{*pair.Name, *pair.Value}, nil

	default:
		return nil, fmt.Errorf("%w: expected an array of cell strings or an object with \"name\" and \"value\", got %s", ErrInvalidRow, describeJSON(trimmed))
	}
}

// describeJSON names the JSON kind of a raw value for error messages
func describeJSON(raw []byte) string {
	switch raw[0] {
	case '"':
		return "a string"
	case 't', 'f':
		return "a boolean"
	case 'n':
		return "null"
	default:
		return "a number"
	}
}
