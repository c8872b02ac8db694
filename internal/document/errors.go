package document

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is returned for input that is not valid JSON of the expected shape
	ErrMalformed = errors.New("malformed document")
	// ErrMissingField is returned when a required field is absent
	ErrMissingField = errors.New("missing required field")
	// ErrUnknownBlockType is returned for a block whose type discriminant is not recognized
	ErrUnknownBlockType = errors.New("unknown block type")
	// ErrInvalidRow is returned for a table row that is neither a cell list nor a name/value object
	ErrInvalidRow = errors.New("invalid table row")
	// ErrDuplicateID is returned when two sections of one document share an id
	ErrDuplicateID = errors.New("duplicate id")
)

// ParseError locates a decode failure inside a document.
// Path uses JSON-ish notation, e.g. "sections[2].blocks[0].rows[1]".
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(path string, err error) error {
	return &ParseError{Path: path, Err: err}
}

func missing(path, field string) error {
	return parseErr(joinPath(path, field), ErrMissingField)
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

func indexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
