package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Radio is the collection metadata carried by a manual content document
type Radio struct {
	ID           string `json:"id" validate:"required"`
	Manufacturer string `json:"manufacturer" validate:"required"`
	Model        string `json:"model" validate:"required"`
	Revision     string `json:"revision" validate:"required"`
	PDFFilename  string `json:"pdfFilename" validate:"required"`
}

// Manual is a decoded manual content document
type Manual struct {
	Radio    Radio
	Sections []Section
}

// Section is one section of a manual in document order
type Section struct {
	ID        string
	Title     string
	SortOrder *int // nil when the document leaves it to position
	Blocks    []Content
}

// BlockCount returns the number of blocks across all sections
func (m *Manual) BlockCount() int {
	n := 0
	for _, s := range m.Sections {
		n += len(s.Blocks)
	}
	return n
}

type rawManual struct {
	Radio    *Radio        `json:"radio"`
	Sections *[]rawSection `json:"sections"`
}

type rawSection struct {
	ID        *string            `json:"id"`
	Title     *string            `json:"title"`
	SortOrder *int               `json:"sortOrder"`
	Blocks    *[]json.RawMessage `json:"blocks"`
}

type rawBlock struct {
	Type        *string           `json:"type"`
	Text        *string           `json:"text"`
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Value       *string           `json:"value"`
	Headers     []string          `json:"headers"`
	Rows        []json.RawMessage `json:"rows"`
}

// ParseManual parses a manual content document. Unknown fields are
// ignored; missing required fields, unknown block types and bad table rows
// fail the whole document.
func ParseManual(data []byte) (*Manual, error) {
	var raw rawManual
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, parseErr("", fmt.Errorf("%w: %v", ErrMalformed, err))
	}

	if raw.Radio == nil {
		return nil, missing("", "radio")
	}
	if err := validateStruct("radio", raw.Radio); err != nil {
		return nil, err
	}
	if raw.Sections == nil {
		return nil, missing("", "sections")
	}

	manual := &Manual{
		Radio:    *raw.Radio,
		Sections: make([]Section, 0, len(*raw.Sections)),
	}

	seen := make(map[string]bool)
	for i, rs := range *raw.Sections {
		path := indexPath("sections", i)

		section, err := decodeSection(path, rs)
		if err != nil {
			return nil, err
		}
		if seen[section.ID] {
			return nil, parseErr(joinPath(path, "id"), fmt.Errorf("%w: section %q", ErrDuplicateID, section.ID))
		}
		seen[section.ID] = true

		manual.Sections = append(manual.Sections, section)
	}

	return manual, nil
}

func decodeSection(path string, rs rawSection) (Section, error) {
	if rs.ID == nil || *rs.ID == "" {
		return Section{}, missing(path, "id")
	}
	if rs.Title == nil {
		return Section{}, missing(path, "title")
	}
	if rs.Blocks == nil {
		return Section{}, missing(path, "blocks")
	}

	section := Section{
		ID:        *rs.ID,
		Title:     *rs.Title,
		SortOrder: rs.SortOrder,
		Blocks:    make([]Content, 0, len(*rs.Blocks)),
	}

	for j, rb := range *rs.Blocks {
		content, err := decodeBlock(indexPath(joinPath(path, "blocks"), j), rb)
		if err != nil {
			return Section{}, err
		}
		section.Blocks = append(section.Blocks, content)
	}

	return section, nil
}

func decodeBlock(path string, data json.RawMessage) (Content, error) {
	var rb rawBlock
	if err := json.Unmarshal(data, &rb); err != nil {
		return nil, parseErr(path, fmt.Errorf("%w: %v", ErrMalformed, err))
	}
	if rb.Type == nil {
		return nil, missing(path, "type")
	}

	switch BlockType(*rb.Type) {
	case BlockParagraph:
		if rb.Text == nil {
			return nil, missing(path, "text")
		}
		return Paragraph{Text: *rb.Text}, nil

	case BlockNote:
		if rb.Text == nil {
			return nil, missing(path, "text")
		}
		return Note{Text: *rb.Text}, nil

	case BlockWarning:
		if rb.Text == nil {
			return nil, missing(path, "text")
		}
		return Warning{Text: *rb.Text}, nil

	case BlockMenuEntry:
		if rb.Name == nil {
			return nil, missing(path, "name")
		}
		if rb.Description == nil {
			return nil, missing(path, "description")
		}
		return MenuEntry{Name: *rb.Name, Description: *rb.Description}, nil

	case BlockSpecification:
		// The label side is read from "name"; a "label" key is not accepted.
		if rb.Name == nil {
			return nil, missing(path, "name")
		}
		if rb.Value == nil {
			return nil, missing(path, "value")
		}
		return Specification{Label: *rb.Name, Value: *rb.Value}, nil

	case BlockSpecificationTable:
		if rb.Rows == nil {
			return nil, missing(path, "rows")
		}
		table := SpecificationTable{
			Headers: rb.Headers,
			Rows:    make([][]string, 0, len(rb.Rows)),
		}
		for k, rawRow := range rb.Rows {
			cells, err := decodeRow(rawRow)
			if err != nil {
				return nil, parseErr(indexPath(joinPath(path, "rows"), k), err)
			}
			table.Rows = append(table.Rows, cells)
		}
		return table, nil

	default:
		return nil, parseErr(joinPath(path, "type"), fmt.Errorf("%w: %q", ErrUnknownBlockType, *rb.Type))
	}
}

// validateStruct runs struct tag validation and reports the first failing
// field as a ParseError
func validateStruct(path string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		// Namespace is "Struct.field[0].sub"; drop the Go type name
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if fe.Tag() == "required" {
			return missing(path, field)
		}
		return parseErr(joinPath(path, field), fmt.Errorf("%w: failed %q validation", ErrMalformed, fe.Tag()))
	}
	return parseErr(path, err)
}
