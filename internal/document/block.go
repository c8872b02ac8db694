package document

import (
	"encoding/json"
	"fmt"
)

// BlockType is the discriminant of a content block
type BlockType string

const (
	BlockParagraph          BlockType = "paragraph"
	BlockMenuEntry          BlockType = "menuEntry"
	BlockSpecification      BlockType = "specification"
	BlockSpecificationTable BlockType = "specificationTable"
	BlockNote               BlockType = "note"
	BlockWarning            BlockType = "warning"
)

// Content is the payload of a single block. Each BlockType has exactly one
// concrete implementation, so callers switch on the concrete type (or on
// Type()) before reading fields.
type Content interface {
	Type() BlockType
	// SearchFragments returns the user-visible text of the block in the
	// order it feeds the section search string.
	SearchFragments() []string
}

// Paragraph is free running text
type Paragraph struct {
	Text string `json:"text"`
}

// MenuEntry documents one radio menu item
type MenuEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Specification is a single label/value pair
type Specification struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SpecificationTable is a table of cells. Headers are display-only.
type SpecificationTable struct {
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows"`
}

// Note is highlighted informational text
type Note struct {
	Text string `json:"text"`
}

// Warning is highlighted cautionary text
type Warning struct {
	Text string `json:"text"`
}

func (Paragraph) Type() BlockType          { return BlockParagraph }
func (MenuEntry) Type() BlockType          { return BlockMenuEntry }
func (Specification) Type() BlockType      { return BlockSpecification }
func (SpecificationTable) Type() BlockType { return BlockSpecificationTable }
func (Note) Type() BlockType               { return BlockNote }
func (Warning) Type() BlockType            { return BlockWarning }

func (p Paragraph) SearchFragments() []string     { return []string{p.Text} }
func (m MenuEntry) SearchFragments() []string     { return []string{m.Name, m.Description} }
func (s Specification) SearchFragments() []string { return []string{s.Label, s.Value} }
func (n Note) SearchFragments() []string          { return []string{n.Text} }
func (w Warning) SearchFragments() []string       { return []string{w.Text} }

// SearchFragments returns the row cells only; headers are not searchable.
func (t SpecificationTable) SearchFragments() []string {
	var cells []string
	for _, row := range t.Rows {
		cells = append(cells, row...)
	}
	return cells
}

// MarshalPayload encodes a block's content for storage. Only the fields of
// the concrete variant are written.
func MarshalPayload(c Content) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("nil block content")
	}
	return json.Marshal(c)
}

// UnmarshalPayload decodes stored content for the given block type
func UnmarshalPayload(t BlockType, data []byte) (Content, error) {
	switch t {
	case BlockParagraph:
		return decodeStored[Paragraph](t, data)
	case BlockMenuEntry:
		return decodeStored[MenuEntry](t, data)
	case BlockSpecification:
		return decodeStored[Specification](t, data)
	case BlockSpecificationTable:
		return decodeStored[SpecificationTable](t, data)
	case BlockNote:
		return decodeStored[Note](t, data)
	case BlockWarning:
		return decodeStored[Warning](t, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlockType, t)
	}
}

func decodeStored[T Content](t BlockType, data []byte) (Content, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", t, err)
	}
	return v, nil
}
