package document

import (
	"encoding/json"
	"fmt"
)

type wireManual struct {
	Radio    Radio         `json:"radio"`
	Sections []wireSection `json:"sections"`
}

type wireSection struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	SortOrder *int        `json:"sortOrder,omitempty"`
	Blocks    []wireBlock `json:"blocks"`
}

type wireBlock struct {
	Type        BlockType   `json:"type"`
	Text        *string     `json:"text,omitempty"`
	Name        *string     `json:"name,omitempty"`
	Description *string     `json:"description,omitempty"`
	Value       *string     `json:"value,omitempty"`
	Headers     []string    `json:"headers,omitempty"`
	Rows        *[][]string `json:"rows,omitempty"`
}

// EncodeManual renders a manual back into the content document format.
// Table rows are always written in array form.
func EncodeManual(m *Manual) ([]byte, error) {
	out := wireManual{
		Radio:    m.Radio,
		Sections: make([]wireSection, 0, len(m.Sections)),
	}

	for _, s := range m.Sections {
		ws := wireSection{
			ID:        s.ID,
			Title:     s.Title,
			SortOrder: s.SortOrder,
			Blocks:    make([]wireBlock, 0, len(s.Blocks)),
		}
		for _, c := range s.Blocks {
			wb, err := toWireBlock(c)
			if err != nil {
				return nil, fmt.Errorf("section %s: %w", s.ID, err)
			}
			ws.Blocks = append(ws.Blocks, wb)
		}
		out.Sections = append(out.Sections, ws)
	}

	return json.MarshalIndent(out, "", "  ")
}

func toWireBlock(c Content) (wireBlock, error) {
	switch b := c.(type) {
	case Paragraph:
		return wireBlock{Type: BlockParagraph, Text: &b.Text}, nil
	case Note:
		return wireBlock{Type: BlockNote, Text: &b.Text}, nil
	case Warning:
		return wireBlock{Type: BlockWarning, Text: &b.Text}, nil
	case MenuEntry:
		return wireBlock{Type: BlockMenuEntry, Name: &b.Name, Description: &b.Description}, nil
	case Specification:
		return wireBlock{Type: BlockSpecification, Name: &b.Label, Value: &b.Value}, nil
	case SpecificationTable:
		rows := b.Rows
		if rows == nil {
			rows = [][]string{}
		}
		return wireBlock{Type: BlockSpecificationTable, Headers: b.Headers, Rows: &rows}, nil
	default:
		return wireBlock{}, fmt.Errorf("%w: %T", ErrUnknownBlockType, c)
	}
}
