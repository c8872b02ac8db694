package document

import (
	"encoding/json"
	"fmt"
)

// ManifestVersion is the manifest format written by this version
const ManifestVersion = 1

// Manifest lists the collections available in a content directory
type Manifest struct {
	Version     int             `json:"version"`
	LastUpdated string          `json:"lastUpdated"`
	Radios      []ManifestEntry `json:"radios" validate:"dive"`
}

// ManifestEntry describes one collection's downloadable documents
type ManifestEntry struct {
	ID           string `json:"id" validate:"required"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Revision     string `json:"revision"`
	ContentURL   string `json:"contentURL"`
	PDFURL       string `json:"pdfURL"`
	PDFSize      int64  `json:"pdfSize"`
	ContentSize  int64  `json:"contentSize"`
}

// ParseManifest parses a manifest document
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, parseErr("", fmt.Errorf("%w: %v", ErrMalformed, err))
	}
	if err := validateStruct("", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// EncodeManifest renders a manifest as indented JSON
func EncodeManifest(m *Manifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
