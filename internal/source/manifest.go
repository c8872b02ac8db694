package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vonshlovens/fieldguide/internal/document"
)

// BuildManifest scans the content directory and describes every collection
// that has a readable content document. Directories without one are
// skipped, as are directories rejected by the ignore patterns.
func (s *Source) BuildManifest(baseURL string, now time.Time) (*document.Manifest, error) {
	entries, err := s.discover()
	if err != nil {
		return nil, err
	}

	baseURL = strings.TrimRight(baseURL, "/")
	m := &document.Manifest{
		Version:     document.ManifestVersion,
		LastUpdated: now.Format(time.DateOnly),
		Radios:      []document.ManifestEntry{},
	}

	for _, e := range entries {
		contentPath := s.ManualPath(e)
		data, err := os.ReadFile(contentPath)
		if err != nil {
			slog.Warn("skipping collection without content", "dir", e.Dir, "error", err)
			continue
		}

		manual, err := document.ParseManual(data)
		if err != nil {
			slog.Warn("skipping collection with invalid content", "dir", e.Dir, "error", err)
			continue
		}

		radio := manual.Radio
		m.Radios = append(m.Radios, document.ManifestEntry{
			ID:           radio.ID,
			Manufacturer: radio.Manufacturer,
			Model:        radio.Model,
			Revision:     radio.Revision,
			ContentURL:   fmt.Sprintf("%s/%s/%s", baseURL, e.Dir, ContentFile),
			PDFURL:       fmt.Sprintf("%s/%s/%s", baseURL, e.Dir, radio.PDFFilename),
			PDFSize:      fileSize(filepath.Join(s.EntryDir(e), radio.PDFFilename)),
			ContentSize:  int64(len(data)),
		})
	}

	return m, nil
}

// WriteManifest writes manifest.json into the content directory
func (s *Source) WriteManifest(m *document.Manifest) (string, error) {
	data, err := document.EncodeManifest(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}

	out := filepath.Join(s.root, ManifestFile)
	if err := os.WriteFile(out, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return out, nil
}

func fileSize(p string) int64 {
	info, err := os.Stat(p)
	if err != nil {
		return 0
	}
	return info.Size()
}
