// Package source locates manual and template documents in a content
// directory.
//
// Each collection lives in its own sub-directory holding content.json and
// the PDF it names. The set of known collections comes from manifest.json
// when present, otherwise from discovering */content.json.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/vonshlovens/fieldguide/internal/config"
	"github.com/vonshlovens/fieldguide/internal/document"
)

const (
	// ContentFile is the manual document name inside a collection directory
	ContentFile = "content.json"
	// ManifestFile lists the collections of a content directory
	ManifestFile = "manifest.json"
)

// ErrDocumentNotFound is returned when a declared document is missing
var ErrDocumentNotFound = errors.New("document not found")

// Entry is one known collection in the content directory
type Entry struct {
	// ID is the collection id when known up front (manifest), else the
	// directory name
	ID string
	// Dir is the collection directory relative to the content root
	Dir string
}

// Source reads documents from a content directory
type Source struct {
	root            string
	templateFile    string
	ignorePatterns  []string
	includePatterns []string
}

// New creates a Source for the configured content directory
func New(cfg *config.Config) *Source {
	return &Source{
		root:            cfg.ContentDir,
		templateFile:    cfg.TemplateFile,
		ignorePatterns:  cfg.IgnorePatterns,
		includePatterns: cfg.IncludePatterns,
	}
}

// Root returns the content directory
func (s *Source) Root() string {
	return s.root
}

// TemplateFile returns the checklist template path
func (s *Source) TemplateFile() string {
	return s.templateFile
}

// Entries returns the known collections in a stable order
func (s *Source) Entries() ([]Entry, error) {
	data, err := os.ReadFile(filepath.Join(s.root, ManifestFile))
	switch {
	case err == nil:
		return s.manifestEntries(data)
	case errors.Is(err, fs.ErrNotExist):
		return s.discover()
	default:
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
}

func (s *Source) manifestEntries(data []byte) ([]Entry, error) {
	m, err := document.ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ManifestFile, err)
	}

	entries := make([]Entry, 0, len(m.Radios))
	for _, r := range m.Radios {
		entries = append(entries, Entry{ID: r.ID, Dir: dirFromURL(r.ContentURL, r.ID)})
	}
	slog.Debug("loaded manifest", "collections", len(entries), "last_updated", m.LastUpdated)
	return entries, nil
}

// dirFromURL extracts <dir> from ".../<dir>/content.json"
func dirFromURL(contentURL, fallback string) string {
	if contentURL == "" {
		return fallback
	}
	dir := path.Base(path.Dir(contentURL))
	if dir == "." || dir == "/" || dir == "" {
		return fallback
	}
	return dir
}

// discover walks the content root for */content.json
func (s *Source) discover() ([]Entry, error) {
	matches, err := doublestar.Glob(os.DirFS(s.root), "*/"+ContentFile)
	if err != nil {
		return nil, fmt.Errorf("failed to scan content directory: %w", err)
	}

	var entries []Entry
	for _, rel := range matches {
		if !s.ShouldInclude(rel) {
			continue
		}
		dir := path.Dir(rel)
		entries = append(entries, Entry{ID: dir, Dir: dir})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Dir < entries[j].Dir })
	slog.Debug("discovered collections", "root", s.root, "collections", len(entries))
	return entries, nil
}

// IgnoresDir reports whether a directory relative to the content root is
// excluded by the ignore patterns. Include patterns name files, so they do
// not apply here.
func (s *Source) IgnoresDir(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, pattern := range s.ignorePatterns {
		if matched, err := doublestar.Match(pattern, relPath); err == nil && matched {
			return true
		}
	}
	return false
}

// ShouldInclude applies the ignore and include patterns to a path relative
// to the content root. Ignore wins over include; an empty include list
// includes everything.
func (s *Source) ShouldInclude(relPath string) bool {
	relPath = filepath.ToSlash(relPath)

	for _, pattern := range s.ignorePatterns {
		if matched, err := doublestar.Match(pattern, relPath); err == nil && matched {
			return false
		}
	}

	if len(s.includePatterns) == 0 {
		return true
	}
	for _, pattern := range s.includePatterns {
		if matched, err := doublestar.Match(pattern, relPath); err == nil && matched {
			return true
		}
	}
	return false
}

// ManualPath returns the absolute path of an entry's content document
func (s *Source) ManualPath(e Entry) string {
	return filepath.Join(s.root, filepath.FromSlash(e.Dir), ContentFile)
}

// EntryDir returns the absolute directory of an entry
func (s *Source) EntryDir(e Entry) string {
	return filepath.Join(s.root, filepath.FromSlash(e.Dir))
}

// ReadManual reads an entry's content document
func (s *Source) ReadManual(e Entry) ([]byte, error) {
	return readDocument(s.ManualPath(e))
}

// ReadTemplate reads the checklist template document
func (s *Source) ReadTemplate() ([]byte, error) {
	return readDocument(s.templateFile)
}

// EntryForPath maps a changed file back to its collection entry. It
// returns false for anything that is not a collection's content.json.
func (s *Source) EntryForPath(absPath string) (Entry, bool) {
	rel, err := filepath.Rel(s.root, absPath)
	if err != nil {
		return Entry{}, false
	}
	rel = filepath.ToSlash(rel)

	dir, file := path.Split(rel)
	dir = strings.TrimSuffix(dir, "/")
	if file != ContentFile || dir == "" || strings.Contains(dir, "/") || strings.HasPrefix(dir, "..") {
		return Entry{}, false
	}
	if !s.ShouldInclude(rel) {
		return Entry{}, false
	}
	return Entry{ID: dir, Dir: dir}, true
}

func readDocument(p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", p, ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}
