package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"fieldguide_content", "fieldguide_content"},
		{"Field-Guide", "field_guide"},
		{"Elecraft Manuals", "elecraft_manuals"},
		{"Manuals (2026)", "manuals_2026"},
		{"Radios & Rigs", "radios_rigs"},
		{"Café Content", "caf_content"},
		{"2026 content", "fieldguide_2026_content"},
		{"", "fieldguide"},
		{"---", "fieldguide"},
		{"  content  ", "content"},
		{"my--content", "my_content"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := SanitizeIdentifier(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeIdentifier(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeIdentifier_ValidIdentifier(t *testing.T) {
	validIdent := regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)
	for _, input := range []string{
		"Elecraft KX2",
		"123",
		strings.Repeat("manual", 20),
		"日本語",
	} {
		if got := SanitizeIdentifier(input); !validIdent.MatchString(got) {
			t.Errorf("SanitizeIdentifier(%q) = %q is not a valid identifier", input, got)
		}
	}
}

func TestConnectionString(t *testing.T) {
	sqlite := DatabaseConfig{Driver: "sqlite", Path: "/tmp/fg.db"}
	got := sqlite.ConnectionString()
	if !strings.HasPrefix(got, "file:/tmp/fg.db?") {
		t.Errorf("unexpected sqlite DSN %q", got)
	}
	if !strings.Contains(got, "_pragma=foreign_keys(1)") {
		t.Errorf("sqlite DSN must enable foreign keys: %q", got)
	}

	pg := DatabaseConfig{Driver: "postgres", Host: "db", User: "u", Password: "p", Database: "fg", Schema: "fieldguide"}
	want := "postgres://u:p@db:5432/fg?sslmode=prefer&search_path=fieldguide,public"
	if got := pg.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	contentDir := filepath.Join(dir, "content")
	if err := os.Mkdir(contentDir, 0755); err != nil {
		t.Fatalf("failed to create content dir: %v", err)
	}

	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := "content_dir: " + contentDir + "\n" +
		"database:\n  path: " + filepath.Join(dir, "fg.db") + "\n" +
		"import:\n  concurrency: 2\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ContentDir != contentDir {
		t.Errorf("ContentDir = %q, want %q", cfg.ContentDir, contentDir)
	}
	if cfg.TemplateFile != filepath.Join(contentDir, "checklists.json") {
		t.Errorf("TemplateFile = %q", cfg.TemplateFile)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Import.Concurrency != 2 {
		t.Errorf("Concurrency = %d, want 2", cfg.Import.Concurrency)
	}
	if cfg.Import.DebounceMs != 500 {
		t.Errorf("DebounceMs = %d, want default 500", cfg.Import.DebounceMs)
	}
	if len(cfg.IgnorePatterns) == 0 {
		t.Error("expected default ignore patterns")
	}
}

func TestLoad_MissingContentDir(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := "content_dir: " + filepath.Join(dir, "nope") + "\n" +
		"database:\n  path: " + filepath.Join(dir, "fg.db") + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(cfgPath); err == nil {
		t.Fatal("expected validation error for missing content_dir")
	}
}

func TestLoad_PostgresRequiresHost(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := "content_dir: " + dir + "\n" +
		"database:\n  driver: postgres\n  user: u\n  database: fg\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(cfgPath)
	if err == nil {
		t.Fatal("expected validation error for missing host")
	}
	if !strings.Contains(err.Error(), "Host") {
		t.Errorf("error should mention Host, got: %v", err)
	}
}
