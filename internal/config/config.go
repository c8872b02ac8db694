package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const appName = "fieldguide"

// Config holds all application configuration
type Config struct {
	ContentDir      string          `mapstructure:"content_dir" yaml:"content_dir" validate:"required,dir"`
	TemplateFile    string          `mapstructure:"template_file" yaml:"template_file,omitempty"`
	Database        DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Import          ImportConfig    `mapstructure:"import" yaml:"import"`
	IgnorePatterns  []string        `mapstructure:"ignore_patterns" yaml:"ignore_patterns"`
	IncludePatterns []string        `mapstructure:"include_patterns" yaml:"include_patterns,omitempty"`
	Telemetry       TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// DatabaseConfig selects and configures the local store
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver" validate:"oneof=sqlite postgres"`
	// SQLite
	Path string `mapstructure:"path" yaml:"path,omitempty"`
	// Postgres
	Host     string `mapstructure:"host" yaml:"host,omitempty" validate:"required_if=Driver postgres"`
	Port     int    `mapstructure:"port" yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	User     string `mapstructure:"user" yaml:"user,omitempty" validate:"required_if=Driver postgres"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	Database string `mapstructure:"database" yaml:"database,omitempty" validate:"required_if=Driver postgres"`
	Schema   string `mapstructure:"schema" yaml:"schema,omitempty"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode,omitempty"`
}

// ImportConfig holds import pipeline settings
type ImportConfig struct {
	Concurrency       int `mapstructure:"concurrency" yaml:"concurrency" validate:"min=1,max=32"`
	DebounceMs        int `mapstructure:"debounce_ms" yaml:"debounce_ms" validate:"min=0"`
	RetryMaxElapsedMs int `mapstructure:"retry_max_elapsed_ms" yaml:"retry_max_elapsed_ms" validate:"min=0"`
}

// TelemetryConfig toggles OpenTelemetry export
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Stdout  bool `mapstructure:"stdout" yaml:"stdout"`
}

// IsPostgres reports whether the Postgres driver is selected
func (d *DatabaseConfig) IsPostgres() bool {
	return d.Driver == "postgres"
}

// ConnectionString returns the DSN for the configured driver
func (d *DatabaseConfig) ConnectionString() string {
	if !d.IsPostgres() {
		// modernc.org/sqlite applies _pragma on every new connection, so
		// foreign keys (and with them cascade deletes) hold pool-wide.
		return fmt.Sprintf(
			"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate&_time_format=sqlite",
			filepath.ToSlash(d.Path),
		)
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	port := d.Port
	if port == 0 {
		port = 5432
	}
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, port, d.Database, sslMode,
	)
	if d.Schema != "" {
		connStr += "&search_path=" + d.Schema + ",public"
	}
	return connStr
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Import: ImportConfig{
			Concurrency:       4,
			DebounceMs:        500,
			RetryMaxElapsedMs: 5000,
		},
		IgnorePatterns: []string{
			"pdfs/**",
			"extracted/**",
			".git/**",
			"**/.DS_Store",
		},
	}
}

// Load reads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("database.driver", defaults.Database.Driver)
	v.SetDefault("import.concurrency", defaults.Import.Concurrency)
	v.SetDefault("import.debounce_ms", defaults.Import.DebounceMs)
	v.SetDefault("import.retry_max_elapsed_ms", defaults.Import.RetryMaxElapsedMs)
	v.SetDefault("ignore_patterns", defaults.IgnorePatterns)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.stdout", false)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(ConfigDir())
	}

	v.SetEnvPrefix("FIELDGUIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about
	_ = v.BindEnv("content_dir")
	_ = v.BindEnv("template_file")
	_ = v.BindEnv("database.path")
	_ = v.BindEnv("database.password")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is okay if we have environment variables
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// finalize expands paths and derives values left empty in the file
func (c *Config) finalize() error {
	c.ContentDir = expandPath(c.ContentDir)
	c.Database.Password = os.ExpandEnv(c.Database.Password)

	if c.TemplateFile == "" && c.ContentDir != "" {
		c.TemplateFile = filepath.Join(c.ContentDir, "checklists.json")
	} else {
		c.TemplateFile = expandPath(c.TemplateFile)
	}

	if c.Database.IsPostgres() {
		if c.Database.Schema == "" {
			c.Database.Schema = SanitizeIdentifier(appName + "_" + filepath.Base(c.ContentDir))
		}
		return nil
	}

	if c.Database.Path == "" {
		dir, err := GetStateDir()
		if err != nil {
			return err
		}
		c.Database.Path = filepath.Join(dir, appName+".db")
	} else {
		c.Database.Path = expandPath(c.Database.Path)
	}
	return nil
}

// Validate checks struct constraints, including that content_dir exists
func Validate(cfg *Config) error {
	validate := validator.New()

	validate.RegisterValidation("dir", func(fl validator.FieldLevel) bool {
		path := fl.Field().String()
		if path == "" {
			return false
		}
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		return info.IsDir()
	})

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// ConfigDir returns the appropriate config directory for the OS
func ConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName)
		}
		return filepath.Join(os.Getenv("USERPROFILE"), ".config", appName)
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, appName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", appName)
	}
}

// GetStateDir returns the directory holding the config file and the default database
func GetStateDir() (string, error) {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	return dir, nil
}

// expandPath expands ~ and environment variables in a path
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}
	return os.ExpandEnv(path)
}

var (
	nonIdentRegex   = regexp.MustCompile(`[^a-z0-9_]`)
	underscoreRegex = regexp.MustCompile(`_+`)
)

// SanitizeIdentifier converts a name into a valid PostgreSQL schema name:
// lowercase letters, digits and underscores, starting with a letter, at most
// 63 characters.
func SanitizeIdentifier(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	name = nonIdentRegex.ReplaceAllString(name, "")
	name = underscoreRegex.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if len(name) == 0 {
		name = appName
	} else if unicode.IsDigit(rune(name[0])) {
		name = appName + "_" + name
	}

	if len(name) > 63 {
		name = strings.TrimRight(name[:63], "_")
	}

	return name
}
