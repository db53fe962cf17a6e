// Manages the database daemon configuration stored in folderdb.yaml.

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/tiendc/go-deepcopy"
	"gopkg.in/yaml.v3"

	"github.com/maruel/folderdb/internal/folderdb"
)

// FileName is the name of the configuration file in the data directory.
const FileName = "folderdb.yaml"

// Config stores the daemon configuration.
// Loaded from folderdb.yaml, created with defaults if missing.
type Config struct {
	// Backup configures the periodic snapshots.
	Backup Backup `yaml:"backup" json:"backup"`

	// InMemory keeps every table, journal and file in process memory. Nothing
	// is persisted and all data is lost on exit. Backups only see the data
	// directory, so automatic backups must be disabled (backup.interval: 0).
	InMemory bool `yaml:"in_memory" json:"in_memory" jsonschema:"description=Keep all data in process memory; nothing is persisted and backup.interval must be 0"`

	// MetricsAddr is the address serving Prometheus metrics. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty" jsonschema:"description=Address serving /metrics; empty disables it,example=localhost:9090"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level" json:"log_level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
}

// Backup defines the automatic backup schedule.
type Backup struct {
	// Interval is the minimum time between two automatic backups.
	// 0 disables automatic backups.
	Interval Duration `yaml:"interval" json:"interval"`

	// CheckDelay is how often the schedule is checked.
	CheckDelay Duration `yaml:"check_delay" json:"check_delay"`

	// MaxKeep is the number of backups retained.
	MaxKeep int `yaml:"max_keep" json:"max_keep" jsonschema:"minimum=1,default=50"`
}

// Validate checks the schedule values.
func (b *Backup) Validate() error {
	if b.Interval < 0 {
		return errors.New("interval must be non-negative")
	}
	if b.CheckDelay <= 0 {
		return errors.New("check_delay must be positive")
	}
	if b.Interval > 0 && b.CheckDelay > b.Interval {
		return errors.New("check_delay must not exceed interval")
	}
	if b.MaxKeep < 1 {
		return errors.New("max_keep must be at least 1")
	}
	return nil
}

// AutoBackup converts the schedule for [folderdb.Db.AutoBackup].
func (b *Backup) AutoBackup() folderdb.AutoBackupConfig {
	return folderdb.AutoBackupConfig{
		Interval:   time.Duration(b.Interval),
		CheckDelay: time.Duration(b.CheckDelay),
		MaxKeep:    b.MaxKeep,
	}
}

// DefaultBackup returns the default schedule.
func DefaultBackup() Backup {
	return Backup{
		Interval:   Duration(folderdb.DefaultBackupInterval),
		CheckDelay: Duration(folderdb.DefaultBackupCheckDelay),
		MaxKeep:    folderdb.DefaultMaxKeep,
	}
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{Backup: DefaultBackup(), LogLevel: "info"}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Backup.Validate(); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if c.InMemory && c.Backup.Interval > 0 {
		return errors.New("in_memory requires backup.interval: 0; backups cannot see in-memory data")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return l, fmt.Errorf("log_level %q must be one of debug, info, warn, error", c.LogLevel)
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("invalid log_level: %w", err)
	}
	return l, nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() Config {
	var out Config
	if err := deepcopy.Copy(&out, c); err != nil {
		// Config only holds plain values.
		return *c
	}
	return out
}

// Load loads configuration from dataDir/folderdb.yaml.
// Creates the file with defaults if it doesn't exist. Fields missing from the
// file keep their default.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, FileName)
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
		}
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	return &cfg, nil
}

// Save saves configuration to dataDir/folderdb.yaml.
func (c *Config) Save(dataDir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil { //nolint:gosec // G301: data directories are world readable
		return fmt.Errorf("failed to create %s: %w", dataDir, err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, FileName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", FileName, err)
	}
	return nil
}

// Schema returns the JSON schema of the configuration file, for editors.
func Schema() *jsonschema.Schema {
	r := jsonschema.Reflector{DoNotReference: true}
	s := r.Reflect(&Config{})
	s.Title = FileName
	return s
}

// Duration is a time.Duration written as a Go duration string like "3h".
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

// JSONSchema describes Duration as a string.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: "Go duration, e.g. 90s, 15m or 3h",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
	}
}
