// Package config loads flashback settings from defaults, an optional YAML
// file, FLASHBACK_* environment variables and command-line flags, in that
// order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/conorfennell/flashback/internal/sm2"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	envPrefix         = "FLASHBACK_"
	defaultConfigFile = "flashback.yaml"
)

// Config holds all the configuration for the application.
type Config struct {
	DB        DBConfig       `koanf:"db"`
	Server    ServerConfig   `koanf:"server"`
	Log       LogConfig      `koanf:"log"`
	Calendar  CalendarConfig `koanf:"calendar"`
	Scheduler sm2.Params     `koanf:"scheduler"`
	Import    ImportConfig   `koanf:"import"`
}

type DBConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite sqlite3"`
	Path   string `koanf:"path" validate:"required"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// CalendarConfig decides where one study day ends and the next begins.
// Timezone is an IANA name, or "Local" for the system zone.
type CalendarConfig struct {
	Timezone string `koanf:"timezone" validate:"required"`
}

type ImportConfig struct {
	// CacheDir holds local checkouts of git deck repositories.
	CacheDir string `koanf:"cache_dir" validate:"required"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DB:        DBConfig{Driver: "sqlite", Path: "flashback.db"},
		Server:    ServerConfig{Addr: ":8080"},
		Log:       LogConfig{Level: "info", Format: "text"},
		Calendar:  CalendarConfig{Timezone: "Local"},
		Scheduler: *sm2.DefaultParams(),
		Import:    ImportConfig{CacheDir: "repos"},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"db":         "db.path",
	"driver":     "db.driver",
	"addr":       "server.addr",
	"log-level":  "log.level",
	"log-format": "log.format",
	"timezone":   "calendar.timezone",
	"cache-dir":  "import.cache_dir",
}

// NewFlagSet returns the flags understood by Load.
func NewFlagSet(name string) *pflag.FlagSet {
	d := Default()
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Path to a YAML config file (default "+defaultConfigFile+" if present)")
	fs.String("db", d.DB.Path, "Path to the SQLite database file")
	fs.String("driver", d.DB.Driver, "SQLite driver: sqlite (pure Go) or sqlite3 (cgo)")
	fs.String("addr", d.Server.Addr, "Address for the study server to listen on")
	fs.String("log-level", d.Log.Level, "Log level: debug, info, warn or error")
	fs.String("log-format", d.Log.Format, "Log format: text or json")
	fs.String("timezone", d.Calendar.Timezone, "IANA time zone that defines the study day")
	fs.String("cache-dir", d.Import.CacheDir, "Directory for git deck checkouts")
	return fs
}

// Load parses args with fs and merges every configuration source. It
// returns the validated configuration and the remaining positional args.
func Load(fs *pflag.FlagSet, args []string) (*Config, []string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	k := koanf.New(".")

	path, _ := fs.GetString("config")
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load environment: %w", err)
	}

	err = k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load flags: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, fs.Args(), nil
}

var validate = validator.New()

// Validate checks every section, including the scheduler parameters.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid configuration: calendar.timezone: %w", err)
	}
	return nil
}

// Location returns the time zone that defines the study day.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Calendar.Timezone)
}

// Logger builds the slog logger described by the log section.
func (l LogConfig) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
