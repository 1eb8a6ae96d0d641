// Package config loads cascbridge preferences.
//
// Precedence, lowest first: built-in defaults, the YAML file, CASCBRIDGE_*
// environment variables (optionally seeded from a dotenv file), then
// command-line flags applied by the caller. The merged result is checked
// against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cascbridge/internal/exchange"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix starts every environment override.
const EnvPrefix = "CASCBRIDGE_"

// Scripts names the Cascadeur commands run for each action.
type Scripts struct {
	ImportObject    string `yaml:"import_object" json:"import_object"`
	ImportAnimation string `yaml:"import_animation" json:"import_animation"`
	ImportScene     string `yaml:"import_scene" json:"import_scene"`
	CleanKeyframes  string `yaml:"clean_keyframes" json:"clean_keyframes"`
}

// Config holds every preference.
type Config struct {
	Role              exchange.Role      `yaml:"role" json:"role"`
	Location          exchange.Location  `yaml:"location" json:"location"`
	ExchangeFolder    string             `yaml:"exchange_folder" json:"exchange_folder"`
	CascadeurExe      string             `yaml:"cascadeur_exe" json:"cascadeur_exe"`
	AddonDir          string             `yaml:"addon_dir" json:"addon_dir"`
	CleanupHours      int                `yaml:"cleanup_hours" json:"cleanup_hours"`
	PollInterval      string             `yaml:"poll_interval" json:"poll_interval"`
	AutoOpenCascadeur bool               `yaml:"auto_open_cascadeur" json:"auto_open_cascadeur"`
	WriteMode         exchange.WriteMode `yaml:"write_mode" json:"write_mode"`
	Journal           string             `yaml:"journal" json:"journal"` // empty disables the journal
	Scripts           Scripts            `yaml:"scripts" json:"scripts"`
}

// Default returns the built-in preferences.
func Default() Config {
	return Config{
		Role:         exchange.RoleBlender,
		Location:     exchange.LocationTemp,
		CleanupHours: 24,
		PollInterval: "1s",
		WriteMode:    exchange.WriteAtomic,
		Scripts: Scripts{
			ImportObject:    "commands.externals.import_object",
			ImportAnimation: "commands.externals.import_animation",
			ImportScene:     "commands.externals.import_scene",
			CleanKeyframes:  "commands.externals.temp_keyframe_cleaner",
		},
	}
}

// Retention is the cleanup interval as a duration.
func (c Config) Retention() time.Duration {
	return time.Duration(c.CleanupHours) * time.Hour
}

// Interval is the parsed poll interval. Validate guarantees it parses.
func (c Config) Interval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// ResolveOptions maps the preferences onto the exchange resolver.
func (c Config) ResolveOptions() exchange.ResolveOptions {
	return exchange.ResolveOptions{
		Location:       c.Location,
		CustomPath:     c.ExchangeFolder,
		HostExecutable: c.CascadeurExe,
		AddonDir:       c.AddonDir,
	}
}

// Load reads the YAML file at path over the defaults. An empty path or an
// empty file yields the defaults. Unknown keys are rejected.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catch typos like "cleanup_hour:"
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnvFile exports the variables of a dotenv file into the process
// environment. Variables already set win.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg from CASCBRIDGE_* variables found by lookup,
// typically os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	var role, location, mode string
	str("ROLE", &role)
	str("LOCATION", &location)
	str("WRITE_MODE", &mode)
	if role != "" {
		cfg.Role = exchange.Role(strings.ToLower(role))
	}
	if location != "" {
		cfg.Location = exchange.Location(location)
	}
	if mode != "" {
		cfg.WriteMode = exchange.WriteMode(mode)
	}

	str("EXCHANGE_FOLDER", &cfg.ExchangeFolder)
	str("CASCADEUR_EXE", &cfg.CascadeurExe)
	str("ADDON_DIR", &cfg.AddonDir)
	str("POLL_INTERVAL", &cfg.PollInterval)
	str("JOURNAL", &cfg.Journal)

	if v, ok := lookup(EnvPrefix + "CLEANUP_HOURS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sCLEANUP_HOURS: %w", EnvPrefix, err)
		}
		cfg.CleanupHours = n
	}
	if v, ok := lookup(EnvPrefix + "AUTO_OPEN_CASCADEUR"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sAUTO_OPEN_CASCADEUR: %w", EnvPrefix, err)
		}
		cfg.AutoOpenCascadeur = b
	}
	return nil
}

// LoadAll runs the whole chain: dotenv file (optional), YAML file
// (optional), environment, validation.
func LoadAll(fs afero.Fs, path, envFile string) (Config, error) {
	if envFile != "" {
		if err := LoadEnvFile(envFile); err != nil {
			return Config{}, err
		}
	}
	cfg, err := Load(fs, path)
	if err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if errs := Validate(cfg); len(errs) > 0 {
		return cfg, errs
	}
	return cfg, nil
}
