// Package config holds the parameters of a load run and reads them from a
// YAML file, a .env file and TRIPLOAD_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TRIPLOAD_"

// DriverMemory selects the in-memory store; nothing is persisted.
const DriverMemory = "memory"

// Config is the run configuration. The zero value is not valid; start from
// Default.
type Config struct {
	// Driver is sqlite3, duckdb or memory.
	Driver string `yaml:"driver" validate:"oneof=sqlite3 duckdb memory"`
	// DSN is the store connection target, e.g. a database file path.
	DSN string `yaml:"dsn" validate:"required_unless=Driver memory"`

	TripsPath string `yaml:"trips" validate:"required"`
	ZonesPath string `yaml:"zones" validate:"required"`

	ChunkSize int `yaml:"chunk_size" validate:"gt=0"`
	// RowLimit stops the run after that many input rows. 0 means no limit.
	RowLimit       int64 `yaml:"row_limit" validate:"gte=0"`
	ReportInterval int   `yaml:"report_interval" validate:"gte=0"`

	ReportPath  string `yaml:"report" validate:"required"`
	SummaryPath string `yaml:"summary"`

	LogLevel string `yaml:"log_level" validate:"oneof=panic fatal error warn warning info debug trace"`

	Job        string `yaml:"job" validate:"required"`
	Resume     bool   `yaml:"resume"`
	CacheZones bool   `yaml:"cache_zones"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Driver:         "sqlite3",
		DSN:            "trips.db",
		TripsPath:      "data/raw/yellow_tripdata.csv",
		ZonesPath:      "data/raw/taxi_zone_lookup.csv",
		ChunkSize:      5000,
		ReportInterval: 50000,
		ReportPath:     "cleaning_report.txt",
		LogLevel:       "info",
		Job:            "trips",
	}
}

// Load returns Default overlaid with the YAML file at path (skipped when
// path is empty), then with TRIPLOAD_* variables from the environment and
// from envFile. Variables already set in the environment win over envFile.
// A missing envFile is not an error. The result is not validated.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decodeYAML(data); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) decodeYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overrides fields from TRIPLOAD_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(name string, set func(int64)) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			set(n)
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("DRIVER", &c.Driver)
	str("DSN", &c.DSN)
	str("TRIPS", &c.TripsPath)
	str("ZONES", &c.ZonesPath)
	num("CHUNK_SIZE", func(n int64) { c.ChunkSize = int(n) })
	num("ROW_LIMIT", func(n int64) { c.RowLimit = n })
	num("REPORT_INTERVAL", func(n int64) { c.ReportInterval = int(n) })
	str("REPORT", &c.ReportPath)
	str("SUMMARY", &c.SummaryPath)
	str("LOG_LEVEL", &c.LogLevel)
	str("JOB", &c.Job)
	flag("RESUME", &c.Resume)
	flag("CACHE_ZONES", &c.CacheZones)

	return errors.Join(errs...)
}

// Validate checks every field against its constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
