// Package config loads database configuration from defaults, an optional
// YAML file, a .env file and STRUCTDB_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configFileName = "structdb"
	configFileType = "yaml"
	envPrefix      = "STRUCTDB"

	keyDriver            = "driver"
	keyDSN               = "dsn"
	keyDialect           = "dialect"
	keyMaxBatchedIdsSize = "max_batched_ids_size"
	keySerializer        = "serializer"
	keyIdentity          = "identity"
	keyBoltPath          = "bolt_path"
	keyPlanCacheSize     = "plan_cache_size"
	keyLogLevel          = "log_level"
	keyLogFormat         = "log_format"
)

// Config is the configuration of one database.
type Config struct {
	// Driver is "sqlite3" (mattn/go-sqlite3) or "sqlite" (modernc.org/sqlite).
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`

	// Dialect names the embedded SQL template set.
	Dialect string `mapstructure:"dialect"`
	// MaxBatchedIdsSize caps the ids bound into one IN (...) list.
	// Zero keeps the dialect's default.
	MaxBatchedIdsSize int `mapstructure:"max_batched_ids_size"`

	// Serializer is "json" or "msgpack".
	Serializer string `mapstructure:"serializer"`

	// Identity selects where identity counters live: "sql" for the
	// identities table, "bolt" for a bbolt file at BoltPath.
	Identity string `mapstructure:"identity"`
	BoltPath string `mapstructure:"bolt_path"`

	// PlanCacheSize bounds the generated-SQL cache. Zero disables it.
	PlanCacheSize int `mapstructure:"plan_cache_size"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Driver:            "sqlite3",
		DSN:               "structdb.db",
		Dialect:           "sqlite",
		MaxBatchedIdsSize: 0,
		Serializer:        "json",
		Identity:          "sql",
		BoltPath:          "structdb-identities.bolt",
		PlanCacheSize:     256,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load reads configuration. path names a YAML file; when empty,
// structdb.yaml in the working directory is used if present.
// A .env file in the working directory is loaded first; variables
// already set in the environment take precedence over it.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	def := Default()
	v.SetDefault(keyDriver, def.Driver)
	v.SetDefault(keyDSN, def.DSN)
	v.SetDefault(keyDialect, def.Dialect)
	v.SetDefault(keyMaxBatchedIdsSize, def.MaxBatchedIdsSize)
	v.SetDefault(keySerializer, def.Serializer)
	v.SetDefault(keyIdentity, def.Identity)
	v.SetDefault(keyBoltPath, def.BoltPath)
	v.SetDefault(keyPlanCacheSize, def.PlanCacheSize)
	v.SetDefault(keyLogLevel, def.LogLevel)
	v.SetDefault(keyLogFormat, def.LogFormat)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown names and negative sizes.
func (c Config) Validate() error {
	var errs []error
	if !oneOf(c.Driver, "sqlite3", "sqlite") {
		errs = append(errs, fmt.Errorf("driver %q is not sqlite3 or sqlite", c.Driver))
	}
	if c.DSN == "" {
		errs = append(errs, errors.New("dsn is required"))
	}
	if !oneOf(c.Serializer, "json", "msgpack") {
		errs = append(errs, fmt.Errorf("serializer %q is not json or msgpack", c.Serializer))
	}
	if !oneOf(c.Identity, "sql", "bolt") {
		errs = append(errs, fmt.Errorf("identity %q is not sql or bolt", c.Identity))
	}
	if c.Identity == "bolt" && c.BoltPath == "" {
		errs = append(errs, errors.New("bolt_path is required when identity is bolt"))
	}
	if c.MaxBatchedIdsSize < 0 {
		errs = append(errs, fmt.Errorf("max_batched_ids_size must not be negative, got %d", c.MaxBatchedIdsSize))
	}
	if c.PlanCacheSize < 0 {
		errs = append(errs, fmt.Errorf("plan_cache_size must not be negative, got %d", c.PlanCacheSize))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func oneOf(s string, options ...string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}
