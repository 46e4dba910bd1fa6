// Package config loads runtime configuration for the record-store server
// from (in increasing precedence) built-in defaults, an optional config
// file, environment variables, and command-line flags, grounded on the
// teacher's viper/pflag layering.
package config

import (
	"fmt"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the record-store server.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Wire    WireConfig    `mapstructure:"wire"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig contains the TCP listener and worker pool settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Workers      int           `mapstructure:"workers"`
}

// StoreConfig points at the on-disk data root, the sandboxed subdirectory
// LOAD/SAVE are confined to, and the tariff file loaded at startup.
type StoreConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	DataSubdir string `mapstructure:"data_subdir"`
	TariffFile string `mapstructure:"tariff_file"`
}

// WireConfig carries frame and chunking limits. The wire package does not
// read these fields: framing and chunking use its own constants
// (wire.MaxPayloadSize, wire.ChunkingThreshold, wire.ChunkSize). Only
// ChunkingThreshold is read, by the server, to count chunked replies in
// metrics.
type WireConfig struct {
	MaxPayloadBytes   int `mapstructure:"max_payload_bytes"`
	ChunkingThreshold int `mapstructure:"chunking_threshold"`
	ChunkSize         int `mapstructure:"chunk_size"`
}

// MetricsConfig controls the Prometheus/health HTTP endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// Load parses CLI flags and reads configuration with precedence
// flags > environment > config file > defaults. args is normally
// os.Args[1:]; passing it explicitly keeps Load testable.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("ispdb-server", flag.ContinueOnError)

	var (
		configFile = fs.String("config", "", "path to a config file (optional)")
		port       = fs.Int("port", 0, "TCP port to listen on")
		dataDir    = fs.String("data-dir", "", "root directory for sandboxed data files")
		tariff     = fs.String("tariff", "", "path to the tariff rates file")
		logLevel   = fs.String("log-level", "", "log level: debug, info, warn, error, none")
	)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 12345)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.workers", 16)

	v.SetDefault("store.data_dir", ".")
	v.SetDefault("store.data_subdir", "server_databases")
	v.SetDefault("store.tariff_file", "tariff.txt")

	v.SetDefault("wire.max_payload_bytes", 1*1024*1024)
	v.SetDefault("wire.chunking_threshold", 60)
	v.SetDefault("wire.chunk_size", 50)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9090")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.file", "")

	v.SetConfigName("ispdb")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if *configFile != "" {
		v.SetConfigFile(*configFile)
	}
	v.SetEnvPrefix("ISPDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && *configFile != "" {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if *port != 0 {
		v.Set("server.port", *port)
	}
	if *dataDir != "" {
		v.Set("store.data_dir", *dataDir)
	}
	if *tariff != "" {
		v.Set("store.tariff_file", *tariff)
	}
	if *logLevel != "" {
		v.Set("logging.level", *logLevel)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal: %w", err)
	}

	if cfg.Server.Workers <= 0 {
		cfg.Server.Workers = 1
	}
	if cfg.Server.Workers > 256 {
		cfg.Server.Workers = 256
	}
	if cfg.Wire.MaxPayloadBytes <= 0 {
		cfg.Wire.MaxPayloadBytes = 1 * 1024 * 1024
	}
	if cfg.Wire.ChunkingThreshold <= 0 {
		cfg.Wire.ChunkingThreshold = 60
	}
	if cfg.Wire.ChunkSize <= 0 {
		cfg.Wire.ChunkSize = 50
	}

	return cfg, nil
}

// Usage returns the flag set's help text, for a --help invocation.
func Usage() string {
	fs := flag.NewFlagSet("ispdb-server", flag.ContinueOnError)
	fs.String("config", "", "path to a config file (optional)")
	fs.Int("port", 0, "TCP port to listen on")
	fs.String("data-dir", "", "root directory for sandboxed data files")
	fs.String("tariff", "", "path to the tariff rates file")
	fs.String("log-level", "", "log level: debug, info, warn, error, none")
	return fs.FlagUsages()
}
