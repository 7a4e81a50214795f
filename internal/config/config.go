package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths   PathsConfig   `mapstructure:"paths"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Server  ServerConfig  `mapstructure:"server"`
	Text    TextConfig    `mapstructure:"text"`
	Log     LogConfig     `mapstructure:"log"`
}

type PathsConfig struct {
	ManifestPath string `mapstructure:"manifest_path"`
	VocabPath    string `mapstructure:"vocab_path"`
}

type RuntimeConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTAPIVersion  uint32 `mapstructure:"ort_api_version"`
	Seed           int64  `mapstructure:"seed"`
	Steps          int    `mapstructure:"steps"`
}

type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	Workers         int           `mapstructure:"workers"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type TextConfig struct {
	Polyphone bool `mapstructure:"polyphone"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			ManifestPath: "models/manifest.json",
			VocabPath:    "models/vocab.txt",
		},
		Runtime: RuntimeConfig{
			ORTLibraryPath: "",
			ORTAPIVersion:  23,
			Seed:           0,
			Steps:          32,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         1,
			MaxBodyBytes:    32 << 20,
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Text: TextConfig{
			Polyphone: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-manifest-path", defaults.Paths.ManifestPath, "Path to ONNX graph manifest")
	fs.String("paths-vocab-path", defaults.Paths.VocabPath, "Path to vocabulary file (one token per line)")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.Uint32("runtime-ort-api-version", defaults.Runtime.ORTAPIVersion, "ONNX Runtime C API version")
	fs.Int64("runtime-seed", defaults.Runtime.Seed, "Seed recorded for reproducibility tracing")
	fs.Int("runtime-steps", defaults.Runtime.Steps, "Diffusion time steps")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-workers", defaults.Server.Workers, "Max concurrent preprocess requests")
	fs.Int64("server-max-body-bytes", defaults.Server.MaxBodyBytes, "Max HTTP request body size in bytes")
	fs.Duration("server-request-timeout", defaults.Server.RequestTimeout, "Per-request timeout")
	fs.Duration("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout")
	fs.Bool("text-polyphone", defaults.Text.Polyphone, "Enable context-aware pinyin for polyphonic characters")
	fs.String("log-level", defaults.Log.Level, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("VOICEPREP")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "VOICEPREP_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("voiceprep")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// Validate reports configuration values that cannot work at runtime.
func (c Config) Validate() error {
	if c.Paths.ManifestPath == "" {
		return errors.New("paths.manifest_path is required")
	}
	if c.Paths.VocabPath == "" {
		return errors.New("paths.vocab_path is required")
	}
	if c.Runtime.Steps < 1 {
		return fmt.Errorf("runtime.steps must be >= 1, got %d", c.Runtime.Steps)
	}
	if c.Server.Workers < 1 {
		return fmt.Errorf("server.workers must be >= 1, got %d", c.Server.Workers)
	}
	if c.Server.MaxBodyBytes < 1 {
		return fmt.Errorf("server.max_body_bytes must be >= 1, got %d", c.Server.MaxBodyBytes)
	}
	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.manifest_path", c.Paths.ManifestPath)
	v.SetDefault("paths.vocab_path", c.Paths.VocabPath)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_api_version", c.Runtime.ORTAPIVersion)
	v.SetDefault("runtime.seed", c.Runtime.Seed)
	v.SetDefault("runtime.steps", c.Runtime.Steps)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_body_bytes", c.Server.MaxBodyBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("text.polyphone", c.Text.Polyphone)
	v.SetDefault("log.level", c.Log.Level)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("paths.manifest_path", "paths-manifest-path")
	v.RegisterAlias("paths.vocab_path", "paths-vocab-path")
	v.RegisterAlias("runtime.ort_library_path", "runtime-ort-library-path")
	v.RegisterAlias("runtime.ort_library_path", "ort-lib")
	v.RegisterAlias("runtime.ort_api_version", "runtime-ort-api-version")
	v.RegisterAlias("runtime.seed", "runtime-seed")
	v.RegisterAlias("runtime.steps", "runtime-steps")
	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.workers", "server-workers")
	v.RegisterAlias("server.max_body_bytes", "server-max-body-bytes")
	v.RegisterAlias("server.request_timeout", "server-request-timeout")
	v.RegisterAlias("server.shutdown_timeout", "server-shutdown-timeout")
	v.RegisterAlias("text.polyphone", "text-polyphone")
	v.RegisterAlias("log.level", "log-level")
}
