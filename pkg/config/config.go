package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags "-X ...config.Version=...".
var Version = "dev"

// Config holds application-wide configuration
type Config struct {
	Mock    MockConfig    `mapstructure:"mock"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MockConfig struct {
	ListenAddr string `mapstructure:"listenAddr" validate:"required"`
	BaseURL    string `mapstructure:"baseURL" validate:"required,startswith=/"`
	// Upstream receives every request the mock declines. Empty answers 404.
	Upstream         string    `mapstructure:"upstream" validate:"omitempty,url"`
	InsecureUpstream bool      `mapstructure:"insecureUpstream"`
	NullsOrder       string    `mapstructure:"nullsOrder" validate:"omitempty,oneof=first last nullsfirst nullslast"`
	Tables           []string  `mapstructure:"tables" validate:"dive,required"`
	Fixtures         []string  `mapstructure:"fixtures" validate:"dive,required"`
	TLS              TLSConfig `mapstructure:"tls"`
}

type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error none"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	// File enables size-rotated file output in addition to stderr.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB" validate:"gte=0"`
	MaxBackups int    `mapstructure:"maxBackups" validate:"gte=0"`
}

type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listenAddr" validate:"required_if=Enabled true"`
	Path       string `mapstructure:"path" validate:"omitempty,startswith=/"`
}

func Default() Config {
	return Config{
		Mock: MockConfig{
			ListenAddr: ":8080",
			BaseURL:    "/rest/v1",
			NullsOrder: "last",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9100",
			Path:       "/metrics",
		},
	}
}

// setDefaults registers every key of Default so that env-only
// configuration is picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("mock.listenAddr", d.Mock.ListenAddr)
	v.SetDefault("mock.baseURL", d.Mock.BaseURL)
	v.SetDefault("mock.upstream", "")
	v.SetDefault("mock.insecureUpstream", false)
	v.SetDefault("mock.nullsOrder", d.Mock.NullsOrder)
	v.SetDefault("mock.tables", []string{})
	v.SetDefault("mock.fixtures", []string{})
	v.SetDefault("mock.tls.enabled", false)
	v.SetDefault("mock.tls.certFile", "")
	v.SetDefault("mock.tls.keyFile", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("log.maxSizeMB", d.Log.MaxSizeMB)
	v.SetDefault("log.maxBackups", d.Log.MaxBackups)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listenAddr", d.Metrics.ListenAddr)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// Load reads config from file, environment (PGMOCK_MOCK_LISTENADDR, ...) and
// the viper instance v (usually carrying bound cobra flags), in increasing
// priority. A nil v uses a fresh instance.
func Load(cfgFile string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("pgmock")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PGMOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every failing field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %q", e.Namespace(), e.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
