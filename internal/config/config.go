// Package config loads Cobblepod's runtime configuration from the
// environment. There is no config file by default; viper is wired up so an
// optional cobblepod.yaml can supply values for settings the environment
// leaves unset. Env vars take precedence over the file and remain the
// primary interface operators use today.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every tunable the frontend and worker processes need. Both
// binaries load the same struct so `ROOT` and friends can never drift
// between them.
type Config struct {
	Root   string `mapstructure:"ROOT"`
	Online bool   `mapstructure:"ONLINE"`
	Device string `mapstructure:"DEVICE"`

	BatchSize     int    `mapstructure:"BATCH_SIZE"`
	Windows       bool   `mapstructure:"WINDOWS"`
	StorageSecret string `mapstructure:"STORAGE_SECRET"`

	SSLCertFile string `mapstructure:"SSL_CERTFILE"`
	SSLKeyFile  string `mapstructure:"SSL_KEYFILE"`

	Port int `mapstructure:"PORT"`

	TranscribeURL string `mapstructure:"TRANSCRIBE_URL"`
	DiarizeURL    string `mapstructure:"DIARIZE_URL"`

	StuckThresholdSeconds int `mapstructure:"STUCK_THRESHOLD_SECONDS"`
	JanitorIdleDays       int `mapstructure:"JANITOR_IDLE_DAYS"`
	JanitorIntervalHours  int `mapstructure:"JANITOR_INTERVAL_HOURS"`
}

// Load reads configuration from the environment (and, if present, a
// cobblepod config file on the search path) with the same defaults the
// reference worker used.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("cobblepod")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/cobblepod")

	v.SetDefault("ROOT", ".")
	v.SetDefault("ONLINE", true)
	v.SetDefault("DEVICE", "cpu")
	v.SetDefault("BATCH_SIZE", 8)
	v.SetDefault("WINDOWS", false)
	v.SetDefault("PORT", 8080)
	v.SetDefault("TRANSCRIBE_URL", "http://localhost:8100/transcribe")
	v.SetDefault("DIARIZE_URL", "http://localhost:8100/diarize")
	v.SetDefault("STUCK_THRESHOLD_SECONDS", 600)
	v.SetDefault("JANITOR_IDLE_DAYS", 7)
	v.SetDefault("JANITOR_INTERVAL_HOURS", 24)

	for _, key := range []string{
		"ROOT", "ONLINE", "DEVICE", "BATCH_SIZE", "WINDOWS", "STORAGE_SECRET",
		"SSL_CERTFILE", "SSL_KEYFILE", "PORT", "TRANSCRIBE_URL", "DIARIZE_URL",
		"STUCK_THRESHOLD_SECONDS", "JANITOR_IDLE_DAYS", "JANITOR_INTERVAL_HOURS",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.StorageSecret == "" {
		return nil, fmt.Errorf("STORAGE_SECRET must be set")
	}

	return &cfg, nil
}

// Dirs returns the fixed set of top-level directories Cobblepod manages
// under ROOT.
func (c *Config) Dirs() []string {
	return []string{c.InDir(), c.OutDir(), c.ErrorDir(), c.WorkerDir()}
}

func (c *Config) InDir() string     { return filepath.Join(c.Root, "data", "in") }
func (c *Config) OutDir() string    { return filepath.Join(c.Root, "data", "out") }
func (c *Config) ErrorDir() string  { return filepath.Join(c.Root, "data", "error") }
func (c *Config) WorkerDir() string { return filepath.Join(c.Root, "data", "worker") }
