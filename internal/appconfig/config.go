// Package appconfig manages application configuration and runtime file paths.
package appconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/treykane/ssh-conn/internal/util"
)

const appName = "ssh-conn"

// ProbeConfig controls background reachability probes.
type ProbeConfig struct {
	TimeoutSeconds int  `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Concurrency    int  `mapstructure:"concurrency" yaml:"concurrency"`
	OnStartup      bool `mapstructure:"on_startup" yaml:"on_startup"`
}

// SessionConfig controls the interactive session handoff.
type SessionConfig struct {
	SettleMS        int `mapstructure:"settle_ms" yaml:"settle_ms"`
	HostKeySettleMS int `mapstructure:"host_key_settle_ms" yaml:"host_key_settle_ms"`
}

type SecurityConfig struct {
	RedactErrors bool `mapstructure:"redact_errors" yaml:"redact_errors"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Config holds application-level configuration.
type Config struct {
	SSHConfig     string         `mapstructure:"ssh_config" yaml:"ssh_config"`
	CredentialsDB string         `mapstructure:"credentials_db" yaml:"credentials_db"`
	Language      string         `mapstructure:"language" yaml:"language"`
	Probe         ProbeConfig    `mapstructure:"probe" yaml:"probe"`
	Session       SessionConfig  `mapstructure:"session" yaml:"session"`
	Security      SecurityConfig `mapstructure:"security" yaml:"security"`
	Log           LogConfig      `mapstructure:"log" yaml:"log"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Probe: ProbeConfig{
			TimeoutSeconds: int(util.DefaultProbeTimeout / time.Second),
			Concurrency:    util.DefaultProbeConcurrency,
			OnStartup:      true,
		},
		Session: SessionConfig{
			SettleMS:        int(util.DefaultSettleDelay / time.Millisecond),
			HostKeySettleMS: int(util.HostKeySettleDelay / time.Millisecond),
		},
		Security: SecurityConfig{RedactErrors: true},
		Log:      LogConfig{Level: "info"},
	}
}

// ConfigDir returns the application config directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/ssh-conn.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// FilePath returns the full path to config.yaml.
func FilePath() (string, error) {
	d, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config.yaml"), nil
}

// LogFilePath returns where the TUI writes its log.
func LogFilePath() (string, error) {
	d, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, appName+".log"), nil
}

// Load reads config.yaml from the config directory when present and applies
// SSH_CONN_* environment overrides (SSH_CONN_PROBE_TIMEOUT_SECONDS,
// SSH_CONN_LANG, ...). A missing file is not an error.
func Load() (Config, error) {
	d, err := ConfigDir()
	if err != nil {
		return Config{}, err
	}
	def := Default()

	v := viper.New()
	v.SetDefault("ssh_config", def.SSHConfig)
	v.SetDefault("credentials_db", def.CredentialsDB)
	v.SetDefault("language", def.Language)
	v.SetDefault("probe.timeout_seconds", def.Probe.TimeoutSeconds)
	v.SetDefault("probe.concurrency", def.Probe.Concurrency)
	v.SetDefault("probe.on_startup", def.Probe.OnStartup)
	v.SetDefault("session.settle_ms", def.Session.SettleMS)
	v.SetDefault("session.host_key_settle_ms", def.Session.HostKeySettleMS)
	v.SetDefault("security.redact_errors", def.Security.RedactErrors)
	v.SetDefault("log.level", def.Log.Level)

	v.SetConfigType("yaml")
	v.SetConfigName("config")
	v.AddConfigPath(d)

	v.SetEnvPrefix("SSH_CONN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("language", "SSH_CONN_LANG", "SSH_CONN_LANGUAGE"); err != nil {
		return Config{}, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	def := Default()
	if c.Probe.TimeoutSeconds <= 0 {
		c.Probe.TimeoutSeconds = def.Probe.TimeoutSeconds
	}
	if c.Probe.Concurrency <= 0 {
		c.Probe.Concurrency = def.Probe.Concurrency
	}
	if c.Session.SettleMS < 0 {
		c.Session.SettleMS = def.Session.SettleMS
	}
	if c.Session.HostKeySettleMS < 0 {
		c.Session.HostKeySettleMS = def.Session.HostKeySettleMS
	}
}

// Save writes config to config.yaml.
func Save(cfg Config) error {
	path, err := FilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// SSHConfigPath resolves the ssh config to manage, ~/.ssh/config by default.
func (c Config) SSHConfigPath() (string, error) {
	if c.SSHConfig != "" {
		return expandHome(c.SSHConfig)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, ".ssh", "config"), nil
}

// CredentialsPath resolves the password database location.
func (c Config) CredentialsPath() (string, error) {
	if c.CredentialsDB != "" {
		return expandHome(c.CredentialsDB)
	}
	d, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "credentials.db"), nil
}

func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}

func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Session.SettleMS) * time.Millisecond
}

func (c Config) HostKeySettleDelay() time.Duration {
	return time.Duration(c.Session.HostKeySettleMS) * time.Millisecond
}

// SlogLevel maps log.level onto slog; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}
