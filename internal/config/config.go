// Package config provides configuration management for the devops CLI.
//
// It implements the disciplined Viper pattern where Viper stays contained
// in this package and the rest of the codebase receives explicit Config structs.
// Configuration sources are resolved in this order: flags > env > config file > defaults.
//
// Connection settings for the stack itself live in the env file and are
// loaded separately, see Settings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the explicit configuration struct
// This is what the rest of the codebase sees
type Config struct {
	ProjectDir     string
	ComposeFile    string
	EnvFile        string
	ComposeCommand []string
	DBService      string
	LogLevel       string
	Probe          ProbeConfig
	Hooks          HookConfig
	EnvDefaults    EnvDefaults
}

// ProbeConfig bounds the database readiness wait
type ProbeConfig struct {
	Attempts       int
	Delay          time.Duration
	ConnectTimeout time.Duration
}

// HookConfig holds the application commands run by the guided setup
type HookConfig struct {
	RootUser []string
	EndUser  []string
}

// EnvDefaults are the values written by env create
type EnvDefaults struct {
	DBHost      string
	DBPort      int
	DBUser      string
	Instance    string
	Branch      string
	TLSSecurity string
	TLSCertMode string
	AppHost     string
	AppPort     int
}

// DefaultDBService is used when the manifest does not reveal the database service.
const DefaultDBService = "todo_db"

// Init initializes viper with defaults and config file paths
func Init() error {
	// Set config file name and type. Viper also tries the bare name, so it
	// must not collide with the devops binary in the working directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Add config file search paths
	viper.AddConfigPath("$HOME/.devops")
	viper.AddConfigPath(".devops")

	setDefaults(viper.GetViper())

	// Bind environment variables with prefix
	viper.SetEnvPrefix("DEVOPS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrap(err, "failed to read config file")
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("project-dir", ".")
	v.SetDefault("compose-file", "docker-compose.yml")
	v.SetDefault("env-file", "envs/cli.env")
	v.SetDefault("compose-command", []string{"docker", "compose"})
	v.SetDefault("db-service", "")
	v.SetDefault("log-level", "warn")

	v.SetDefault("probe.attempts", 15)
	v.SetDefault("probe.delay", 2*time.Second)
	v.SetDefault("probe.connect-timeout", 2*time.Second)

	v.SetDefault("hooks.root-user", []string{"uv", "run", "cli", "user", "create-root"})
	v.SetDefault("hooks.end-user", []string{"uv", "run", "cli", "user", "create"})

	v.SetDefault("env.db-host", "localhost")
	v.SetDefault("env.db-port", 5656)
	v.SetDefault("env.db-user", "admin")
	v.SetDefault("env.instance", "todo")
	v.SetDefault("env.branch", "main")
	v.SetDefault("env.tls-security", "insecure")
	v.SetDefault("env.tls-cert-mode", "generate_self_signed")
	v.SetDefault("env.app-host", "0.0.0.0")
	v.SetDefault("env.app-port", 5000)
}

// BindFlag binds a persistent CLI flag to a config key
func BindFlag(key string, flag *pflag.Flag) error {
	return viper.BindPFlag(key, flag)
}

// Load reads from all sources and returns explicit Config
func Load() (*Config, error) {
	return load(viper.GetViper())
}

func load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ProjectDir:     v.GetString("project-dir"),
		ComposeFile:    v.GetString("compose-file"),
		EnvFile:        v.GetString("env-file"),
		ComposeCommand: v.GetStringSlice("compose-command"),
		DBService:      v.GetString("db-service"),
		LogLevel:       v.GetString("log-level"),
		Probe: ProbeConfig{
			Attempts:       v.GetInt("probe.attempts"),
			Delay:          v.GetDuration("probe.delay"),
			ConnectTimeout: v.GetDuration("probe.connect-timeout"),
		},
		Hooks: HookConfig{
			RootUser: v.GetStringSlice("hooks.root-user"),
			EndUser:  v.GetStringSlice("hooks.end-user"),
		},
		EnvDefaults: EnvDefaults{
			DBHost:      v.GetString("env.db-host"),
			DBPort:      v.GetInt("env.db-port"),
			DBUser:      v.GetString("env.db-user"),
			Instance:    v.GetString("env.instance"),
			Branch:      v.GetString("env.branch"),
			TLSSecurity: v.GetString("env.tls-security"),
			TLSCertMode: v.GetString("env.tls-cert-mode"),
			AppHost:     v.GetString("env.app-host"),
			AppPort:     v.GetInt("env.app-port"),
		},
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures config is sane
func (c *Config) Validate() error {
	if c.ProjectDir == "" {
		return errors.New("project-dir must not be empty")
	}

	if c.ComposeFile == "" {
		return errors.New("compose-file must not be empty")
	}

	if c.EnvFile == "" {
		return errors.New("env-file must not be empty")
	}

	if len(c.ComposeCommand) == 0 {
		return errors.New("compose-command must not be empty")
	}

	if c.Probe.Attempts < 1 {
		return errors.Newf("invalid probe attempts: %d (must be at least 1)", c.Probe.Attempts)
	}

	if c.Probe.Delay < 0 {
		return errors.Newf("invalid probe delay: %s", c.Probe.Delay)
	}

	if c.Probe.ConnectTimeout <= 0 {
		return errors.Newf("invalid probe connect timeout: %s", c.Probe.ConnectTimeout)
	}

	if len(c.Hooks.RootUser) == 0 || len(c.Hooks.EndUser) == 0 {
		return errors.New("user creation hooks must not be empty")
	}

	if err := validTLSSecurity(c.EnvDefaults.TLSSecurity); err != nil {
		return err
	}

	if c.EnvDefaults.DBPort < 1 || c.EnvDefaults.DBPort > 65535 {
		return errors.Newf("invalid database port: %d", c.EnvDefaults.DBPort)
	}

	if c.EnvDefaults.AppPort < 1 || c.EnvDefaults.AppPort > 65535 {
		return errors.Newf("invalid app port: %d", c.EnvDefaults.AppPort)
	}

	return nil
}

// Display shows current config (for devops config show)
func Display(cfg *Config) string {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = "(not found)"
	}

	return fmt.Sprintf(`Configuration:
  project-dir:        %s
  compose-file:       %s
  compose-command:    %s
  env-file:           %s
  db-service:         %s
  log-level:          %s

Readiness probe:
  attempts:           %d
  delay:              %s
  connect-timeout:    %s

Hooks:
  root-user:          %s
  end-user:           %s

Sources:
  Config file:        %s
  Environment:        DEVOPS_*
  Flags:              (global)
`,
		cfg.ProjectDir,
		cfg.ComposeFile,
		strings.Join(cfg.ComposeCommand, " "),
		cfg.EnvFile,
		orDetect(cfg.DBService),
		cfg.LogLevel,
		cfg.Probe.Attempts,
		cfg.Probe.Delay,
		cfg.Probe.ConnectTimeout,
		strings.Join(cfg.Hooks.RootUser, " "),
		strings.Join(cfg.Hooks.EndUser, " "),
		configFile,
	)
}

func orDetect(s string) string {
	if s == "" {
		return "(detect from manifest)"
	}
	return s
}
