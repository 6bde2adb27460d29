// Package config loads worker configuration from a YAML file. The file
// selects the lock backend, timezone, working directory, log level, and
// optional SMTP delivery for emailed output. Unknown keys are rejected so
// typos fail loudly at startup instead of silently falling back to
// defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Config is the worker configuration tree.
type Config struct {
	// Timezone is an IANA zone name applied to every event unless the
	// event sets its own. Empty means the host's local zone.
	Timezone string `yaml:"timezone"`

	// WorkingDir is the directory commands run in. Empty means the
	// worker's own working directory.
	WorkingDir string `yaml:"working_dir"`

	Log  LogConfig  `yaml:"log"`
	Lock LockConfig `yaml:"lock"`

	// SMTP enables emailed event output. Nil disables mail delivery.
	SMTP *SMTPConfig `yaml:"smtp,omitempty"`

	// Jobs are the commands the worker schedules.
	Jobs []JobConfig `yaml:"jobs"`
}

// JobConfig declares one scheduled command.
type JobConfig struct {
	// Name labels the job in logs and email subjects.
	Name string `yaml:"name"`

	// Command is the shell command line to run.
	Command string `yaml:"command"`

	// Cron is the trigger expression. Empty means every minute.
	Cron string `yaml:"cron"`

	// Timezone overrides the worker timezone for this job.
	Timezone string `yaml:"timezone"`

	// User runs the command under sudo -u as this user.
	User string `yaml:"user"`

	WithoutOverlapping bool `yaml:"without_overlapping"`
	OnOneServer        bool `yaml:"on_one_server"`
	SuppressErrors     bool `yaml:"suppress_errors"`

	// SendOutputTo and AppendOutputTo redirect command output to a file,
	// truncating or appending respectively.
	SendOutputTo   string `yaml:"send_output_to"`
	AppendOutputTo string `yaml:"append_output_to"`

	// EmailOutputTo mails the captured output after each run. Requires
	// output redirection and a configured smtp block.
	EmailOutputTo []string `yaml:"email_output_to"`

	// ThenPing issues a GET to the URL after each run.
	ThenPing string `yaml:"then_ping"`
}

// LogConfig controls worker logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `yaml:"level"`
}

// LockConfig selects the overlap-prevention backend.
type LockConfig struct {
	// Backend is one of file, memory, redis, postgres. Empty means file.
	Backend string `yaml:"backend"`

	// Dir is the lock directory for the file backend. Empty means a
	// schedule-locks directory under the OS temp dir.
	Dir string `yaml:"dir"`

	// TTL is how long an unreleased lock is honored before it is
	// considered stale. Zero means each backend's default.
	TTL Duration `yaml:"ttl"`

	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// RedisConfig configures the redis lock backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig configures the postgres lock backend.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// SMTPConfig configures outbound mail for emailed event output.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`

	// Retries is how many extra delivery attempts follow a failed send.
	Retries int `yaml:"retries"`
}

// Duration is a time.Duration that unmarshals from Go duration strings
// such as "30s" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration must be >= 0, got %q", raw)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file is given: file locks
// in the OS temp dir, info logging, host timezone.
func Default() *Config {
	return &Config{
		Log:  LogConfig{Level: "info"},
		Lock: LockConfig{Backend: "file"},
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Lock.Backend {
	case "", "file", "memory":
	case "redis":
		if c.Lock.Redis.Addr == "" {
			return fmt.Errorf("lock.redis.addr is required for the redis backend")
		}
	case "postgres":
		if c.Lock.Postgres.DSN == "" {
			return fmt.Errorf("lock.postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.SMTP != nil && c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is required when smtp is configured")
	}

	for i, job := range c.Jobs {
		if job.Command == "" {
			return fmt.Errorf("jobs[%d]: command is required", i)
		}
		if job.Timezone != "" {
			if _, err := time.LoadLocation(job.Timezone); err != nil {
				return fmt.Errorf("jobs[%d]: unknown timezone %q", i, job.Timezone)
			}
		}
		if len(job.EmailOutputTo) > 0 {
			if c.SMTP == nil {
				return fmt.Errorf("jobs[%d]: email_output_to requires an smtp block", i)
			}
			if job.SendOutputTo == "" && job.AppendOutputTo == "" {
				return fmt.Errorf("jobs[%d]: email_output_to requires output redirection", i)
			}
		}
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// LogLevel resolves the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", c.Log.Level)
	}
}
