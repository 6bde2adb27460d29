package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/YJBallestero/schedule/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
timezone: Europe/Berlin
working_dir: /srv/app
log:
  level: debug
lock:
  backend: redis
  ttl: 45s
  redis:
    addr: localhost:6379
    db: 2
smtp:
  host: mail.example.com
  port: 587
  username: cron
  password: hunter2
  from: cron@example.com
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Timezone != "Europe/Berlin" || cfg.WorkingDir != "/srv/app" {
		t.Errorf("unexpected top-level fields: %+v", cfg)
	}
	if cfg.Lock.Backend != "redis" || cfg.Lock.Redis.Addr != "localhost:6379" || cfg.Lock.Redis.DB != 2 {
		t.Errorf("unexpected lock config: %+v", cfg.Lock)
	}
	if cfg.Lock.TTL.Std() != 45*time.Second {
		t.Errorf("TTL = %v, want 45s", cfg.Lock.TTL.Std())
	}
	if cfg.SMTP == nil || cfg.SMTP.Host != "mail.example.com" || cfg.SMTP.Port != 587 {
		t.Errorf("unexpected smtp config: %+v", cfg.SMTP)
	}

	level, err := cfg.LogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("LogLevel = (%v, %v), want debug", level, err)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Europe/Berlin" {
		t.Errorf("Location = (%v, %v)", loc, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Lock.Backend != "file" {
		t.Errorf("default backend = %q, want file", cfg.Lock.Backend)
	}
	level, err := cfg.LogLevel()
	if err != nil || level != slog.LevelInfo {
		t.Errorf("default level = (%v, %v), want info", level, err)
	}
	if cfg.SMTP != nil {
		t.Error("smtp should default to disabled")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := config.Load(writeConfig(t, "lock:\n  backned: file\n"))
	if err == nil {
		t.Fatal("misspelled key was accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown backend", "lock:\n  backend: zookeeper\n", "unknown lock backend"},
		{"redis without addr", "lock:\n  backend: redis\n", "lock.redis.addr"},
		{"postgres without dsn", "lock:\n  backend: postgres\n", "lock.postgres.dsn"},
		{"bad level", "log:\n  level: loud\n", "unknown log level"},
		{"bad timezone", "timezone: Mars/Olympus\n", "unknown timezone"},
		{"smtp without host", "smtp:\n  port: 25\n", "smtp.host"},
		{"negative ttl", "lock:\n  ttl: -5s\n", "duration must be >= 0"},
		{"job without command", "jobs:\n  - name: backup\n", "command is required"},
		{"job email without smtp", "jobs:\n  - command: ls\n    send_output_to: /tmp/out\n    email_output_to: [ops@example.com]\n", "requires an smtp block"},
		{"job email without redirect", "smtp:\n  host: mail.example.com\njobs:\n  - command: ls\n    email_output_to: [ops@example.com]\n", "requires output redirection"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("invalid config was accepted")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}
