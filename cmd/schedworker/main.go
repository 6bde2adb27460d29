// Command schedworker runs a schedule worker from a YAML configuration
// file. It registers the configured jobs, wakes once per minute, and runs
// whatever is due until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"
	goredis "github.com/redis/go-redis/v9"

	schedule "github.com/YJBallestero/schedule"
	"github.com/YJBallestero/schedule/config"
	"github.com/YJBallestero/schedule/lock"
	lockfile "github.com/YJBallestero/schedule/lock/file"
	lockmemory "github.com/YJBallestero/schedule/lock/memory"
	lockpostgres "github.com/YJBallestero/schedule/lock/postgres"
	lockredis "github.com/YJBallestero/schedule/lock/redis"
	"github.com/YJBallestero/schedule/mail"
	"github.com/YJBallestero/schedule/mail/smtp"
	"github.com/YJBallestero/schedule/middleware"
	"github.com/YJBallestero/schedule/worker"
)

func main() {
	configPath := flag.String("config", "schedule.yaml", "path to the worker configuration file")
	oneShot := flag.Bool("once", false, "run a single scheduling pass and exit")
	flag.Parse()

	if err := run(*configPath, *oneShot); err != nil {
		fmt.Fprintln(os.Stderr, "schedworker:", err)
		os.Exit(1)
	}
}

func run(configPath string, oneShot bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, cleanup, err := buildBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	mailer, err := buildMailer(cfg)
	if err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	opts := []schedule.Option{
		schedule.WithMutex(backend),
		schedule.WithLogger(logger),
		schedule.WithMailer(mailer),
		schedule.WithTimezone(loc),
	}
	if cfg.WorkingDir != "" {
		opts = append(opts, schedule.WithWorkingDir(cfg.WorkingDir))
	}
	s := schedule.New(opts...)

	for i, job := range cfg.Jobs {
		if err := registerJob(s, job); err != nil {
			return fmt.Errorf("jobs[%d]: %w", i, err)
		}
	}
	logger.Info("jobs registered", slog.Int("count", len(s.Events())))

	w := worker.New(s,
		worker.WithLogger(logger),
		worker.WithMiddleware(
			middleware.Recover(logger),
			middleware.Logging(logger),
		),
	)

	if oneShot {
		w.RunPass(ctx)
		w.Wait()
		return nil
	}

	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return w.Stop(shutdownCtx)
}

// buildBackend constructs the configured lock backend. The returned cleanup
// closes any client connections the backend holds.
func buildBackend(ctx context.Context, cfg *config.Config) (lock.Backend, func(), error) {
	none := func() {}
	ttl := cfg.Lock.TTL.Std()

	switch cfg.Lock.Backend {
	case "", "file":
		dir := cfg.Lock.Dir
		if dir == "" {
			dir = os.TempDir() + "/schedule-locks"
		}
		var opts []lockfile.Option
		if ttl > 0 {
			opts = append(opts, lockfile.WithTTL(ttl))
		}
		return lockfile.New(dir, opts...), none, nil

	case "memory":
		var opts []lockmemory.Option
		if ttl > 0 {
			opts = append(opts, lockmemory.WithTTL(ttl))
		}
		return lockmemory.New(opts...), none, nil

	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Lock.Redis.Addr,
			Password: cfg.Lock.Redis.Password,
			DB:       cfg.Lock.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		var opts []lockredis.Option
		if ttl > 0 {
			opts = append(opts, lockredis.WithTTL(ttl))
		}
		return lockredis.New(client, opts...), func() { _ = client.Close() }, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Lock.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		var opts []lockpostgres.Option
		if ttl > 0 {
			opts = append(opts, lockpostgres.WithTTL(ttl))
		}
		backend := lockpostgres.New(pool, opts...)
		if err := backend.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return backend, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.Lock.Backend)
	}
}

func buildMailer(cfg *config.Config) (mail.Mailer, error) {
	if cfg.SMTP == nil {
		return mail.Discard, nil
	}
	return smtp.New(smtp.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Retries:  cfg.SMTP.Retries,
	})
}

// registerJob translates one job declaration into a scheduled event.
func registerJob(s *schedule.Scheduler, job config.JobConfig) error {
	event := s.Exec(job.Command)

	if job.Cron != "" {
		event.Cron(job.Cron)
	}
	if job.Name != "" {
		event.Named(job.Name)
	}
	if job.Timezone != "" {
		loc, err := time.LoadLocation(job.Timezone)
		if err != nil {
			return err
		}
		event.Timezone(loc)
	}
	if job.User != "" {
		event.As(job.User)
	}
	if job.WithoutOverlapping {
		event.WithoutOverlapping()
	}
	if job.OnOneServer {
		if _, err := event.OnOneServer(); err != nil {
			return err
		}
	}
	if job.SuppressErrors {
		event.SuppressErrors()
	}
	if job.SendOutputTo != "" {
		event.SendOutputTo(job.SendOutputTo)
	}
	if job.AppendOutputTo != "" {
		event.AppendOutputTo(job.AppendOutputTo)
	}
	if len(job.EmailOutputTo) > 0 {
		if _, err := event.EmailOutputTo(job.EmailOutputTo...); err != nil {
			return err
		}
	}
	if job.ThenPing != "" {
		event.ThenPing(job.ThenPing)
	}
	return nil
}
