// Package schedule provides a cron-style task scheduler: a registry of
// events evaluated against trigger expressions once per tick, with overlap
// prevention, output capture, and post-run hooks.
//
// Schedule is designed as a library, not a service. Register external
// commands or in-process callbacks on a Scheduler, then let an external
// timer (or the worker subpackage) invoke one scheduling pass per minute.
//
// # Quick Start
//
//	s := schedule.New(
//	    schedule.WithLogger(logger),
//	    schedule.WithMutex(redislock.New(client)),
//	)
//	s.Exec("certbot renew").Daily().WithoutOverlapping()
//	s.Exec("mysqldump app > /backups/app.sql").
//	    DailyAt("01:30").
//	    AppendOutputTo("/var/log/backup.log").
//	    ThenPing("https://hc.example.com/ping/backup")
//
//	ctx := s.NewContext(context.Background())
//	due, err := s.DueEvents(ctx)
//
// # Architecture
//
// Each external concern lives behind a narrow interface: lock.Backend for
// mutual exclusion, ProcessRunner for launching commands, mail.Mailer for
// emailing captured output, Emitter for lifecycle signals. Adapters under
// lock/ and mail/ implement them; anything else can be injected through the
// Scheduler options.
package schedule
