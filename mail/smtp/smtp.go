// Package smtp adapts the mail boundary onto an SMTP server using
// github.com/wneessen/go-mail.
package smtp

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/YJBallestero/schedule/backoff"
	"github.com/YJBallestero/schedule/mail"
)

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the sender address stamped on every message.
	From string

	// Retries is how many additional delivery attempts are made after a
	// failed send. Zero means send once.
	Retries int

	// Backoff spaces out retry attempts. Nil means backoff.DefaultStrategy
	// when Retries is set.
	Backoff backoff.Strategy
}

// Mailer sends messages through an SMTP server.
type Mailer struct {
	client  *gomail.Client
	from    string
	retries int
	backoff backoff.Strategy
}

// New connects the mailer to an SMTP server. Credentials are optional;
// when present, PLAIN auth is used.
func New(cfg Config) (*Mailer, error) {
	opts := []gomail.Option{gomail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("schedule/smtp: client: %w", err)
	}
	strategy := cfg.Backoff
	if strategy == nil {
		strategy = backoff.DefaultStrategy()
	}
	return &Mailer{
		client:  client,
		from:    cfg.From,
		retries: cfg.Retries,
		backoff: strategy,
	}, nil
}

// Compose starts a new message.
func (m *Mailer) Compose() mail.Message {
	return &message{mailer: m}
}

type message struct {
	mailer  *Mailer
	to      []string
	subject string
	body    string
}

func (msg *message) To(addrs ...string) mail.Message {
	msg.to = append(msg.to, addrs...)
	return msg
}

func (msg *message) Subject(s string) mail.Message {
	msg.subject = s
	return msg
}

func (msg *message) Body(s string) mail.Message {
	msg.body = s
	return msg
}

func (msg *message) Send(ctx context.Context) error {
	out := gomail.NewMsg()
	if err := out.From(msg.mailer.from); err != nil {
		return fmt.Errorf("schedule/smtp: from: %w", err)
	}
	if err := out.To(msg.to...); err != nil {
		return fmt.Errorf("schedule/smtp: to: %w", err)
	}
	out.Subject(msg.subject)
	out.SetBodyString(gomail.TypeTextPlain, msg.body)

	var lastErr error
	for attempt := 0; attempt <= msg.mailer.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(msg.mailer.backoff.Delay(attempt)):
			}
		}
		if lastErr = msg.mailer.client.DialAndSendWithContext(ctx, out); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("schedule/smtp: send: %w", lastErr)
}
