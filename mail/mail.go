// Package mail defines the outbound mail boundary used to email captured
// command output. The core composes a message fluently and sends it; what
// "send" means belongs to the adapter (see mail/smtp).
package mail

import "context"

// Message is a mail message under construction. Builder methods return the
// same message for chaining.
type Message interface {
	// To sets the recipient addresses.
	To(addrs ...string) Message
	// Subject sets the subject line.
	Subject(s string) Message
	// Body sets the plain-text body.
	Body(s string) Message
	// Send delivers the message.
	Send(ctx context.Context) error
}

// Mailer creates messages.
type Mailer interface {
	Compose() Message
}

// Discard is a Mailer whose messages go nowhere. It is the default mailer
// so schedulers without mail configuration still run email callbacks
// harmlessly.
var Discard Mailer = discardMailer{}

type discardMailer struct{}

func (discardMailer) Compose() Message { return &discardMessage{} }

type discardMessage struct{}

func (m *discardMessage) To(...string) Message       { return m }
func (m *discardMessage) Subject(string) Message     { return m }
func (m *discardMessage) Body(string) Message        { return m }
func (m *discardMessage) Send(context.Context) error { return nil }
