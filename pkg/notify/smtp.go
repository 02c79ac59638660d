package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig contains configuration for the SMTP notifier.
type SMTPConfig struct {
	// Host is the SMTP server hostname.
	Host string

	// Port is the SMTP server port.
	// Default: 587
	Port int

	// From is the sender address.
	From string

	// Username and Password authenticate against the server when set.
	Username string
	Password string

	// Timeout bounds the whole delivery attempt.
	// Default: 10 seconds
	Timeout time.Duration
}

// SMTPNotifier delivers messages as plain-text email over SMTP.
type SMTPNotifier struct {
	config SMTPConfig

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPNotifier creates an SMTP notifier.
func NewSMTPNotifier(config SMTPConfig) *SMTPNotifier {
	if config.Port == 0 {
		config.Port = 587
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &SMTPNotifier{
		config: config,
		send:   smtp.SendMail,
	}
}

// Deliver sends the message to the recipient.
func (n *SMTPNotifier) Deliver(ctx context.Context, recipient, subject, body string) error {
	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	addr := net.JoinHostPort(n.config.Host, fmt.Sprintf("%d", n.config.Port))
	msg := buildMessage(n.config.From, recipient, subject, body)

	done := make(chan error, 1)
	go func() {
		done <- n.send(addr, auth, n.config.From, []string{recipient}, msg)
	}()

	timer := time.NewTimer(n.config.Timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return NewDeliveryError(recipient, err)
		}
		return nil
	case <-timer.C:
		return NewDeliveryError(recipient, fmt.Errorf("smtp delivery timed out after %s", n.config.Timeout))
	case <-ctx.Done():
		return NewDeliveryError(recipient, ctx.Err())
	}
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
