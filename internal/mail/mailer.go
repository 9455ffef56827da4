// Package mail delivers transactional email over SMTP.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Sender is the outbound mail contract consumed by the job worker.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPSender sends mail through a plain SMTP relay (Mailpit in development).
type SMTPSender struct {
	addr string
	from string
}

// NewSMTPSender builds a sender for host:port with the given from address.
func NewSMTPSender(host string, port int, from string) *SMTPSender {
	return &SMTPSender{addr: fmt.Sprintf("%s:%d", host, port), from: from}
}

// Send delivers one HTML message.
func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) error {
	if to == "" {
		return fmt.Errorf("mail: recipient required")
	}
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(html)

	if err := smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	return nil
}

var _ Sender = (*SMTPSender)(nil)
