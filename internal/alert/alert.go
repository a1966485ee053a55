// Package alert delivers operator alerts: ticket-volume spikes, stale
// routine execution, and the overdue-ticket digest.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Sink sends one operator alert.
type Sink interface {
	Send(ctx context.Context, subject, body string) error
}

// SMTPSink mails alerts to the configured operator addresses through a plain
// SMTP relay.
type SMTPSink struct {
	addr   string
	from   string
	to     []string
	logger *slog.Logger
}

func NewSMTPSink(addr, from string, to []string, logger *slog.Logger) *SMTPSink {
	return &SMTPSink{addr: addr, from: from, to: to, logger: logger.With("component", "alert")}
}

func (s *SMTPSink) Send(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.from, strings.Join(s.to, ", "), subject, body)
	if err := smtp.SendMail(s.addr, nil, s.from, s.to, []byte(msg)); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}
	s.logger.Info("alert sent", "subject", subject, "recipients", len(s.to))
	return nil
}

// LogSink writes alerts to the operational log. Used when no SMTP relay is
// configured, and in dry-run mode.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "alert")}
}

func (s *LogSink) Send(_ context.Context, subject, body string) error {
	s.logger.Warn("operator alert", "subject", subject, "body", body)
	return nil
}
