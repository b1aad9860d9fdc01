package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	gomail "github.com/go-mail/mail"
	"go.uber.org/zap"
)

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
	Timeout            time.Duration

	log *zap.Logger
}

// NewSMTPSender creates a sender negotiating STARTTLS when the server offers it.
func NewSMTPSender(host string, port int, from, user, pass string, log *zap.Logger) *SMTPSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &SMTPSender{
		Host:    host,
		Port:    port,
		From:    from,
		User:    user,
		Pass:    pass,
		TLSMode: "auto",
		Timeout: 10 * time.Second,
		log:     log,
	}
}

// Send builds a multipart/alternative message and delivers it.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	s.log.Debug("smtp_send_try",
		zap.String("host", s.Host), zap.Int("port", s.Port),
		zap.String("to", to), zap.String("tls_mode", s.TLSMode))

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	if textBody != "" {
		m.SetBody("text/plain", textBody)
	}
	if htmlBody != "" {
		if textBody == "" {
			m.SetBody("text/html", htmlBody)
		} else {
			m.AddAlternative("text/html", htmlBody)
		}
	}

	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.Timeout = s.Timeout
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.InsecureSkipVerify,
	}

	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "starttls":
		d.StartTLSPolicy = gomail.MandatoryStartTLS
	case "none":
		d.StartTLSPolicy = gomail.NoStartTLS
	}

	if err := d.DialAndSend(m); err != nil {
		s.log.Warn("smtp_send_err", zap.String("to", to), zap.Error(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	s.log.Info("smtp_send_ok", zap.String("to", to))
	return nil
}
