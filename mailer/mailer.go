package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	rsvp "github.com/cactusmakesperfect/rsvp"
	"go.uber.org/zap"
)

const (
	mimeBoundary = "rsvp-login-boundary"

	// defaultSendTimeout bounds a delivery when the caller's context has no
	// deadline.
	defaultSendTimeout = 30 * time.Second
)

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends multipart text/html mail through an SMTP relay.
type SMTPMailer struct {
	config SMTPConfig
	send   sendFunc
}

// NewSMTPMailer checks cfg and returns a mailer that delivers through the
// relay at Host:Port, authenticating with PLAIN when Username is set.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("SMTP host must not be empty")
	}
	if cfg.Port <= 0 {
		return nil, errors.New("SMTP port must be > 0")
	}
	if cfg.FromAddress == "" {
		return nil, errors.New("SMTP from address must not be empty")
	}
	return &SMTPMailer{config: cfg, send: sendMail}, nil
}

// SendLoginCode renders msg and hands it to the relay. The whole exchange is
// bounded by ctx, or by defaultSendTimeout when ctx has no deadline.
func (m *SMTPMailer) SendLoginCode(ctx context.Context, msg rsvp.LoginMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rendered, err := Render(msg)
	if err != nil {
		return fmt.Errorf("render login mail: %w", err)
	}

	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	return m.send(ctx, addr, auth, m.config.FromAddress, []string{rendered.To}, m.compose(rendered))
}

// sendMail does what smtp.SendMail does over a connection whose deadline
// follows ctx.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultSendTimeout)
		defer cancel()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if err := converse(conn, host, a, from, to, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", ctxErr, err)
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return err
	}
	return nil
}

func converse(conn net.Conn, host string, a smtp.Auth, from string, to []string, msg []byte) error {
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (m *SMTPMailer) compose(msg Message) []byte {
	var b strings.Builder
	if m.config.FromName != "" {
		fmt.Fprintf(&b, "From: %s <%s>\r\n", m.config.FromName, m.config.FromAddress)
	} else {
		fmt.Fprintf(&b, "From: %s\r\n", m.config.FromAddress)
	}
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mimeBoundary)
	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.Text + "\r\n")
	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.HTML + "\r\n")
	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)
	return []byte(b.String())
}

// LogMailer writes login codes to the log instead of sending them.
// Development only: the code ends up in log output.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer returns a LogMailer writing to logger, or nowhere when logger
// is nil.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger.Named("mailer")}
}

// SendLoginCode logs the code and link at info level.
func (m *LogMailer) SendLoginCode(_ context.Context, msg rsvp.LoginMessage) error {
	m.logger.Info("login code (mail delivery skipped)",
		zap.String("to", msg.Email),
		zap.String("code", msg.Code),
		zap.String("link", msg.Link),
		zap.Time("expires_at", msg.ExpiresAt),
	)
	return nil
}

// NopMailer drops every message.
type NopMailer struct{}

func (NopMailer) SendLoginCode(context.Context, rsvp.LoginMessage) error { return nil }
