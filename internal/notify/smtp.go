package notify

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// SMTPConfig holds mail delivery settings. Protocol is one of "none",
// "starttls", or "tls".
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Protocol string
	FromAddr string
	FromName string
	ToAddrs  []string
}

// SMTPMailer sends alert emails over SMTP.
type SMTPMailer struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTPMailer creates a mailer with the given configuration.
func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) *SMTPMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPMailer{cfg: cfg, logger: logger}
}

func (m *SMTPMailer) addr() string {
	return net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
}

// connect establishes an SMTP client per the configured protocol and
// authenticates if credentials are present.
func (m *SMTPMailer) connect() (*smtp.Client, error) {
	var client *smtp.Client

	switch m.cfg.Protocol {
	case "tls":
		conn, err := tls.Dial("tcp", m.addr(), &tls.Config{ServerName: m.cfg.Host})
		if err != nil {
			return nil, fmt.Errorf("notify: smtp tls dial: %w", err)
		}
		client, err = smtp.NewClient(conn, m.cfg.Host)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("notify: smtp client: %w", err)
		}
	default:
		var err error
		client, err = smtp.Dial(m.addr())
		if err != nil {
			return nil, fmt.Errorf("notify: smtp dial: %w", err)
		}
		if m.cfg.Protocol == "starttls" {
			if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
				client.Close()
				return nil, fmt.Errorf("notify: starttls: %w", err)
			}
		}
	}

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("notify: smtp auth: %w", err)
		}
	}

	return client, nil
}

// Send delivers one message to all configured recipients.
func (m *SMTPMailer) Send(subject, body string) error {
	client, err := m.connect()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(m.cfg.FromAddr); err != nil {
		return fmt.Errorf("notify: smtp mail from: %w", err)
	}
	for _, to := range m.cfg.ToAddrs {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("notify: smtp rcpt %s: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("notify: smtp data: %w", err)
	}

	from := m.cfg.FromAddr
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.FromAddr)
	}
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(m.cfg.ToAddrs, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	if _, err := w.Write([]byte(msg)); err != nil {
		w.Close()
		return fmt.Errorf("notify: smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("notify: smtp close data: %w", err)
	}

	m.logger.Debug("Alert email sent", "recipients", len(m.cfg.ToAddrs))
	return client.Quit()
}

// TestConnection verifies connectivity and authentication without sending.
func (m *SMTPMailer) TestConnection() error {
	client, err := m.connect()
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Quit()
}
