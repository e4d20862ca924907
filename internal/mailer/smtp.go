package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"courier/internal/config"
)

const implicitTLSPort = 465

// SMTPTransport sends mail through an SMTP relay.
type SMTPTransport struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
	StartTLS bool
	Timeout  time.Duration
	// TLSConfig overrides the TLS settings used for STARTTLS and implicit TLS.
	TLSConfig *tls.Config
}

// New builds an SMTP transport from the daemon configuration.
func New(cfg *config.Config) *SMTPTransport {
	return &SMTPTransport{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		FromName: cfg.SMTP.FromName,
		StartTLS: cfg.SMTP.StartTLS,
		Timeout:  cfg.SMTPTimeout(),
	}
}

// Address returns host:port.
func (t *SMTPTransport) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Connect dials the relay, upgrades to TLS when StartTLS is set, and
// authenticates when a username is configured. A relay that does not offer
// STARTTLS is refused rather than used in plaintext.
func (t *SMTPTransport) Connect(ctx context.Context) (Session, error) {
	if strings.TrimSpace(t.Host) == "" {
		return nil, fmt.Errorf("%w: smtp.host not configured", ErrConnect)
	}

	conn, err := t.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnect, t.Address(), err)
	}
	t.extendDeadline(conn)

	client, err := smtp.NewClient(conn, t.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: greeting from %s: %w", ErrConnect, t.Address(), err)
	}

	if t.StartTLS && t.Port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			_ = client.Close()
			return nil, fmt.Errorf("%w: server does not offer STARTTLS (set smtp.starttls = false to send unencrypted)", ErrConnect)
		}
		if err := client.StartTLS(t.tlsConfig()); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%w: starttls: %w", ErrConnect, err)
		}
	}

	if t.Username != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			_ = client.Close()
			return nil, fmt.Errorf("%w: server does not offer AUTH", ErrConnect)
		}
		auth := smtp.PlainAuth("", t.Username, t.Password, t.Host)
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%w: auth: %w", ErrConnect, err)
		}
	}

	return &smtpSession{transport: t, client: client, conn: conn}, nil
}

func (t *SMTPTransport) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: t.timeout()}
	if t.Port == implicitTLSPort {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: t.tlsConfig()}
		return tlsDialer.DialContext(ctx, "tcp", t.Address())
	}
	return dialer.DialContext(ctx, "tcp", t.Address())
}

func (t *SMTPTransport) tlsConfig() *tls.Config {
	if t.TLSConfig != nil {
		return t.TLSConfig
	}
	return &tls.Config{ServerName: t.Host, MinVersion: tls.VersionTLS12}
}

func (t *SMTPTransport) timeout() time.Duration {
	if t.Timeout <= 0 {
		return 30 * time.Second
	}
	return t.Timeout
}

func (t *SMTPTransport) extendDeadline(conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(t.timeout()))
}

type smtpSession struct {
	transport *SMTPTransport
	client    *smtp.Client
	conn      net.Conn
}

// Send transmits one message. On failure the session is reset so the next
// message can still be sent.
func (s *smtpSession) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	s.transport.extendDeadline(s.conn)

	from := strings.TrimSpace(msg.From)
	if from == "" && strings.Contains(s.transport.Username, "@") {
		from = s.transport.Username
	}
	if from == "" {
		return fmt.Errorf("%w: no sender address", ErrSend)
	}
	msg.From = from

	recipients, err := splitRecipients(msg.To)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	payload, err := buildMessage(msg, s.transport.FromName, recipients, time.Now())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSend, err)
	}

	if err := s.transmit(from, recipients, payload); err != nil {
		_ = s.client.Reset()
		return fmt.Errorf("%w: %s: %w", ErrSend, msg.To, err)
	}
	return nil
}

func (s *smtpSession) transmit(from string, recipients []string, payload []byte) error {
	if err := s.client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range recipients {
		if err := s.client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}
	writer, err := s.client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := writer.Write(payload); err != nil {
		_ = writer.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("end data: %w", err)
	}
	return nil
}

func (s *smtpSession) Close() error {
	s.transport.extendDeadline(s.conn)
	if err := s.client.Quit(); err != nil {
		_ = s.client.Close()
		return err
	}
	return nil
}

// splitRecipients accepts one or more addresses separated by commas or
// semicolons.
func splitRecipients(to string) ([]string, error) {
	fields := strings.FieldsFunc(to, func(r rune) bool { return r == ',' || r == ';' })
	recipients := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		addr, err := mail.ParseAddress(field)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", field, err)
		}
		recipients = append(recipients, addr.Address)
	}
	if len(recipients) == 0 {
		return nil, errors.New("no recipient address")
	}
	return recipients, nil
}
