package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// ErrSMTPHostPortRequired is returned when Host/Port are missing.
var ErrSMTPHostPortRequired = errors.New("smtp host and port are required")

const implicitTLSPort = 465

// SMTPDialer opens SMTP submission connections with go-smtp.
type SMTPDialer struct {
	// DialTimeout bounds the TCP connect and TLS handshake.
	DialTimeout time.Duration
	// CommandTimeout bounds a whole Send when ctx carries no earlier deadline.
	CommandTimeout time.Duration
	// LocalName is sent in EHLO. Defaults to "localhost".
	LocalName string
	// TLSConfig is cloned per connection; ServerName is set from the endpoint host.
	TLSConfig *tls.Config
}

// Dial connects, negotiates TLS as the endpoint requires and authenticates with PLAIN
// when a username is set.
func (d *SMTPDialer) Dial(ctx context.Context, ep Endpoint) (Mail, error) {
	if ep.Host == "" || ep.Port == 0 {
		return nil, ErrSMTPHostPortRequired
	}

	addr := net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))
	nd := &net.Dialer{Timeout: d.DialTimeout}
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", addr, err)
	}

	if d.DialTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(d.DialTimeout))
	}

	tlsCfg := d.tlsConfig(ep.Host)
	var c *smtp.Client
	if ep.Port == implicitTLSPort {
		tconn := tls.Client(conn, tlsCfg)
		if err := tconn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("smtp tls handshake: %w", err)
		}
		c = smtp.NewClient(tconn)
	} else {
		c = smtp.NewClient(conn)
	}

	if err := d.open(c, ep, tlsCfg); err != nil {
		_ = c.Close()
		return nil, err
	}

	_ = conn.SetDeadline(time.Time{})

	return &smtpMail{client: c, conn: conn, from: ep.Username, timeout: d.CommandTimeout}, nil
}

func (d *SMTPDialer) open(c *smtp.Client, ep Endpoint, tlsCfg *tls.Config) error {
	localName := d.LocalName
	if localName == "" {
		localName = "localhost"
	}
	if err := c.Hello(localName); err != nil {
		return fmt.Errorf("smtp hello: %w", err)
	}

	if ep.UseTLS && ep.Port != implicitTLSPort {
		if err := c.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}

	if ep.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", ep.Username, ep.Password)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	return nil
}

func (d *SMTPDialer) tlsConfig(host string) *tls.Config {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if d.TLSConfig != nil {
		cfg = d.TLSConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return cfg
}

type smtpMail struct {
	client  *smtp.Client
	conn    net.Conn
	from    string
	timeout time.Duration
}

// Send builds msg and submits it on the open connection.
func (s *smtpMail) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.From == "" {
		msg.From = s.from
	}

	raw, err := Build(msg)
	if err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if s.timeout > 0 && (!ok || time.Until(deadline) > s.timeout) {
		deadline, ok = time.Now().Add(s.timeout), true
	}
	if ok {
		_ = s.conn.SetDeadline(deadline)
		defer func() { _ = s.conn.SetDeadline(time.Time{}) }()
	}

	return s.client.SendMail(envelopeAddr(msg.From), envelope(msg.Recipients()), bytes.NewReader(raw))
}

// Close sends QUIT and closes the connection. A failed QUIT still closes it.
func (s *smtpMail) Close() error {
	if err := s.client.Quit(); err != nil {
		return errors.Join(err, s.client.Close())
	}
	return nil
}

func envelope(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, envelopeAddr(s))
	}
	return out
}

func envelopeAddr(s string) string {
	if a, err := mail.ParseAddress(s); err == nil {
		return a.Address
	}
	return strings.TrimSpace(s)
}
