package testutil

import (
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// ReceivedMessage is one message accepted by the test SMTP server.
type ReceivedMessage struct {
	From string
	To   []string
	Data []byte
}

// SMTPServer is an in-memory SMTP server listening on a random local port.
type SMTPServer struct {
	Host     string
	Port     int
	Username string
	Password string

	mu       sync.Mutex
	messages []ReceivedMessage
	dataErr  error
	sessions int
}

// NewSMTPServer starts a plaintext server that accepts PLAIN auth with the returned credentials.
func NewSMTPServer(t *testing.T) *SMTPServer {
	t.Helper()

	srv := &SMTPServer{Username: "mailer@example.com", Password: "secret"}

	s := smtp.NewServer(srv)
	s.AllowInsecureAuth = true
	s.Domain = "localhost"

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	host, port, _ := net.SplitHostPort(listener.Addr().String())
	srv.Host = host
	srv.Port, _ = strconv.Atoi(port)

	go func() {
		if err := s.Serve(listener); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			t.Logf("smtp server error: %v", err)
		}
	}()

	t.Cleanup(func() { _ = s.Close() })

	return srv
}

// FailData makes every following DATA command fail with err. nil restores success.
func (s *SMTPServer) FailData(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataErr = err
}

// Messages returns a copy of the accepted messages.
func (s *SMTPServer) Messages() []ReceivedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ReceivedMessage(nil), s.messages...)
}

// Sessions returns how many connections were opened.
func (s *SMTPServer) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

// NewSession implements smtp.Backend.
func (s *SMTPServer) NewSession(*smtp.Conn) (smtp.Session, error) {
	s.mu.Lock()
	s.sessions++
	s.mu.Unlock()
	return &smtpSession{srv: s}, nil
}

type smtpSession struct {
	srv    *SMTPServer
	authed bool
	from   string
	to     []string
}

func (s *smtpSession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *smtpSession) Auth(string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(_, username, password string) error {
		if username != s.srv.Username || password != s.srv.Password {
			return smtp.ErrAuthFailed
		}
		s.authed = true
		return nil
	}), nil
}

// AuthPlain implements smtp.Session for go-smtp v0.20, which handles PLAIN itself.
func (s *smtpSession) AuthPlain(username, password string) error {
	if username != s.srv.Username || password != s.srv.Password {
		return smtp.ErrAuthFailed
	}
	s.authed = true
	return nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	if !s.authed {
		return smtp.ErrAuthRequired
	}
	s.from = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.to = append(s.to, to)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.srv.mu.Lock()
	defer s.srv.mu.Unlock()

	if s.srv.dataErr != nil {
		return s.srv.dataErr
	}
	s.srv.messages = append(s.srv.messages, ReceivedMessage{From: s.from, To: s.to, Data: data})
	return nil
}

func (s *smtpSession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *smtpSession) Logout() error {
	return nil
}
