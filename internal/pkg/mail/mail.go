package mail

import (
	"context"
	"io"
)

// Message represents an email payload.
type Message struct {
	// FromName is the optional display name of the sender.
	FromName string
	// From is the sender address. Dialers fall back to the account username.
	From string
	// To lists required recipients.
	To []string
	// Cc lists carbon copy recipients.
	Cc []string
	// Bcc lists blind carbon copy recipients. They only appear in the envelope.
	Bcc []string
	// Subject is the email subject line.
	Subject string
	// TextBody is the plain-text alternative.
	TextBody string
	// HTMLBody is the HTML alternative.
	HTMLBody string
	// Inlines are related parts referenced from HTMLBody by Content-ID.
	Inlines []Part
	// Attachments are regular file attachments.
	Attachments []Part
}

// Part is one binary MIME part.
type Part struct {
	Filename    string
	ContentType string
	// ContentID is only used for inline parts.
	ContentID string
	Content   []byte
}

// Recipients returns the envelope recipients: To, then Cc, then Bcc.
func (m Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	return append(out, m.Bcc...)
}

// Endpoint holds the server address and credentials of one outbound account.
type Endpoint struct {
	Host     string
	Port     int
	Username string
	Password string
	// UseTLS requires STARTTLS. Port 465 always uses implicit TLS.
	UseTLS bool
}

// Mail is an open delivery channel.
type Mail interface {
	io.Closer
	// Send dispatches the given message over the open channel.
	Send(ctx context.Context, msg Message) error
}

// Dialer opens a Mail connection for an endpoint.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (Mail, error)
}
