package mail

import (
	"bytes"
	"errors"
	"net/mail"
	"strings"

	"github.com/jhillyerd/enmime"
)

var (
	// ErrNoRecipients is returned when To, Cc and Bcc are all empty.
	ErrNoRecipients = errors.New("mail: no recipients provided")
	// ErrNoSender is returned when the message has no From address.
	ErrNoSender = errors.New("mail: no sender provided")
)

// Build encodes msg as an RFC 5322 message: multipart/alternative text and HTML,
// wrapped in multipart/related for inline parts and multipart/mixed for attachments.
func Build(msg Message) ([]byte, error) {
	if msg.From == "" {
		return nil, ErrNoSender
	}
	if len(msg.To)+len(msg.Cc)+len(msg.Bcc) == 0 {
		return nil, ErrNoRecipients
	}

	b := enmime.Builder().
		From(msg.FromName, msg.From).
		Subject(msg.Subject).
		Text([]byte(msg.TextBody))

	if len(msg.To) > 0 {
		b = b.ToAddrs(addresses(msg.To))
	}
	if len(msg.Cc) > 0 {
		b = b.CCAddrs(addresses(msg.Cc))
	}
	if msg.HTMLBody != "" {
		b = b.HTML([]byte(msg.HTMLBody))
	}
	for _, p := range msg.Inlines {
		b = b.AddInline(p.Content, contentType(p.ContentType), p.Filename, p.ContentID)
	}
	for _, p := range msg.Attachments {
		b = b.AddAttachment(p.Content, contentType(p.ContentType), p.Filename)
	}

	root, err := b.Build()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := root.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addresses(list []string) []mail.Address {
	out := make([]mail.Address, 0, len(list))
	for _, s := range list {
		if a, err := mail.ParseAddress(s); err == nil {
			out = append(out, *a)
			continue
		}
		out = append(out, mail.Address{Address: strings.TrimSpace(s)})
	}
	return out
}

func contentType(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
