package mail

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"
	"github.com/shandysiswandi/jbcast/internal/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEndpoint(srv *testutil.SMTPServer) Endpoint {
	return Endpoint{Host: srv.Host, Port: srv.Port, Username: srv.Username, Password: srv.Password}
}

func TestSMTPDialer_SendMultipart(t *testing.T) {
	srv := testutil.NewSMTPServer(t)
	d := &SMTPDialer{DialTimeout: 5 * time.Second, CommandTimeout: 10 * time.Second}

	ctx := context.Background()
	conn, err := d.Dial(ctx, testEndpoint(srv))
	require.NoError(t, err)

	err = conn.Send(ctx, Message{
		FromName: "JB Connect",
		To:       []string{"alice@example.com"},
		Cc:       []string{"Carol <carol@example.com>"},
		Bcc:      []string{"bob@example.com"},
		Subject:  "Hi",
		TextBody: "Hello Alice",
		HTMLBody: `<p>Hello Alice</p><img src="cid:logo.jpg">`,
		Inlines:  []Part{{Filename: "logo.jpg", ContentType: "image/jpeg", ContentID: "logo.jpg", Content: []byte{0xff, 0xd8}}},
		Attachments: []Part{
			{Filename: "a1b2c3d4_report.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4")},
		},
	})
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, srv.Username, msgs[0].From)
	assert.Equal(t, []string{"alice@example.com", "carol@example.com", "bob@example.com"}, msgs[0].To)

	env, err := enmime.ReadEnvelope(bytes.NewReader(msgs[0].Data))
	require.NoError(t, err)
	assert.Equal(t, "Hi", env.GetHeader("Subject"))
	assert.Empty(t, env.GetHeader("Bcc"))
	assert.Contains(t, env.Text, "Hello Alice")
	assert.Contains(t, env.HTML, "cid:logo.jpg")
	require.Len(t, env.Attachments, 1)
	assert.Equal(t, "a1b2c3d4_report.pdf", env.Attachments[0].FileName)
	require.Len(t, env.Inlines, 1)
	assert.Equal(t, "logo.jpg", env.Inlines[0].ContentID)
}

func TestSMTPDialer_SendErrorCarriesServerText(t *testing.T) {
	srv := testutil.NewSMTPServer(t)
	srv.FailData(&smtp.SMTPError{Code: 452, EnhancedCode: smtp.EnhancedCode{4, 5, 3}, Message: "Daily sending quota exceeded"})

	d := &SMTPDialer{DialTimeout: 5 * time.Second}
	ctx := context.Background()
	conn, err := d.Dial(ctx, testEndpoint(srv))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	err = conn.Send(ctx, Message{To: []string{"a@x.com"}, Subject: "s", TextBody: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}

func TestSMTPDialer_AuthFailure(t *testing.T) {
	srv := testutil.NewSMTPServer(t)
	ep := testEndpoint(srv)
	ep.Password = "wrong"

	_, err := (&SMTPDialer{DialTimeout: 5 * time.Second}).Dial(context.Background(), ep)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp auth")
}

func TestSMTPDialer_RequiresHostPort(t *testing.T) {
	_, err := (&SMTPDialer{}).Dial(context.Background(), Endpoint{})
	assert.ErrorIs(t, err, ErrSMTPHostPortRequired)
}

func TestBuild_Validation(t *testing.T) {
	_, err := Build(Message{To: []string{"a@x.com"}, Subject: "s"})
	assert.ErrorIs(t, err, ErrNoSender)

	_, err = Build(Message{From: "me@x.com", Subject: "s"})
	assert.ErrorIs(t, err, ErrNoRecipients)
}
