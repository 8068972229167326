package email

import (
	"context"
	"testing"
	"time"

	"github.com/shandysiswandi/jbcast/internal/pkg/instrument"
	"github.com/shandysiswandi/jbcast/internal/pkg/mail"
	"github.com/shandysiswandi/jbcast/internal/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMail_DialAndSend(t *testing.T) {
	// Arrange
	srv := testutil.NewSMTPServer(t)
	m := New(&mail.SMTPDialer{DialTimeout: 5 * time.Second}, instrument.NewNoop())
	ctx := context.Background()

	// Act
	conn, err := m.Dial(ctx, mail.Endpoint{Host: srv.Host, Port: srv.Port, Username: srv.Username, Password: srv.Password})
	require.NoError(t, err)
	err = conn.Send(ctx, mail.Message{To: []string{"alice@example.com"}, Subject: "Hi", TextBody: "Hello"})
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	// Assert
	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"alice@example.com"}, msgs[0].To)
}

func TestMail_DialFailure(t *testing.T) {
	srv := testutil.NewSMTPServer(t)
	m := New(&mail.SMTPDialer{DialTimeout: 5 * time.Second}, instrument.NewNoop())

	conn, err := m.Dial(context.Background(), mail.Endpoint{Host: srv.Host, Port: srv.Port, Username: srv.Username, Password: "wrong"})

	assert.Error(t, err)
	assert.Nil(t, conn)
}
