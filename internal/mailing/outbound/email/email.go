package email

import (
	"context"

	"github.com/shandysiswandi/jbcast/internal/pkg/instrument"
	"github.com/shandysiswandi/jbcast/internal/pkg/mail"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Mail opens traced SMTP sessions for outbound accounts.
type Mail struct {
	dialer mail.Dialer
	ins    instrument.Instrumentation
}

func New(dialer mail.Dialer, ins instrument.Instrumentation) *Mail {
	return &Mail{dialer: dialer, ins: ins}
}

func (m *Mail) Dial(ctx context.Context, ep mail.Endpoint) (mail.Mail, error) {
	ctx, span := m.ins.Tracer("mailing.outbound.email").Start(ctx, "Dial")
	defer span.End()

	span.SetAttributes(attribute.String("smtp.host", ep.Host), attribute.Int("smtp.port", ep.Port))

	client, err := m.dialer.Dial(ctx, ep)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return &session{client: client, ins: m.ins}, nil
}

type session struct {
	client mail.Mail
	ins    instrument.Instrumentation
}

func (s *session) Send(ctx context.Context, msg mail.Message) error {
	ctx, span := s.ins.Tracer("mailing.outbound.email").Start(ctx, "Send")
	defer span.End()

	if err := s.client.Send(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (s *session) Close() error {
	return s.client.Close()
}
