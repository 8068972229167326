package mq

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/shandysiswandi/jbcast/internal/mailing/usecase"
	"github.com/shandysiswandi/jbcast/internal/pkg/instrument"
	"github.com/shandysiswandi/jbcast/internal/pkg/messaging"
	"github.com/shandysiswandi/jbcast/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client messaging.Messaging
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Messaging, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishBatchUploaded(ctx context.Context, msg usecase.BatchUploadedEvent) error {
	ctx, span := m.ins.Tracer("mailing.outbound.mq").Start(ctx, "PublishBatchUploaded")
	defer span.End()

	body, err := json.Marshal(event.MailingBatchMessage{
		BatchID: msg.BatchID,
		OwnerID: msg.OwnerID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if err := m.client.Publish(ctx, event.MailingBatchUploadedDestination, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(strconv.FormatInt(msg.BatchID, 10)),
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
