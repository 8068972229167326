package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/jbcast/internal/mailing/usecase"
	"github.com/shandysiswandi/jbcast/internal/pkg/goerror"
	"github.com/shandysiswandi/jbcast/internal/pkg/instrument"
	"github.com/shandysiswandi/jbcast/internal/pkg/messaging"
	"github.com/shandysiswandi/jbcast/internal/pkg/uid"
	"github.com/shandysiswandi/jbcast/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, msg messaging.Message) context.Context {
	if cID := messaging.HeaderValue(msg, keyOfCorrelationID); cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

// settle decides whether a failed message goes back to the broker.
// Only server side failures and admission refusals are redelivered; a message
// that can never succeed is logged and acked.
func settle(err error) error {
	switch goerror.CodeOf(err) {
	case goerror.CodeInternal, goerror.CodeTimeout, goerror.CodeTooManyRequest:
		return err
	default:
		return nil
	}
}

func (h *MQHandler) BatchUploadedIngest(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg)

	ctx, span := h.ins.Tracer("mailing.inbound.mq").Start(ctx, "BatchUploadedIngest")
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: mailing batch uploaded", "msg_body", string(body))

	var payload event.MailingBatchMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of mailing batch uploaded", "msg_body", string(body), "error", err)
		return nil
	}

	out, err := h.uc.Ingest(ctx, usecase.IngestInput{BatchID: payload.BatchID})
	if err != nil {
		slog.ErrorContext(ctx, "failed to ingest mailing batch", "msg_body", string(body), "error", err)
		return settle(err)
	}

	slog.InfoContext(ctx, "mailing batch ingested", "batch_id", out.BatchID, "created", out.Created, "nothing_to_process", out.NothingToProcess)
	return nil
}

func (h *MQHandler) BatchDispatchRequested(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg)

	ctx, span := h.ins.Tracer("mailing.inbound.mq").Start(ctx, "BatchDispatchRequested")
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: mailing batch dispatch requested", "msg_body", string(body))

	var payload event.MailingBatchMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of mailing batch dispatch requested", "msg_body", string(body), "error", err)
		return nil
	}

	out, err := h.uc.DispatchBatch(ctx, usecase.DispatchBatchInput{BatchID: payload.BatchID, OwnerID: payload.OwnerID})
	if err != nil {
		slog.ErrorContext(ctx, "failed to dispatch mailing batch", "msg_body", string(body), "error", err)
		return settle(err)
	}

	slog.InfoContext(ctx, "mailing batch queued", "batch_id", out.BatchID, "queued", out.Queued, "nothing_pending", out.NothingPending)
	return nil
}

func (h *MQHandler) RecipientDispatchRequested(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg)

	ctx, span := h.ins.Tracer("mailing.inbound.mq").Start(ctx, "RecipientDispatchRequested")
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: mailing recipient dispatch requested", "msg_body", string(body))

	var payload event.MailingRecipientMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of mailing recipient dispatch requested", "msg_body", string(body), "error", err)
		return nil
	}

	out, err := h.uc.DispatchOne(ctx, usecase.DispatchOneInput{RecipientID: payload.RecipientID})
	if err != nil {
		slog.ErrorContext(ctx, "failed to dispatch mailing recipient", "msg_body", string(body), "error", err)
		return settle(err)
	}

	slog.InfoContext(ctx, "mailing recipient dispatched", "recipient_id", out.RecipientID, "outcome", out.Outcome, "reason", out.Reason)
	return nil
}

func (h *MQHandler) BatchDeleteRequested(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg)

	ctx, span := h.ins.Tracer("mailing.inbound.mq").Start(ctx, "BatchDeleteRequested")
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: mailing batch delete requested", "msg_body", string(body))

	var payload event.MailingBatchMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of mailing batch delete requested", "msg_body", string(body), "error", err)
		return nil
	}

	if err := h.uc.DeleteBatch(ctx, usecase.DeleteBatchInput{BatchID: payload.BatchID, OwnerID: payload.OwnerID}); err != nil {
		slog.ErrorContext(ctx, "failed to delete mailing batch", "msg_body", string(body), "error", err)
		return settle(err)
	}

	return nil
}
