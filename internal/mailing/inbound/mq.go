package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/shandysiswandi/jbcast/internal/pkg/config"
	"github.com/shandysiswandi/jbcast/internal/pkg/goroutine"
	"github.com/shandysiswandi/jbcast/internal/pkg/instrument"
	"github.com/shandysiswandi/jbcast/internal/pkg/messaging"
	"github.com/shandysiswandi/jbcast/internal/pkg/uid"
	"github.com/shandysiswandi/jbcast/internal/shared/event"
)

func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Messaging,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) {
	mqHandler := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enableConsumerNames := cfg.GetArray("modules.mailing.consumer_names")

	var consumers = []struct {
		name        string
		topic       string // destination where publisher sent message
		concurrency int
		handler     messaging.Handler
	}{
		{
			name:        event.MailingBatchUploadedConsumerIngest,
			topic:       event.MailingBatchUploadedDestination,
			concurrency: 2,
			handler:     mqHandler.BatchUploadedIngest,
		},
		{
			name:        event.MailingBatchDispatchRequestedConsumerDispatch,
			topic:       event.MailingBatchDispatchRequestedDestination,
			concurrency: 2,
			handler:     mqHandler.BatchDispatchRequested,
		},
		{
			// Sends are paced by the worker pool so the broker side stays small.
			name:        event.MailingRecipientDispatchRequestedConsumerSend,
			topic:       event.MailingRecipientDispatchRequestedDestination,
			concurrency: 4,
			handler:     mqHandler.RecipientDispatchRequested,
		},
		{
			name:        event.MailingBatchDeleteRequestedConsumerDelete,
			topic:       event.MailingBatchDeleteRequestedDestination,
			concurrency: 1,
			handler:     mqHandler.BatchDeleteRequested,
		},
	}

	for _, consumer := range consumers {
		if len(enableConsumerNames) > 0 && slices.Contains(enableConsumerNames, consumer.name) {
			err := routine.Go(ctx, func(pCtx context.Context) error {
				slog.InfoContext(ctx, "Running job for handling consumer", "consumer", consumer.name)
				return messenger.Consume(pCtx,
					consumer.topic,
					consumer.handler,
					messaging.WithGroup(consumer.name),
					messaging.WithAutoAck(true),
					messaging.WithConcurrency(consumer.concurrency),
				)
			})
			if err != nil {
				slog.ErrorContext(ctx, "failed to start consumer", "consumer", consumer.name, "error", err)
			}
		}
	}
}
