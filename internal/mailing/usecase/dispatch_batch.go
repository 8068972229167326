package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/samber/lo"
	"github.com/shandysiswandi/jbcast/internal/pkg/goerror"
	"github.com/shandysiswandi/jbcast/internal/pkg/goroutine"
	"github.com/shandysiswandi/jbcast/internal/pkg/idempotency"
)

type (
	DispatchBatchInput struct {
		BatchID int64 `validate:"required,gt=0"`
		// OwnerID scopes the lookup when set.
		OwnerID int64 `validate:"gte=0"`
	}

	DispatchBatchOutput struct {
		BatchID        int64
		Queued         int
		NothingPending bool
	}
)

// DispatchBatch queues one send per unsent recipient and returns without
// waiting for them. Either every recipient is queued or none is.
func (s *Usecase) DispatchBatch(ctx context.Context, in DispatchBatchInput) (*DispatchBatchOutput, error) {
	ctx, span := s.startSpan(ctx, "DispatchBatch")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	var out *DispatchBatchOutput
	run := func(ctx context.Context) error {
		var err error
		out, err = s.queueBatch(ctx, in)
		return err
	}

	if s.dedupe == nil {
		if err := run(ctx); err != nil {
			return nil, err
		}
		return out, nil
	}

	window := s.cfg.GetSecond("modules.mailing.dispatch.dedupe_seconds")
	key := "mailing:dispatch:" + strconv.FormatInt(in.BatchID, 10)
	err := s.dedupe.Exec(ctx, key, run,
		idempotency.WithLockDuration(window),
		idempotency.WithStateTTL(window),
		idempotency.WithReleaseOnError(),
	)
	if idempotency.IsDuplicate(err) {
		slog.WarnContext(ctx, "batch dispatch already triggered", "batch_id", in.BatchID)
		return nil, goerror.NewBusiness("batch dispatch already triggered", goerror.CodeConflict)
	}
	if err != nil {
		var ge *goerror.Error
		if errors.As(err, &ge) {
			return nil, err
		}
		slog.ErrorContext(ctx, "failed to acquire batch dispatch lock", "batch_id", in.BatchID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return out, nil
}

func (s *Usecase) queueBatch(ctx context.Context, in DispatchBatchInput) (*DispatchBatchOutput, error) {
	batch, err := s.getOwnedBatch(ctx, in.BatchID, in.OwnerID)
	if err != nil {
		return nil, err
	}

	ids, err := s.repoDB.ListUnsentRecipientIDs(ctx, batch.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list unsent recipient ids", "batch_id", batch.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if len(ids) == 0 {
		slog.InfoContext(ctx, "batch has nothing pending", "batch_id", batch.ID)
		return &DispatchBatchOutput{BatchID: batch.ID, NothingPending: true}, nil
	}

	tasks := lo.Map(ids, func(id int64, _ int) goroutine.Task {
		return func(ctx context.Context) { s.sendTask(ctx, id) }
	})

	if err := s.pool.SubmitAll(ctx, tasks); err != nil {
		s.rejected.Add(ctx, int64(len(tasks)))
		slog.ErrorContext(ctx, "failed to schedule batch dispatch", "batch_id", batch.ID, "recipients", len(ids), "error", err)
		return nil, goerror.NewBusinessWrap(err, "cannot schedule batch dispatch", goerror.CodeTooManyRequest)
	}

	slog.InfoContext(ctx, "batch dispatch queued", "batch_id", batch.ID, "queued", len(ids))

	return &DispatchBatchOutput{BatchID: batch.ID, Queued: len(ids)}, nil
}

func (s *Usecase) sendTask(ctx context.Context, recipientID int64) {
	out, err := s.DispatchOne(ctx, DispatchOneInput{RecipientID: recipientID})
	if err != nil {
		slog.ErrorContext(ctx, "failed to dispatch recipient", "recipient_id", recipientID, "error", err)
		return
	}
	slog.DebugContext(ctx, "recipient dispatched", "recipient_id", recipientID, "outcome", out.Outcome.String())
}
