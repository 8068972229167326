package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/samber/lo"
	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
	"github.com/shandysiswandi/jbcast/internal/pkg/goerror"
	"github.com/shandysiswandi/jbcast/internal/pkg/spreadsheet"
	"github.com/shandysiswandi/jbcast/internal/pkg/storage"
)

type (
	RegisterBatchInput struct {
		OwnerID  int64  `validate:"required,gt=0"`
		Title    string `validate:"required,max=255,nocrlf"`
		Filename string `validate:"required"`
		Size     int64
		Content  io.Reader `validate:"required"`
	}

	BatchUploadedEvent struct {
		BatchID int64
		OwnerID int64
	}

	BatchStatusInput struct {
		BatchID int64 `validate:"required,gt=0"`
		// OwnerID scopes the lookup when set.
		OwnerID int64 `validate:"gte=0"`
	}

	BatchStatusOutput struct {
		Batch      entity.Batch
		Recipients []entity.Recipient
		Counts     entity.BatchCounts
	}

	ListBatchesInput struct {
		OwnerID int64 `validate:"required,gt=0"`
	}

	DeleteBatchInput struct {
		BatchID int64 `validate:"required,gt=0"`
		OwnerID int64 `validate:"required,gt=0"`
	}
)

var contentTypes = map[string]string{
	spreadsheet.ExtCSV:  "text/csv",
	spreadsheet.ExtXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// RegisterBatch stores an uploaded source file and creates its batch.
// Recipients are created later by Ingest.
func (s *Usecase) RegisterBatch(ctx context.Context, in RegisterBatchInput) (*entity.Batch, error) {
	ctx, span := s.startSpan(ctx, "RegisterBatch")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	ext := sourceExt(in.Filename)
	contentType, ok := contentTypes[ext]
	if !ok {
		return nil, goerror.NewBusinessWrap(entity.ErrUnsupportedFormat, "only .csv and .xlsx files are accepted", goerror.CodeInvalidFormat)
	}

	id := s.uid.Generate()
	key := fmt.Sprintf("batches/%d/%d%s", in.OwnerID, id, ext)

	size := in.Size
	if size <= 0 {
		size = -1
	}
	if _, err := s.repoStorage.Put(ctx, key, in.Content, storage.PutOptions{
		Size:        size,
		ContentType: contentType,
		Metadata:    map[string]string{"filename": in.Filename},
	}); err != nil {
		slog.ErrorContext(ctx, "failed to store batch source", "owner_id", in.OwnerID, "key", key, "error", err)
		return nil, goerror.NewServer(err)
	}

	data := entity.CreateBatch{ID: id, OwnerID: in.OwnerID, Title: in.Title, SourceKey: key}
	if err := s.repoDB.CreateBatch(ctx, data); err != nil {
		slog.ErrorContext(ctx, "failed to repo create batch", "owner_id", in.OwnerID, "error", err)
		s.removeSource(ctx, key)
		return nil, goerror.NewServer(err)
	}

	if s.repoMQ != nil {
		if err := s.repoMQ.PublishBatchUploaded(ctx, BatchUploadedEvent{BatchID: id, OwnerID: in.OwnerID}); err != nil {
			slog.ErrorContext(ctx, "failed to publish batch uploaded", "batch_id", id, "error", err)
		}
	}

	return &entity.Batch{
		ID:        id,
		OwnerID:   in.OwnerID,
		Title:     in.Title,
		SourceKey: key,
		CreatedAt: s.clock.Now(),
	}, nil
}

func (s *Usecase) BatchStatus(ctx context.Context, in BatchStatusInput) (*BatchStatusOutput, error) {
	ctx, span := s.startSpan(ctx, "BatchStatus")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	batch, err := s.getOwnedBatch(ctx, in.BatchID, in.OwnerID)
	if err != nil {
		return nil, err
	}

	recipients, err := s.repoDB.ListRecipientsByBatch(ctx, batch.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list recipients by batch", "batch_id", batch.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	byState := lo.CountValuesBy(recipients, func(r entity.Recipient) entity.DeliveryState { return r.State })

	return &BatchStatusOutput{
		Batch:      *batch,
		Recipients: recipients,
		Counts: entity.BatchCounts{
			Total:   int64(len(recipients)),
			Pending: int64(byState[entity.DeliveryStatePending]),
			Sent:    int64(byState[entity.DeliveryStateSent]),
			Failed:  int64(byState[entity.DeliveryStateFailed]),
		},
	}, nil
}

// ListBatches returns the owner's uploaded batches, newest first.
func (s *Usecase) ListBatches(ctx context.Context, in ListBatchesInput) ([]entity.Batch, error) {
	ctx, span := s.startSpan(ctx, "ListBatches")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	batches, err := s.repoDB.ListBatchesByOwner(ctx, in.OwnerID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list batches by owner", "owner_id", in.OwnerID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return batches, nil
}

// DeleteBatch removes a batch of the owner with its recipients, then its source object.
func (s *Usecase) DeleteBatch(ctx context.Context, in DeleteBatchInput) error {
	ctx, span := s.startSpan(ctx, "DeleteBatch")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	batch, err := s.getOwnedBatch(ctx, in.BatchID, in.OwnerID)
	if err != nil {
		return err
	}

	deleted, err := s.repoDB.DeleteBatch(ctx, batch.ID, in.OwnerID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo delete batch", "batch_id", batch.ID, "owner_id", in.OwnerID, "error", err)
		return goerror.NewServer(err)
	}
	if !deleted {
		return goerror.NewBusiness("batch not found", goerror.CodeNotFound)
	}

	s.removeSource(ctx, batch.SourceKey)

	return nil
}

// getOwnedBatch hides batches of other owners behind not found. ownerID 0 skips the check.
func (s *Usecase) getOwnedBatch(ctx context.Context, batchID, ownerID int64) (*entity.Batch, error) {
	batch, err := s.repoDB.GetBatchByID(ctx, batchID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "batch not found", "batch_id", batchID)
		return nil, goerror.NewBusiness("batch not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get batch by id", "batch_id", batchID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if ownerID != 0 && batch.OwnerID != ownerID {
		slog.WarnContext(ctx, "batch owned by another user", "batch_id", batchID, "owner_id", ownerID)
		return nil, goerror.NewBusiness("batch not found", goerror.CodeNotFound)
	}

	return batch, nil
}

func (s *Usecase) removeSource(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.repoStorage.Delete(context.WithoutCancel(ctx), key); err != nil {
		slog.WarnContext(ctx, "failed to delete batch source", "key", key, "error", err)
	}
}
