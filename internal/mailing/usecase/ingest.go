package usecase

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"

	"github.com/samber/lo"
	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
	"github.com/shandysiswandi/jbcast/internal/pkg/goerror"
)

type (
	IngestInput struct {
		BatchID int64 `validate:"required,gt=0"`
	}

	IngestOutput struct {
		BatchID int64
		Created int64
		// NothingToProcess is set when the source has no data rows.
		NothingToProcess bool
	}
)

func (s *Usecase) Ingest(ctx context.Context, in IngestInput) (*IngestOutput, error) {
	ctx, span := s.startSpan(ctx, "Ingest")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	batch, err := s.repoDB.GetBatchByID(ctx, in.BatchID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "batch not found", "batch_id", in.BatchID)
		return nil, goerror.NewBusiness("batch not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get batch by id", "batch_id", in.BatchID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if batch.IngestedAt != nil {
		return nil, goerror.NewBusiness("batch already ingested", goerror.CodeConflict)
	}

	src, _, err := s.repoStorage.Open(ctx, batch.SourceKey)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open batch source", "batch_id", batch.ID, "source_key", batch.SourceKey, "error", err)
		return nil, goerror.NewServer(err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			slog.WarnContext(ctx, "failed to close batch source", "source_key", batch.SourceKey, "error", err)
		}
	}()

	rows, subject, body, err := ParseRows(src, sourceExt(batch.SourceKey))
	if entity.IsUnsupportedFormat(err) {
		slog.WarnContext(ctx, "unsupported batch source format", "batch_id", batch.ID, "source_key", batch.SourceKey)
		return nil, goerror.NewBusinessWrap(err, "unsupported batch file format", goerror.CodeInvalidFormat)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse batch source", "batch_id", batch.ID, "error", err)
		return nil, goerror.NewBusinessWrap(err, "cannot read batch file", goerror.CodeInvalidFormat)
	}

	if len(rows) == 0 {
		slog.InfoContext(ctx, "batch source has no rows, nothing to process", "batch_id", batch.ID)
		return &IngestOutput{BatchID: batch.ID, NothingToProcess: true}, nil
	}

	recipients := lo.FilterMap(rows, func(row entity.RawRow, _ int) (entity.CreateRecipient, bool) {
		if row.Email == "" {
			return entity.CreateRecipient{}, false
		}
		if len(row.Email) > entity.MaxEmailLen {
			slog.WarnContext(ctx, "skipping row with oversized email", "batch_id", batch.ID, "length", len(row.Email))
			return entity.CreateRecipient{}, false
		}
		return entity.CreateRecipient{
			ID:          s.uid.Generate(),
			BatchID:     batch.ID,
			Name:        entity.Truncate(row.Name, entity.MaxNameLen),
			Email:       row.Email,
			Subject:     entity.Truncate(subject, entity.MaxSubjectLen),
			Body:        body,
			Attachments: row.Attachments,
		}, true
	})

	created, err := s.repoDB.IngestRecipients(ctx, batch.ID, recipients, s.clock.Now())
	if errors.Is(err, goerror.ErrConflict) {
		return nil, goerror.NewBusiness("batch already ingested", goerror.CodeConflict)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo ingest recipients", "batch_id", batch.ID, "rows", len(recipients), "error", err)
		return nil, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "batch ingested", "batch_id", batch.ID, "rows", len(rows), "created", created)

	return &IngestOutput{BatchID: batch.ID, Created: created}, nil
}

func sourceExt(filename string) string {
	return strings.ToLower(path.Ext(strings.TrimSpace(filename)))
}
