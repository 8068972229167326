package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
	"github.com/shandysiswandi/jbcast/internal/pkg/goerror"
)

func (s *DB) CreateBatch(ctx context.Context, data entity.CreateBatch) (err error) {
	ctx, span := s.startSpan(ctx, "CreateBatch")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx,
		`INSERT INTO mailing_batches (id, owner_id, title, source_key) VALUES ($1, $2, $3, $4)`,
		data.ID, data.OwnerID, data.Title, data.SourceKey,
	)
	return s.mapError(err)
}

func (s *DB) GetBatchByID(ctx context.Context, id int64) (_ *entity.Batch, err error) {
	ctx, span := s.startSpan(ctx, "GetBatchByID")
	defer func() { s.endSpan(span, err) }()

	var b entity.Batch
	err = s.conn.QueryRow(ctx,
		`SELECT id, owner_id, title, source_key, ingested_at, created_at FROM mailing_batches WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.OwnerID, &b.Title, &b.SourceKey, &b.IngestedAt, &b.CreatedAt)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &b, nil
}

// ListBatchesByOwner returns the batches of ownerID, newest first.
func (s *DB) ListBatchesByOwner(ctx context.Context, ownerID int64) (_ []entity.Batch, err error) {
	ctx, span := s.startSpan(ctx, "ListBatchesByOwner")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx,
		`SELECT id, owner_id, title, source_key, ingested_at, created_at FROM mailing_batches
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, s.mapError(err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Batch, error) {
		var b entity.Batch
		err := row.Scan(&b.ID, &b.OwnerID, &b.Title, &b.SourceKey, &b.IngestedAt, &b.CreatedAt)
		return b, err
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	return out, nil
}

// DeleteBatch removes the batch of ownerID. Recipients go with it through ON DELETE CASCADE.
func (s *DB) DeleteBatch(ctx context.Context, id, ownerID int64) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "DeleteBatch")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `DELETE FROM mailing_batches WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}

// IngestRecipients copies rows in and stamps the batch as ingested in one
// transaction. A batch that was already ingested yields goerror.ErrConflict.
func (s *DB) IngestRecipients(ctx context.Context, batchID int64, rows []entity.CreateRecipient, at time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "IngestRecipients")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, s.mapError(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE mailing_batches SET ingested_at = $2 WHERE id = $1 AND ingested_at IS NULL`,
		batchID, at,
	)
	if err != nil {
		return 0, s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM mailing_batches WHERE id = $1)`, batchID).Scan(&exists); err != nil {
			return 0, s.mapError(err)
		}
		if !exists {
			err = goerror.ErrNotFound
			return 0, err
		}
		err = goerror.ErrConflict
		return 0, err
	}

	columns := []string{"id", "batch_id", "name", "email", "subject", "body", "body_kind", "cc", "bcc", "attachments"}
	created, err := tx.CopyFrom(ctx, pgx.Identifier{"mailing_recipients"}, columns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{r.ID, batchID, r.Name, r.Email, r.Subject, r.Body.Content, int16(r.Body.Kind), r.Cc, r.Bcc, r.Attachments}, nil
		}),
	)
	if err != nil {
		return 0, s.mapError(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, s.mapError(err)
	}

	return created, nil
}
