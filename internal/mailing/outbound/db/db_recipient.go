package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
)

const recipientColumns = `r.id, r.batch_id, b.owner_id, r.name, r.email, r.subject, r.body, r.body_kind,
	r.cc, r.bcc, r.attachments, r.state, r.attempts, r.last_attempt_at, r.last_error, r.created_at, r.updated_at`

func scanRecipient(row pgx.Row) (*entity.Recipient, error) {
	var (
		r     entity.Recipient
		kind  int16
		state int16
	)
	if err := row.Scan(
		&r.ID, &r.BatchID, &r.OwnerID, &r.Name, &r.Email, &r.Subject, &r.Body.Content, &kind,
		&r.Cc, &r.Bcc, &r.Attachments, &state, &r.Attempts, &r.LastAttemptAt, &r.LastError, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.Body.Kind = entity.BodyKind(kind)
	r.State = entity.DeliveryState(state)
	return &r, nil
}

func (s *DB) GetRecipientByID(ctx context.Context, id int64) (_ *entity.Recipient, err error) {
	ctx, span := s.startSpan(ctx, "GetRecipientByID")
	defer func() { s.endSpan(span, err) }()

	q := fmt.Sprintf(`SELECT %s FROM mailing_recipients r
		JOIN mailing_batches b ON b.id = r.batch_id
		WHERE r.id = $1`, recipientColumns)

	rec, err := scanRecipient(s.conn.QueryRow(ctx, q, id))
	if err != nil {
		return nil, s.mapError(err)
	}

	return rec, nil
}

func (s *DB) ListRecipientsByBatch(ctx context.Context, batchID int64) (_ []entity.Recipient, err error) {
	ctx, span := s.startSpan(ctx, "ListRecipientsByBatch")
	defer func() { s.endSpan(span, err) }()

	q := fmt.Sprintf(`SELECT %s FROM mailing_recipients r
		JOIN mailing_batches b ON b.id = r.batch_id
		WHERE r.batch_id = $1
		ORDER BY r.id`, recipientColumns)

	rows, err := s.conn.Query(ctx, q, batchID)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	out := make([]entity.Recipient, 0)
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, s.mapError(err)
		}
		out = append(out, *rec)
	}
	if err = rows.Err(); err != nil {
		return nil, s.mapError(err)
	}

	return out, nil
}

func (s *DB) ListUnsentRecipientIDs(ctx context.Context, batchID int64) (_ []int64, err error) {
	ctx, span := s.startSpan(ctx, "ListUnsentRecipientIDs")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx,
		`SELECT id FROM mailing_recipients WHERE batch_id = $1 AND state <> $2 ORDER BY id`,
		batchID, int16(entity.DeliveryStateSent),
	)
	if err != nil {
		return nil, s.mapError(err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, s.mapError(err)
	}

	return ids, nil
}

// RecordAttempt bumps attempts and never moves a Sent recipient to another state.
func (s *DB) RecordAttempt(ctx context.Context, data entity.RecordAttempt) (err error) {
	ctx, span := s.startSpan(ctx, "RecordAttempt")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx,
		`UPDATE mailing_recipients
		SET state = CASE WHEN state = $2 THEN state ELSE $3 END,
			attempts = attempts + 1,
			last_attempt_at = $4,
			last_error = $5,
			updated_at = NOW()
		WHERE id = $1`,
		data.RecipientID, int16(entity.DeliveryStateSent), int16(data.State), data.AttemptedAt, entity.TruncateError(data.LastError),
	)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		err = s.mapError(pgx.ErrNoRows)
		return err
	}

	return nil
}
