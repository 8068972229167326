package db

import (
	"context"
	"time"

	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
)

func (s *DB) GetAccountByOwner(ctx context.Context, ownerID int64) (_ *entity.OutboundAccount, err error) {
	ctx, span := s.startSpan(ctx, "GetAccountByOwner")
	defer func() { s.endSpan(span, err) }()

	var a entity.OutboundAccount
	err = s.conn.QueryRow(ctx,
		`SELECT id, owner_id, host, port, username, password, use_tls, sent_today, rate_limited, last_reset, created_at, updated_at
		FROM mailing_outbound_accounts WHERE owner_id = $1`,
		ownerID,
	).Scan(&a.ID, &a.OwnerID, &a.Host, &a.Port, &a.Username, &a.SealedPassword, &a.UseTLS,
		&a.SentToday, &a.RateLimited, &a.LastReset, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &a, nil
}

// UpsertAccount replaces the credentials of the owner's account and keeps its quota counters.
func (s *DB) UpsertAccount(ctx context.Context, data entity.SaveAccount) (err error) {
	ctx, span := s.startSpan(ctx, "UpsertAccount")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx,
		`INSERT INTO mailing_outbound_accounts (id, owner_id, host, port, username, password, use_tls)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id) DO UPDATE SET
			host = EXCLUDED.host,
			port = EXCLUDED.port,
			username = EXCLUDED.username,
			password = EXCLUDED.password,
			use_tls = EXCLUDED.use_tls,
			updated_at = NOW()`,
		data.ID, data.OwnerID, data.Host, data.Port, data.Username, data.SealedPassword, data.UseTLS,
	)
	return s.mapError(err)
}

// ResetAccountQuota applies the daily reset only if no concurrent sender did it already today.
func (s *DB) ResetAccountQuota(ctx context.Context, id int64, now, startOfDay time.Time) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "ResetAccountQuota")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx,
		`UPDATE mailing_outbound_accounts
		SET sent_today = 0, rate_limited = FALSE, last_reset = $2, updated_at = NOW()
		WHERE id = $1 AND last_reset < $3`,
		id, now, startOfDay,
	)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *DB) MarkAccountRateLimited(ctx context.Context, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "MarkAccountRateLimited")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx,
		`UPDATE mailing_outbound_accounts SET rate_limited = TRUE, updated_at = NOW() WHERE id = $1`,
		id,
	)
	return s.mapError(err)
}

func (s *DB) IncrementAccountSent(ctx context.Context, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "IncrementAccountSent")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx,
		`UPDATE mailing_outbound_accounts SET sent_today = sent_today + 1, updated_at = NOW() WHERE id = $1`,
		id,
	)
	return s.mapError(err)
}
