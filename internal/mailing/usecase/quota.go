package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
	"github.com/shandysiswandi/jbcast/internal/pkg/clock"
)

// admitAccount runs the daily reset and the quota gate, persisting only the
// transitions it causes. Counters are not locked across concurrent senders,
// so the daily cap can be overshot by at most the worker concurrency.
func (s *Usecase) admitAccount(ctx context.Context, acc *entity.OutboundAccount) (bool, error) {
	now := s.clock.Now().In(s.loc)

	if acc.Touch(now, s.loc) {
		reset, err := s.repoDB.ResetAccountQuota(ctx, acc.ID, now, clock.StartOfDay(now))
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo reset account quota", "account_id", acc.ID, "error", err)
			return false, err
		}
		slog.InfoContext(ctx, "daily quota reset", "account_id", acc.ID, "applied", reset)
	}

	wasLimited := acc.RateLimited
	if acc.Admit() {
		return true, nil
	}

	if !wasLimited {
		s.rateLimit(ctx, acc.ID)
	}

	return false, nil
}

func (s *Usecase) rateLimit(ctx context.Context, accountID int64) {
	if err := s.repoDB.MarkAccountRateLimited(ctx, accountID); err != nil {
		slog.ErrorContext(ctx, "failed to repo mark account rate limited", "account_id", accountID, "error", err)
		return
	}
	slog.WarnContext(ctx, "outbound account rate limited", "account_id", accountID)
}
