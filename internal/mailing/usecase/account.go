package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
	"github.com/shandysiswandi/jbcast/internal/pkg/goerror"
	"github.com/shandysiswandi/jbcast/internal/pkg/secret"
)

type SaveAccountInput struct {
	OwnerID  int64  `validate:"required,gt=0"`
	Host     string `validate:"required,hostname_rfc1123|ip"`
	Port     int    `validate:"required,gt=0,lte=65535"`
	Username string `validate:"required,max=255,nocrlf"`
	Password string `validate:"required"`
	UseTLS   bool
}

// SaveAccount creates or replaces the outbound account of an owner. The quota
// counters of an existing account are kept.
func (s *Usecase) SaveAccount(ctx context.Context, in SaveAccountInput) error {
	ctx, span := s.startSpan(ctx, "SaveAccount")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	sealed, err := s.secret.Seal([]byte(in.Password), secret.Scope{OwnerID: in.OwnerID, Purpose: secret.PurposeSMTPPassword})
	if err != nil {
		slog.ErrorContext(ctx, "failed to seal account password", "owner_id", in.OwnerID, "error", err)
		return goerror.NewServer(err)
	}

	if err := s.repoDB.UpsertAccount(ctx, entity.SaveAccount{
		ID:             s.uid.Generate(),
		OwnerID:        in.OwnerID,
		Host:           in.Host,
		Port:           in.Port,
		Username:       in.Username,
		SealedPassword: sealed,
		UseTLS:         in.UseTLS,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to repo upsert account", "owner_id", in.OwnerID, "error", err)
		return goerror.NewServer(err)
	}

	return nil
}
