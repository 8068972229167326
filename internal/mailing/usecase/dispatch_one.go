package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
	"github.com/shandysiswandi/jbcast/internal/pkg/attachurl"
	"github.com/shandysiswandi/jbcast/internal/pkg/goerror"
	"github.com/shandysiswandi/jbcast/internal/pkg/mail"
	"github.com/shandysiswandi/jbcast/internal/pkg/secret"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type (
	DispatchOneInput struct {
		RecipientID int64 `validate:"required,gt=0"`
	}

	DispatchOneOutput struct {
		RecipientID int64
		Outcome     entity.Outcome
		// Reason is the stored error text: attachment notes on success, the
		// transport failure on failure.
		Reason string
	}
)

// DispatchOne makes a single send attempt for one recipient. A Sent recipient
// is never sent again, and no retry happens here.
func (s *Usecase) DispatchOne(ctx context.Context, in DispatchOneInput) (*DispatchOneOutput, error) {
	ctx, span := s.startSpan(ctx, "DispatchOne")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	rec, err := s.repoDB.GetRecipientByID(ctx, in.RecipientID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "recipient not found", "recipient_id", in.RecipientID)
		return nil, goerror.NewBusiness("recipient not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get recipient by id", "recipient_id", in.RecipientID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if rec.IsSent() {
		return s.finish(ctx, rec.ID, entity.OutcomeAlreadySent, ""), nil
	}

	acc, err := s.loadAccount(ctx, rec.OwnerID)
	if err != nil {
		return nil, err
	}

	admitted, err := s.admitAccount(ctx, acc)
	if err != nil {
		return nil, goerror.NewServer(err)
	}
	if !admitted {
		slog.InfoContext(ctx, "send refused by daily quota", "recipient_id", rec.ID, "account_id", acc.ID, "sent_today", acc.SentToday)
		return s.finish(ctx, rec.ID, entity.OutcomeQuotaExhausted, ""), nil
	}

	conn, err := s.repoTransport.Dial(ctx, mail.Endpoint{
		Host:     acc.Host,
		Port:     acc.Port,
		Username: acc.Username,
		Password: acc.Password,
		UseTLS:   acc.UseTLS,
	})
	if err != nil {
		return s.recordFailure(ctx, rec, acc, "", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.WarnContext(ctx, "failed to close transport connection", "recipient_id", rec.ID, "error", err)
		}
	}()

	res := s.repoFetcher.Resolve(ctx, attachurl.List(rec.Attachments))
	defer s.repoFetcher.Cleanup(ctx, res.ScratchDir)

	msg, readNotes := s.composer.Compose(ctx, rec, acc, res.Items)
	res.Errors = append(res.Errors, readNotes...)
	note := res.Note()

	if err := conn.Send(ctx, msg); err != nil {
		return s.recordFailure(ctx, rec, acc, note, err)
	}

	return s.recordSuccess(ctx, rec, acc, note)
}

func (s *Usecase) loadAccount(ctx context.Context, ownerID int64) (*entity.OutboundAccount, error) {
	acc, err := s.repoDB.GetAccountByOwner(ctx, ownerID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "outbound account not configured", "owner_id", ownerID)
		return nil, goerror.NewBusiness("outbound account not configured", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account by owner", "owner_id", ownerID, "error", err)
		return nil, goerror.NewServer(err)
	}

	password, err := s.secret.Open(acc.SealedPassword, secret.Scope{OwnerID: ownerID, Purpose: secret.PurposeSMTPPassword})
	if err != nil {
		slog.ErrorContext(ctx, "failed to open account password", "account_id", acc.ID, "error", err)
		return nil, goerror.NewServer(err)
	}
	acc.Password = string(password)

	return acc, nil
}

func (s *Usecase) recordSuccess(ctx context.Context, rec *entity.Recipient, acc *entity.OutboundAccount, note string) (*DispatchOneOutput, error) {
	note = entity.TruncateError(note)

	if err := s.repoDB.RecordAttempt(ctx, entity.RecordAttempt{
		RecipientID: rec.ID,
		State:       entity.DeliveryStateSent,
		AttemptedAt: s.clock.Now(),
		LastError:   note,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to repo record sent attempt", "recipient_id", rec.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.repoDB.IncrementAccountSent(ctx, acc.ID); err != nil {
		slog.ErrorContext(ctx, "failed to repo increment account sent", "account_id", acc.ID, "error", err)
	}

	slog.InfoContext(ctx, "email sent", "recipient_id", rec.ID, "batch_id", rec.BatchID, "attachment_note", note != "")

	return s.finish(ctx, rec.ID, entity.OutcomeSent, note), nil
}

func (s *Usecase) recordFailure(ctx context.Context, rec *entity.Recipient, acc *entity.OutboundAccount, note string, sendErr error) (*DispatchOneOutput, error) {
	reason := sendErr.Error()
	if note != "" {
		reason = note + "; " + reason
	}
	reason = entity.TruncateError(reason)

	slog.ErrorContext(ctx, "failed to send email", "recipient_id", rec.ID, "batch_id", rec.BatchID, "error", sendErr)

	if entity.IsQuotaError(sendErr) {
		s.rateLimit(ctx, acc.ID)
	}

	if err := s.repoDB.RecordAttempt(ctx, entity.RecordAttempt{
		RecipientID: rec.ID,
		State:       entity.DeliveryStateFailed,
		AttemptedAt: s.clock.Now(),
		LastError:   reason,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to repo record failed attempt", "recipient_id", rec.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return s.finish(ctx, rec.ID, entity.OutcomeFailed, reason), nil
}

func (s *Usecase) finish(ctx context.Context, recipientID int64, outcome entity.Outcome, reason string) *DispatchOneOutput {
	s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome.String())))
	return &DispatchOneOutput{RecipientID: recipientID, Outcome: outcome, Reason: reason}
}
