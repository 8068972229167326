package mailing

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/jbcast/internal/mailing/inbound"
	"github.com/shandysiswandi/jbcast/internal/mailing/outbound/db"
	"github.com/shandysiswandi/jbcast/internal/mailing/outbound/email"
	"github.com/shandysiswandi/jbcast/internal/mailing/outbound/fetcher"
	"github.com/shandysiswandi/jbcast/internal/mailing/outbound/mq"
	"github.com/shandysiswandi/jbcast/internal/mailing/usecase"
	"github.com/shandysiswandi/jbcast/internal/pkg/clock"
	"github.com/shandysiswandi/jbcast/internal/pkg/config"
	"github.com/shandysiswandi/jbcast/internal/pkg/goroutine"
	"github.com/shandysiswandi/jbcast/internal/pkg/idempotency"
	"github.com/shandysiswandi/jbcast/internal/pkg/instrument"
	"github.com/shandysiswandi/jbcast/internal/pkg/mail"
	"github.com/shandysiswandi/jbcast/internal/pkg/messaging"
	"github.com/shandysiswandi/jbcast/internal/pkg/secret"
	"github.com/shandysiswandi/jbcast/internal/pkg/storage"
	"github.com/shandysiswandi/jbcast/internal/pkg/uid"
	"github.com/shandysiswandi/jbcast/internal/pkg/validator"
)

type Dependency struct {
	// Ctx is set only by the long running server; consumers are registered on it.
	Ctx        context.Context
	DBConn     *pgxpool.Pool              `validate:"required"`
	Storage    storage.Storage            `validate:"required"`
	Pool       *goroutine.Pool            `validate:"required"`
	Secret     secret.Box                 `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	// Optional collaborators.
	Goroutine   *goroutine.Manager
	Messaging   messaging.Messaging
	Idempotency idempotency.Idempotency
	Dialer      mail.Dialer
	HTTPClient  *http.Client
}

// New wires the mailing module and returns its usecase for direct callers such as the CLI.
func New(dep Dependency) (*usecase.Usecase, error) {
	if err := dep.Validator.Validate(dep); err != nil {
		return nil, err
	}

	composer, err := usecase.NewComposer(context.Background(), usecase.ComposerConfig{
		TemplatePath:   dep.Config.GetString("modules.mailing.composer.template_path"),
		FromName:       dep.Config.GetString("modules.mailing.composer.from_name"),
		InlineImageDir: dep.Config.GetString("modules.mailing.composer.inline_image_dir"),
		InlineImages:   dep.Config.GetArray("modules.mailing.composer.inline_images"),
	})
	if err != nil {
		return nil, err
	}

	dialer := dep.Dialer
	if dialer == nil {
		dialer = &mail.SMTPDialer{
			DialTimeout:    dep.Config.GetSecond("modules.mailing.transport.dial_timeout_seconds"),
			CommandTimeout: dep.Config.GetSecond("modules.mailing.transport.command_timeout_seconds"),
		}
	}

	ucDep := usecase.Dependency{
		RepoDB:      db.NewDB(dep.DBConn, dep.Instrument),
		RepoStorage: dep.Storage,
		RepoFetcher: fetcher.New(fetcher.Config{
			ScratchRoot:   dep.Config.GetString("modules.mailing.attachment.scratch_root"),
			Timeout:       dep.Config.GetSecond("modules.mailing.attachment.timeout_seconds"),
			MaxFileBytes:  dep.Config.GetInt64("modules.mailing.attachment.max_file_bytes"),
			MaxTotalBytes: dep.Config.GetInt64("modules.mailing.attachment.max_total_bytes"),
		}, dep.HTTPClient, dep.Instrument),
		RepoTransport: email.New(dialer, dep.Instrument),
		Pool:          dep.Pool,
		Composer:      composer,
		Secret:        dep.Secret,
		Config:        dep.Config,
		UID:           dep.UID,
		Clock:         dep.Clock,
		Validator:     dep.Validator,
		Instrument:    dep.Instrument,
	}
	if dep.Messaging != nil {
		ucDep.RepoMQ = mq.NewMessaging(dep.Messaging, dep.Instrument)
	}
	if dep.Idempotency != nil {
		ucDep.Dedupe = dep.Idempotency
	}

	uc := usecase.NewMailing(ucDep)

	if dep.Ctx != nil && dep.Messaging != nil && dep.Goroutine != nil {
		inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)
	}

	return uc, nil
}
