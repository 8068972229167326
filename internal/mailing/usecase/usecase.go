package usecase

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
	"github.com/shandysiswandi/jbcast/internal/pkg/clock"
	"github.com/shandysiswandi/jbcast/internal/pkg/config"
	"github.com/shandysiswandi/jbcast/internal/pkg/goroutine"
	"github.com/shandysiswandi/jbcast/internal/pkg/idempotency"
	"github.com/shandysiswandi/jbcast/internal/pkg/instrument"
	"github.com/shandysiswandi/jbcast/internal/pkg/mail"
	"github.com/shandysiswandi/jbcast/internal/pkg/secret"
	"github.com/shandysiswandi/jbcast/internal/pkg/storage"
	"github.com/shandysiswandi/jbcast/internal/pkg/uid"
	"github.com/shandysiswandi/jbcast/internal/pkg/validator"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

type repoDB interface {
	CreateBatch(ctx context.Context, data entity.CreateBatch) error
	GetBatchByID(ctx context.Context, id int64) (*entity.Batch, error)
	ListBatchesByOwner(ctx context.Context, ownerID int64) ([]entity.Batch, error)
	DeleteBatch(ctx context.Context, id, ownerID int64) (bool, error)
	IngestRecipients(ctx context.Context, batchID int64, rows []entity.CreateRecipient, at time.Time) (int64, error)

	GetRecipientByID(ctx context.Context, id int64) (*entity.Recipient, error)
	ListRecipientsByBatch(ctx context.Context, batchID int64) ([]entity.Recipient, error)
	ListUnsentRecipientIDs(ctx context.Context, batchID int64) ([]int64, error)
	RecordAttempt(ctx context.Context, data entity.RecordAttempt) error

	GetAccountByOwner(ctx context.Context, ownerID int64) (*entity.OutboundAccount, error)
	UpsertAccount(ctx context.Context, data entity.SaveAccount) error
	ResetAccountQuota(ctx context.Context, id int64, now, startOfDay time.Time) (bool, error)
	MarkAccountRateLimited(ctx context.Context, id int64) error
	IncrementAccountSent(ctx context.Context, id int64) error
}

type repoStorage interface {
	Put(ctx context.Context, key string, r io.Reader, opts storage.PutOptions) (storage.ObjectInfo, error)
	Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

type repoFetcher interface {
	Resolve(ctx context.Context, urls []string) entity.ResolveResult
	Cleanup(ctx context.Context, dir string)
}

type repoTransport interface {
	Dial(ctx context.Context, ep mail.Endpoint) (mail.Mail, error)
}

type repoMQ interface {
	PublishBatchUploaded(ctx context.Context, msg BatchUploadedEvent) error
}

type scheduler interface {
	SubmitAll(ctx context.Context, tasks []goroutine.Task) error
}

type deduper interface {
	Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...idempotency.Option) error
}

type Usecase struct {
	repoDB        repoDB
	repoStorage   repoStorage
	repoFetcher   repoFetcher
	repoTransport repoTransport
	repoMQ        repoMQ
	pool          scheduler
	dedupe        deduper
	composer      *Composer
	secret        secret.Box
	cfg           config.Config
	uid           uid.NumberID
	clock         clock.Clocker
	validator     validator.Validator
	ins           instrument.Instrumentation

	loc      *time.Location
	outcomes metric.Int64Counter
	rejected metric.Int64Counter
}

type Dependency struct {
	RepoDB        repoDB
	RepoStorage   repoStorage
	RepoFetcher   repoFetcher
	RepoTransport repoTransport
	// RepoMQ is optional. Without it uploads are not announced.
	RepoMQ repoMQ
	Pool   scheduler
	// Dedupe is optional. Without it batch re-triggers are not de-duplicated.
	Dedupe     deduper
	Composer   *Composer
	Secret     secret.Box
	Config     config.Config
	UID        uid.NumberID
	Clock      clock.Clocker
	Validator  validator.Validator
	Instrument instrument.Instrumentation
}

func NewMailing(dep Dependency) *Usecase {
	uc := &Usecase{
		repoDB:        dep.RepoDB,
		repoStorage:   dep.RepoStorage,
		repoFetcher:   dep.RepoFetcher,
		repoTransport: dep.RepoTransport,
		repoMQ:        dep.RepoMQ,
		pool:          dep.Pool,
		dedupe:        dep.Dedupe,
		composer:      dep.Composer,
		secret:        dep.Secret,
		cfg:           dep.Config,
		uid:           dep.UID,
		clock:         dep.Clock,
		validator:     dep.Validator,
		ins:           dep.Instrument,
		loc:           dep.Config.GetLocation("app.tz"),
	}

	meter := dep.Instrument.Meter("mailing.usecase")
	uc.outcomes = counter(meter, "mailing.dispatch.outcomes", "Send attempts by outcome")
	uc.rejected = counter(meter, "mailing.pool.rejected", "Recipients the worker pool refused to queue")

	return uc
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		slog.Warn("failed to create counter, using noop", "name", name, "error", err)
		c, _ = noop.Meter{}.Int64Counter(name)
	}
	return c
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("mailing.usecase").Start(ctx, name)
}
