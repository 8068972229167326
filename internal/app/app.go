package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/jbcast/internal/mailing/usecase"
	"github.com/shandysiswandi/jbcast/internal/pkg/clock"
	"github.com/shandysiswandi/jbcast/internal/pkg/config"
	"github.com/shandysiswandi/jbcast/internal/pkg/goroutine"
	"github.com/shandysiswandi/jbcast/internal/pkg/idempotency"
	"github.com/shandysiswandi/jbcast/internal/pkg/instrument"
	"github.com/shandysiswandi/jbcast/internal/pkg/messaging"
	"github.com/shandysiswandi/jbcast/internal/pkg/secret"
	"github.com/shandysiswandi/jbcast/internal/pkg/storage"
	"github.com/shandysiswandi/jbcast/internal/pkg/uid"
	"github.com/shandysiswandi/jbcast/internal/pkg/validator"
)

// Options selects what New wires.
type Options struct {
	// ConfigPath overrides CONFIG_PATH.
	ConfigPath string
	// Serve connects the broker and registers consumers.
	Serve bool
}

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	uid       uid.NumberID
	uuid      uid.StringID
	secret    secret.Box

	// resources
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	messaging messaging.Messaging
	storage   storage.Storage
	pool      *goroutine.Pool

	// modules
	mailing *usecase.Usecase

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New(opts Options) *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
		opts:   opts,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initDatabase()
	app.initCache()
	app.initStorage()
	app.initMessaging()
	app.initPool()
	app.initModules()
	app.initClosers()

	return app
}

// Mailing returns the mailing usecase for one-shot commands.
func (a *App) Mailing() *usecase.Usecase {
	return a.mailing
}

// Context is canceled on Stop or on a termination signal while serving.
func (a *App) Context() context.Context {
	return a.ctx
}
