package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/jbcast/internal/mailing"
)

func (a *App) initModules() {
	if !a.config.GetBool("modules.mailing.enabled") {
		slog.Error("module mailing is disabled, nothing to run")
		os.Exit(1)
	}

	dep := mailing.Dependency{
		DBConn:     a.dbConn,
		Storage:    a.storage,
		Pool:       a.pool,
		Secret:     a.secret,
		Config:     a.config,
		Instrument: a.ins,
		UID:        a.uid,
		UUID:       a.uuid,
		Clock:      a.clock,
		Validator:  a.validator,
		Goroutine:  a.goroutine,
	}
	if a.idemp != nil {
		dep.Idempotency = a.idemp
	}
	if a.messaging != nil {
		dep.Ctx = a.ctx
		dep.Messaging = a.messaging
	}

	uc, err := mailing.New(dep)
	if err != nil {
		slog.Error("failed to init module mailing", "error", err)
		os.Exit(1)
	}

	a.mailing = uc
}
