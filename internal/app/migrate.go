package app

import (
	"log/slog"

	"github.com/shandysiswandi/jbcast/internal/pkg/config"
	"github.com/shandysiswandi/jbcast/internal/pkg/migration"
	"github.com/shandysiswandi/jbcast/migrations"
)

// Migrate applies (up) or rolls back (down) the embedded schema without wiring the rest of the app.
func Migrate(configPathOverride string, up bool) error {
	cfg, err := config.NewViper(configPath(configPathOverride))
	if err != nil {
		return err
	}
	defer func() { _ = cfg.Close() }()

	if up {
		return migrateUp(cfg.GetString("database.url"))
	}

	mg, err := migration.New(cfg.GetString("database.url"), migrations.FS)
	if err != nil {
		return err
	}
	defer func() { _ = mg.Close() }()

	if err := mg.Down(); err != nil {
		return err
	}

	v, _, err := mg.Version()
	if err != nil {
		return err
	}
	slog.Info("migration rolled back", "version", v)
	return nil
}

func migrateUp(dsn string) error {
	mg, err := migration.New(dsn, migrations.FS)
	if err != nil {
		return err
	}
	defer func() { _ = mg.Close() }()

	return mg.Up()
}
