// Package app assembles dbkit's components from a loaded configuration.
// Commands build one App, use its parts and Close it.
package app

import (
	"context"
	"io"

	"github.com/koustreak/dbkit/internal/config"
	"github.com/koustreak/dbkit/internal/database"
	"github.com/koustreak/dbkit/internal/database/mysql"
	"github.com/koustreak/dbkit/internal/database/postgres"
	"github.com/koustreak/dbkit/internal/database/sqlite"
	"github.com/koustreak/dbkit/internal/errs"
	"github.com/koustreak/dbkit/internal/filestore"
	"github.com/koustreak/dbkit/internal/filestore/minio"
	"github.com/koustreak/dbkit/internal/logger"
	"github.com/koustreak/dbkit/internal/model"
	"github.com/koustreak/dbkit/internal/report"
	"github.com/koustreak/dbkit/internal/schema"
	"github.com/koustreak/dbkit/internal/validator"
)

type App struct {
	Config    *config.Config
	Log       *logger.Logger
	DB        database.DB
	Inspector schema.Introspector
	Validator *validator.Validator
	Tables    []*model.Table

	// Archiver is nil unless reports.endpoint is configured.
	Archiver *report.Archiver

	store   filestore.Store
	logFile io.Closer
}

// NewLogger builds the process logger from the logging section and installs
// it as the global logger.
func NewLogger(cfg config.LoggingConfig) (*logger.Logger, io.Closer, error) {
	out, err := logger.OpenFile(cfg.Path)
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrKindConfiguration, "logging.path", err)
	}
	log := logger.New(cfg.Logger(out))
	logger.SetGlobal(log)
	return log, out, nil
}

// New connects to the database, loads the table models and, when
// configured, the report archive.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, logFile, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Log: log, logFile: logFile}

	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	tables, err := model.LoadDefinitions(cfg.Models)
	if err != nil {
		return err
	}
	a.Tables = tables

	conn := cfg.Database.Connection()
	a.DB, a.Inspector, err = OpenDatabase(ctx, conn)
	if err != nil {
		return err
	}
	a.Log.Infof("connected to %s database %s", conn.Driver, cfg.Database.Name)

	a.Validator = validator.New(a.Inspector,
		validator.WithSchema(conn.Schema),
		validator.WithCompareMode(cfg.CompareMode()),
		validator.WithLogger(a.Log),
	)

	if cfg.Reports.Enabled() {
		a.store, err = minio.New(ctx, cfg.Reports.Store())
		if err != nil {
			return err
		}
		a.Archiver = report.NewArchiver(a.store, cfg.Reports.Bucket, cfg.Reports.Prefix, a.Log)
		if err := a.Archiver.Init(ctx); err != nil {
			return err
		}
	}
	return nil
}

// OpenDatabase connects with the driver named in cfg and returns the
// matching introspector.
func OpenDatabase(ctx context.Context, cfg *database.Config) (database.DB, schema.Introspector, error) {
	switch cfg.Driver {
	case database.DriverPostgres:
		db, err := postgres.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return db, postgres.NewIntrospector(db), nil
	case database.DriverMySQL:
		db, err := mysql.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return db, mysql.NewIntrospector(db), nil
	case database.DriverSQLite:
		db, err := sqlite.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return db, sqlite.NewIntrospector(db), nil
	default:
		return nil, nil, errs.Newf(errs.ErrKindConfiguration, "unsupported driver: %s", cfg.Driver)
	}
}

// Meta describes the connection for reports.
func (a *App) Meta() report.Meta {
	return report.Meta{
		Driver:  a.Config.Database.Driver,
		Schema:  a.Config.Database.Schema,
		Compare: a.Config.CompareMode().String(),
	}
}

// SelectTables returns the named models in the given order, or every model
// when names is empty.
func (a *App) SelectTables(names []string) ([]*model.Table, error) {
	if len(names) == 0 {
		return a.Tables, nil
	}
	byName := make(map[string]*model.Table, len(a.Tables))
	for _, t := range a.Tables {
		byName[t.Name] = t
	}
	out := make([]*model.Table, 0, len(names))
	for _, n := range names {
		t, ok := byName[n]
		if !ok {
			return nil, errs.Newf(errs.ErrKindNotFound, "no model declared for table %q in %s", n, a.Config.Models)
		}
		out = append(out, t)
	}
	return out, nil
}

// Table returns one model by name.
func (a *App) Table(name string) (*model.Table, error) {
	tables, err := a.SelectTables([]string{name})
	if err != nil {
		return nil, err
	}
	return tables[0], nil
}

func (a *App) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
