package database

import (
	"database/sql"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"
	_ "modernc.org/sqlite"

	"github.com/trezcool/seta/core"
	"github.com/trezcool/seta/fs"
)

const (
	EnginePostgres = "postgres"
	EngineSqlite   = "sqlite"

	migrationsDir = "migrations"
)

var gooseRunFunc = goose.RunFS // mockable

func postgresURL(conf *core.Config) string {
	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   EnginePostgres,
		User:     url.UserPassword(conf.Database.User, conf.Database.Password),
		Host:     conf.Database.Address(),
		Path:     conf.Database.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open opens the submission journal database of the configured engine.
func Open(conf *core.Config) (*sqlx.DB, error) {
	switch conf.Database.Engine {
	case EnginePostgres:
		db, err := sqlx.Open(EnginePostgres, postgresURL(conf))
		if err != nil {
			return nil, errors.Wrap(err, "opening postgres database")
		}
		return db, nil
	case EngineSqlite:
		db, err := sql.Open(EngineSqlite, conf.Database.Path)
		if err != nil {
			return nil, errors.Wrap(err, "opening sqlite database")
		}
		// a single connection keeps ":memory:" databases alive and serializes writes
		db.SetMaxOpenConns(1)
		// "sqlite3" gives sqlx the `?` bindvar
		return sqlx.NewDb(db, "sqlite3"), nil
	default:
		return nil, errors.Errorf("unsupported database engine %q", conf.Database.Engine)
	}
}

// Ping waits for the database to be ready. Waits 100ms longer between each attempt.
func Ping(db *sqlx.DB, maxAttempts int) error {
	var err error
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func gooseDialect(engine string) string {
	if engine == EngineSqlite {
		return "sqlite3"
	}
	return engine
}

// RunMigrations runs a goose command ("up", "down", "status", ...) against the embedded migrations.
func RunMigrations(db *sqlx.DB, engine, command string, args ...string) error {
	if err := goose.SetDialect(gooseDialect(engine)); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	if err := gooseRunFunc(command, db.DB, appfs.FS, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "running migration command %q", command)
	}
	return nil
}

func Migrate(db *sqlx.DB, engine string) error {
	return errors.Wrap(RunMigrations(db, engine, "up"), "migrating database")
}
