package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/fs"
)

const migrationsDir = "migrations"

// DSN returns the connection URL of the database dbName.
// With admin set, the admin credentials are used when configured.
func DSN(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

const defaultConnectTimeout = 30 * time.Second

// connect opens dbName and waits for it to accept connections, until ctx is done.
func connect(ctx context.Context, dbName string, admin bool, conf *core.Config) (*sql.DB, error) {
	db, err := sql.Open(conf.Database.Engine, DSN(dbName, admin, conf))
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", dbName)
	}
	if err = waitReady(ctx, db); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "connecting to %s", dbName)
	}
	return db, nil
}

// waitReady pings db with a linearly growing pause (100ms, 200ms, ...) until it answers or ctx is done.
func waitReady(ctx context.Context, db *sql.DB) error {
	for pause := 100 * time.Millisecond; ; pause += 100 * time.Millisecond {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(err, "database not ready")
		case <-time.After(pause):
		}
	}
}

func connectContext(conf *core.Config) (context.Context, context.CancelFunc) {
	timeout := conf.Database.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

// Open opens the app database with the configured pool limits.
func Open(conf *core.Config) (*sql.DB, error) {
	ctx, cancel := connectContext(conf)
	defer cancel()

	db, err := connect(ctx, conf.Database.Name, false, conf)
	if err != nil {
		return nil, err
	}
	// zero values keep the database/sql defaults
	if n := conf.Database.MaxOpenConns; n > 0 {
		db.SetMaxOpenConns(n)
	}
	if n := conf.Database.MaxIdleConns; n > 0 {
		db.SetMaxIdleConns(n)
	}
	if d := conf.Database.ConnMaxLifetime; d > 0 {
		db.SetConnMaxLifetime(d)
	}
	return db, nil
}

func queryFound(ctx context.Context, db *sql.DB, query string, args ...interface{}) (bool, error) {
	var found bool
	err := db.QueryRowContext(ctx, query, args...).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return found, err
}

// ensureRole creates the login role of the app, allowed to create databases.
func ensureRole(ctx context.Context, db *sql.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}
	found, err := queryFound(ctx, db, "SELECT true FROM pg_roles WHERE rolname = $1", conf.Database.User)
	if err != nil || found {
		return err
	}
	_, err = db.ExecContext(ctx, "CREATE USER "+pq.QuoteIdentifier(conf.Database.User)+
		" CREATEDB ENCRYPTED PASSWORD "+pq.QuoteLiteral(conf.Database.Password))
	return err
}

func ensureDatabase(ctx context.Context, db *sql.DB, conf *core.Config) error {
	found, err := queryFound(ctx, db, "SELECT true FROM pg_database WHERE datname = $1", conf.Database.Name)
	if err != nil || found {
		return err
	}
	_, err = db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(conf.Database.Name))
	return err
}

// CreateIfNotExist creates the app role (as admin) and the app database (as the app role) when missing.
func CreateIfNotExist(conf *core.Config) error {
	ctx, cancel := connectContext(conf)
	defer cancel()

	adminDB, err := connect(ctx, "postgres", true, conf)
	if err != nil {
		return err
	}
	defer func() { _ = adminDB.Close() }()
	if err = ensureRole(ctx, adminDB, conf); err != nil {
		return errors.Wrap(err, "creating app role")
	}

	db, err := connect(ctx, "postgres", false, conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err = ensureDatabase(ctx, db, conf); err != nil {
		return errors.Wrap(err, "creating app database")
	}
	return nil
}

// Migrate applies the embedded migrations.
func Migrate(db *sql.DB) error {
	if err := goose.Up(db, appfs.FS, migrationsDir); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

// Setup creates, opens and migrates the app database.
func Setup(conf *core.Config) (*sql.DB, error) {
	if err := CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := Open(conf)
	if err != nil {
		return nil, err
	}
	if err = Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
