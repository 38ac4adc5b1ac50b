// Package datasource opens user databases and reads the schema context the
// translator works from.
package datasource

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/marcboeker/go-duckdb/v2"
)

const (
	EngineMySQL      = "mysql"
	EnginePostgreSQL = "postgresql"
	EngineSQLite     = "sqlite"
)

// sqliteCatalog is the name the sqlite file is attached under inside DuckDB.
const sqliteCatalog = "src"

var ErrUnsupportedEngine = errors.New("unsupported database type")

// Target identifies a user database. Host is host:port and is ignored for
// sqlite, where Database is the file path.
type Target struct {
	Engine   string
	Host     string
	Username string
	Password string
	Database string
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// NormalizeEngine maps user input onto a supported engine name.
func NormalizeEngine(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case EngineMySQL:
		return EngineMySQL, nil
	case EnginePostgreSQL, "postgres":
		return EnginePostgreSQL, nil
	case EngineSQLite:
		return EngineSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEngine, raw)
	}
}

// DSN returns the database/sql driver name and data source name for target.
func DSN(target Target) (string, string, error) {
	engine, err := NormalizeEngine(target.Engine)
	if err != nil {
		return "", "", err
	}
	switch engine {
	case EngineMySQL:
		cfg := mysql.NewConfig()
		cfg.User = target.Username
		cfg.Passwd = target.Password
		cfg.Net = "tcp"
		cfg.Addr = target.Host
		cfg.DBName = target.Database
		cfg.ParseTime = true
		return "mysql", cfg.FormatDSN(), nil
	case EnginePostgreSQL:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(target.Username, target.Password),
			Host:   target.Host,
			Path:   "/" + target.Database,
		}
		return "pgx", u.String(), nil
	default:
		return "duckdb", "", nil
	}
}

// Source is an open, verified handle on a user database.
type Source struct {
	DB       *sql.DB
	Engine   string
	Database string
}

func (s *Source) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Open connects to target and pings it. Sqlite files are read through
// DuckDB's sqlite attach, read-only.
func Open(ctx context.Context, target Target, pool PoolConfig) (*Source, error) {
	driverName, dsn, err := DSN(target)
	if err != nil {
		return nil, err
	}
	engine, _ := NormalizeEngine(target.Engine)

	var db *sql.DB
	if engine == EngineSQLite {
		db, err = openSQLite(dsn, target.Database)
	} else {
		db, err = sql.Open(driverName, dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", engine, err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	pingTimeout := pool.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", engine, err)
	}
	return &Source{DB: db, Engine: engine, Database: target.Database}, nil
}

// openSQLite opens an in-memory DuckDB whose every pooled connection sees
// the sqlite file as its default catalog.
func openSQLite(dsn, path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite database path is required")
	}
	connector, err := duckdb.NewConnector(dsn, attachSQLite(path))
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// attachSQLite runs on each new DuckDB connection. ATTACH is shared by the
// instance, USE is per connection.
func attachSQLite(path string) func(driver.ExecerContext) error {
	statements := []string{
		fmt.Sprintf("ATTACH IF NOT EXISTS %s AS %s (TYPE sqlite, READ_ONLY)", quoteLiteral(path), sqliteCatalog),
		"USE " + sqliteCatalog,
	}
	return func(execer driver.ExecerContext) error {
		for _, statement := range statements {
			if _, err := execer.ExecContext(context.Background(), statement, nil); err != nil {
				return fmt.Errorf("attach sqlite database: %w", err)
			}
		}
		return nil
	}
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
