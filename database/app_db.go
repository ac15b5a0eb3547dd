package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

var (
	AppDB     *sql.DB
	AppDriver string
)

// DriverFor maps a database URL to a database/sql driver name and DSN.
// postgres:// and postgresql:// go to lib/pq, mysql:// to go-sql-driver, sqlite:// and file: to modernc sqlite.
func DriverFor(url string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, url, nil

	case strings.HasPrefix(url, "mysql://"):
		dsn = strings.TrimPrefix(url, "mysql://")
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
		return DriverMySQL, dsn, nil

	case strings.HasPrefix(url, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(url, "sqlite://"), nil

	case strings.HasPrefix(url, "file:"):
		return DriverSQLite, url, nil
	}
	return "", "", fmt.Errorf("unsupported database url %q", url)
}

// Open connects and pings the database behind url.
func Open(ctx context.Context, url string) (*sql.DB, string, error) {
	driver, dsn, err := DriverFor(url)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer; concurrent sqlite writers fail with SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping %s database: %w", driver, err)
	}
	return db, driver, nil
}

// InitAppDB opens the run history database and stores it in AppDB.
func InitAppDB(ctx context.Context, url string, log zerolog.Logger) error {
	db, driver, err := Open(ctx, url)
	if err != nil {
		return err
	}
	AppDB = db
	AppDriver = driver
	log.Info().Str("driver", driver).Msg("app database connected")
	return nil
}

// SQLPlaceholders rewrites $1, $2 ... to ? for drivers other than postgres.
func SQLPlaceholders(driver, query string) string {
	if driver == DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			b.WriteByte('?')
			for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
