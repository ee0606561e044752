// -------------------------------------------------------------------------------
// Handle - Store Connection References
//
// Author: Alex Freidah
//
// A Handle is an established connection to one patient store: the pooled
// *sql.DB plus the GORM session layered on it. Handles are shared by pointer
// across goroutines. OptionalHandle models the secondary store, which may be
// absent at any time; callers must go through Get and handle the absent case.
// -------------------------------------------------------------------------------

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Alaric-Jeff/Records-Information/internal/config"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store roles used in logs, metrics and spans.
const (
	RolePrimary   = "primary"
	RoleSecondary = "secondary"
)

// SQL driver names registered by the imported drivers.
const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite3"
)

const defaultConnectTimeout = 5 * time.Second

// -------------------------------------------------------------------------
// HANDLE
// -------------------------------------------------------------------------

// Handle is an established connection to a single store.
type Handle struct {
	role   string
	driver string
	sqlDB  *sql.DB
	db     *gorm.DB
}

// Role returns "primary" or "secondary".
func (h *Handle) Role() string { return h.role }

// Driver returns the database/sql driver backing this handle.
func (h *Handle) Driver() string { return h.driver }

// DB returns a GORM session bound to ctx.
func (h *Handle) DB(ctx context.Context) *gorm.DB {
	return h.db.WithContext(ctx)
}

// Ping issues a trivial round-trip query against the store.
func (h *Handle) Ping(ctx context.Context) error {
	var one int
	if err := h.sqlDB.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("%s probe failed: %w", h.role, err)
	}
	return nil
}

// Close releases the connection pool.
func (h *Handle) Close() error {
	if h.sqlDB == nil {
		return nil
	}
	return h.sqlDB.Close()
}

// -------------------------------------------------------------------------
// OPTIONAL HANDLE
// -------------------------------------------------------------------------

// OptionalHandle is either Some(handle) or None. The zero value is None.
type OptionalHandle struct {
	h *Handle
}

// Some wraps an established handle. A nil handle yields None.
func Some(h *Handle) OptionalHandle {
	return OptionalHandle{h: h}
}

// None returns the absent value.
func None() OptionalHandle {
	return OptionalHandle{}
}

// Get returns the handle and whether one is present.
func (o OptionalHandle) Get() (*Handle, bool) {
	return o.h, o.h != nil
}

// Present reports whether a handle is held.
func (o OptionalHandle) Present() bool {
	return o.h != nil
}

// -------------------------------------------------------------------------
// OPENING
// -------------------------------------------------------------------------

// parseDSN maps a configured URL to a database/sql driver and the DSN that
// driver expects. postgres:// URLs go to lib/pq; sqlite://, file: and bare
// paths go to go-sqlite3.
func parseDSN(raw string) (driver, dsn string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("empty database url")
	}

	switch {
	case strings.HasPrefix(raw, "file:"):
		return driverSQLite, raw, nil
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite url %q has no path", raw)
		}
		return driverSQLite, path, nil
	case !strings.Contains(raw, "://"):
		return driverSQLite, raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse database url: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		return driverPostgres, raw, nil
	default:
		return "", "", fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}
}

// openHandle opens the pool for one store, applies pool settings, and verifies
// it with a ping bounded by the configured connect timeout.
func openHandle(ctx context.Context, role string, cfg config.DatabaseConfig) (*Handle, error) {
	driver, dsn, err := parseDSN(cfg.URL)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// --- Configure connection pool ---
	switch driver {
	case driverSQLite:
		// SQLite allows one writer; a single connection also keeps :memory:
		// databases alive for the life of the pool.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	default:
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	// --- Verify connectivity ---
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == driverSQLite {
		if err := applyPragmas(pingCtx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}

	// --- Layer GORM on the verified pool ---
	var dialector gorm.Dialector
	if driver == driverSQLite {
		dialector = &sqlite.Dialector{DriverName: driverSQLite, Conn: sqlDB}
	} else {
		dialector = postgres.New(postgres.Config{Conn: sqlDB})
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	return &Handle{role: role, driver: driver, sqlDB: sqlDB, db: db}, nil
}

// applyPragmas configures SQLite for concurrent readers and enforced keys.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}
