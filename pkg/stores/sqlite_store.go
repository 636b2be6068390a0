package stores

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// notExpired filters out rows whose TTL has elapsed. Rows with a NULL
// expires_at never expire.
const notExpired = "(expires_at IS NULL OR datetime(expires_at) > datetime('now'))"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		path: cfg.Path,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	// Open database with SQLite-specific connection parameters
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection and set PRAGMAs
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// InvocationKey derives the cache key for a module invocation from the
// executable path, the argument map and the target host. Arguments are
// serialized with sorted keys so logically equal maps hash identically.
func InvocationKey(executable string, args map[string]interface{}, host string) string {
	h := sha256.New()
	h.Write([]byte(executable))
	h.Write([]byte{0})
	h.Write([]byte(host))
	h.Write([]byte{0})

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		// Marshal errors only on unsupported types; those never make it
		// into an argument map that was decoded from JSON.
		v, _ := json.Marshal(args[k])
		h.Write(v)
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// PutInvocation inserts or replaces a cached invocation result.
func (s *SQLiteStore) PutInvocation(ctx context.Context, inv *CachedInvocation) error {
	now := time.Now().UTC().Format("2006-01-02 15:04:05")

	var expiresAt *string
	if inv.TTL > 0 {
		expires := time.Now().UTC().Add(time.Duration(inv.TTL) * time.Second).Format("2006-01-02 15:04:05")
		expiresAt = &expires
	}

	query := `
		INSERT INTO cached_invocations (key, executable, host, result, exit_code, ttl, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			result = excluded.result,
			exit_code = excluded.exit_code,
			ttl = excluded.ttl,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		inv.Key,
		inv.Executable,
		inv.Host,
		inv.Result,
		inv.ExitCode,
		inv.TTL,
		expiresAt,
		now,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to put invocation: %w", err)
	}

	return nil
}

// GetInvocation retrieves a cached invocation result by key. Expired
// entries are treated as missing.
func (s *SQLiteStore) GetInvocation(ctx context.Context, key string) (*CachedInvocation, error) {
	query := `
		SELECT key, executable, host, result, exit_code, ttl, expires_at, created_at, updated_at
		FROM cached_invocations
		WHERE key = ? AND ` + notExpired

	inv := &CachedInvocation{}
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&inv.Key,
		&inv.Executable,
		&inv.Host,
		&inv.Result,
		&inv.ExitCode,
		&inv.TTL,
		&inv.ExpiresAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invocation not found: %s", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invocation: %w", err)
	}

	return inv, nil
}

// ListInvocations lists live cached invocations, optionally filtered by host.
func (s *SQLiteStore) ListInvocations(ctx context.Context, host *string, limit, offset int) ([]*CachedInvocation, error) {
	query := `
		SELECT key, executable, host, result, exit_code, ttl, expires_at, created_at, updated_at
		FROM cached_invocations
		WHERE ` + notExpired
	args := []interface{}{}

	if host != nil {
		query += " AND host = ?"
		args = append(args, *host)
	}

	query += " ORDER BY updated_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var invocations []*CachedInvocation
	for rows.Next() {
		inv := &CachedInvocation{}
		err := rows.Scan(
			&inv.Key,
			&inv.Executable,
			&inv.Host,
			&inv.Result,
			&inv.ExitCode,
			&inv.TTL,
			&inv.ExpiresAt,
			&inv.CreatedAt,
			&inv.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		invocations = append(invocations, inv)
	}

	return invocations, rows.Err()
}

// DeleteInvocation removes a cached invocation by key.
func (s *SQLiteStore) DeleteInvocation(ctx context.Context, key string) error {
	query := `DELETE FROM cached_invocations WHERE key = ?`

	result, err := s.db.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("failed to delete invocation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("invocation not found: %s", key)
	}

	return nil
}

// PutHostVars inserts or replaces the cached variable set for a host.
func (s *SQLiteStore) PutHostVars(ctx context.Context, hv *CachedHostVars) error {
	now := time.Now().UTC().Format("2006-01-02 15:04:05")

	var expiresAt *string
	if hv.TTL > 0 {
		expires := time.Now().UTC().Add(time.Duration(hv.TTL) * time.Second).Format("2006-01-02 15:04:05")
		expiresAt = &expires
	}

	query := `
		INSERT INTO cached_host_vars (host, vars, source_set, ttl, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(host) DO UPDATE SET
			vars = excluded.vars,
			source_set = excluded.source_set,
			ttl = excluded.ttl,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		hv.Host,
		hv.Vars,
		hv.SourceSet,
		hv.TTL,
		expiresAt,
		now,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to put host vars: %w", err)
	}

	return nil
}

// GetHostVars retrieves the cached variable set for a host. Expired
// entries are treated as missing.
func (s *SQLiteStore) GetHostVars(ctx context.Context, host string) (*CachedHostVars, error) {
	query := `
		SELECT host, vars, source_set, ttl, expires_at, created_at, updated_at
		FROM cached_host_vars
		WHERE host = ? AND ` + notExpired

	hv := &CachedHostVars{}
	err := s.db.QueryRowContext(ctx, query, host).Scan(
		&hv.Host,
		&hv.Vars,
		&hv.SourceSet,
		&hv.TTL,
		&hv.ExpiresAt,
		&hv.CreatedAt,
		&hv.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("host vars not found: %s", host)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get host vars: %w", err)
	}

	return hv, nil
}

// DeleteHostVars removes the cached variable set for a host.
func (s *SQLiteStore) DeleteHostVars(ctx context.Context, host string) error {
	query := `DELETE FROM cached_host_vars WHERE host = ?`

	result, err := s.db.ExecContext(ctx, query, host)
	if err != nil {
		return fmt.Errorf("failed to delete host vars: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("host vars not found: %s", host)
	}

	return nil
}

// DeleteExpired removes all entries whose TTL has elapsed and returns
// the number of rows removed across both tables.
func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int64, error) {
	var total int64

	for _, table := range []string{"cached_invocations", "cached_host_vars"} {
		query := fmt.Sprintf(`
			DELETE FROM %s
			WHERE expires_at IS NOT NULL AND datetime(expires_at) <= datetime('now')
		`, table)

		result, err := s.db.ExecContext(ctx, query)
		if err != nil {
			return total, fmt.Errorf("failed to delete expired entries from %s: %w", table, err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to get rows affected: %w", err)
		}
		total += rows
	}

	return total, nil
}

// Purge removes all cache entries. A non-nil kind restricts the purge
// to a single table.
func (s *SQLiteStore) Purge(ctx context.Context, kind *CacheKind) (int64, error) {
	tables := []string{"cached_invocations", "cached_host_vars"}
	if kind != nil {
		switch *kind {
		case CacheKindInvocation:
			tables = []string{"cached_invocations"}
		case CacheKindHostVars:
			tables = []string{"cached_host_vars"}
		default:
			return 0, fmt.Errorf("unknown cache kind: %s", *kind)
		}
	}

	var total int64
	for _, table := range tables {
		result, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			return total, fmt.Errorf("failed to purge %s: %w", table, err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to get rows affected: %w", err)
		}
		total += rows
	}

	return total, nil
}

// Stats reports the number of live and expired entries in the cache.
func (s *SQLiteStore) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}

	query := `SELECT COUNT(*) FROM cached_invocations WHERE ` + notExpired
	if err := s.db.QueryRowContext(ctx, query).Scan(&stats.Invocations); err != nil {
		return nil, fmt.Errorf("failed to count invocations: %w", err)
	}

	query = `SELECT COUNT(*) FROM cached_host_vars WHERE ` + notExpired
	if err := s.db.QueryRowContext(ctx, query).Scan(&stats.HostVars); err != nil {
		return nil, fmt.Errorf("failed to count host vars: %w", err)
	}

	query = `
		SELECT
			(SELECT COUNT(*) FROM cached_invocations WHERE expires_at IS NOT NULL AND datetime(expires_at) <= datetime('now')) +
			(SELECT COUNT(*) FROM cached_host_vars WHERE expires_at IS NOT NULL AND datetime(expires_at) <= datetime('now'))
	`
	if err := s.db.QueryRowContext(ctx, query).Scan(&stats.Expired); err != nil {
		return nil, fmt.Errorf("failed to count expired entries: %w", err)
	}

	return stats, nil
}

// CreateAuditEntry appends an audit trail entry
func (s *SQLiteStore) CreateAuditEntry(ctx context.Context, entry *AuditEntry) error {
	query := `
		INSERT INTO audit_log (action, actor, target_id, details, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		entry.Action,
		entry.Actor,
		entry.TargetID,
		entry.Details,
		entry.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit entry ID: %w", err)
	}
	entry.ID = id

	return nil
}

// ListAuditEntries lists audit entries, optionally filtered by action
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, action *string, limit, offset int) ([]*AuditEntry, error) {
	query := `
		SELECT id, action, actor, target_id, details, timestamp
		FROM audit_log
		WHERE 1=1
	`
	args := []interface{}{}

	if action != nil {
		query += " AND action = ?"
		args = append(args, *action)
	}

	query += " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*AuditEntry
	for rows.Next() {
		entry := &AuditEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.Actor,
			&entry.TargetID,
			&entry.Details,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// HealthCheck verifies the database is reachable
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
