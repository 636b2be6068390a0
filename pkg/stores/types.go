package stores

import (
	"context"
	"database/sql"
	"time"
)

// CacheKind identifies which cache table an entry belongs to.
type CacheKind string

const (
	CacheKindInvocation CacheKind = "invocation"
	CacheKindHostVars   CacheKind = "hostvars"
)

// CachedInvocation is a stored module invocation result. The key is a
// digest over the executable path, the argument payload and the target
// host, so identical invocations within the TTL window are served from
// the cache.
type CachedInvocation struct {
	Key        string     `json:"key"`
	Executable string     `json:"executable"`
	Host       string     `json:"host"`
	Result     string     `json:"result"` // JSON blob
	ExitCode   int        `json:"exit_code"`
	TTL        int        `json:"ttl"` // seconds, 0 = no expiry
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CachedHostVars is the merged variable set for a single host, stored
// after an inventory resolution pass.
type CachedHostVars struct {
	Host      string     `json:"host"`
	Vars      string     `json:"vars"` // JSON blob
	SourceSet string     `json:"source_set"`
	TTL       int        `json:"ttl"` // seconds, 0 = no expiry
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// AuditEntry records a cache-affecting action for later inspection.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"` // e.g. "invocation.cached", "cache.purged"
	Actor     string    `json:"actor"`
	TargetID  *string   `json:"target_id,omitempty"`
	Details   *string   `json:"details,omitempty"` // JSON blob
	Timestamp time.Time `json:"timestamp"`
}

// CacheStats summarizes the current contents of the cache.
type CacheStats struct {
	Invocations int64 `json:"invocations"`
	HostVars    int64 `json:"host_vars"`
	Expired     int64 `json:"expired"`
}

// Store defines the interface for the cache persistence layer.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Invocation cache
	PutInvocation(ctx context.Context, inv *CachedInvocation) error
	GetInvocation(ctx context.Context, key string) (*CachedInvocation, error)
	ListInvocations(ctx context.Context, host *string, limit, offset int) ([]*CachedInvocation, error)
	DeleteInvocation(ctx context.Context, key string) error

	// Host vars cache
	PutHostVars(ctx context.Context, hv *CachedHostVars) error
	GetHostVars(ctx context.Context, host string) (*CachedHostVars, error)
	DeleteHostVars(ctx context.Context, host string) error

	// Maintenance
	DeleteExpired(ctx context.Context) (int64, error)
	Purge(ctx context.Context, kind *CacheKind) (int64, error)
	Stats(ctx context.Context) (*CacheStats, error)

	// Audit operations
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, action *string, limit, offset int) ([]*AuditEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
