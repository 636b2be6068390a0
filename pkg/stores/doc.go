// Package stores provides the persistence layer for the convoy result
// cache. It includes SQLite-based storage with WAL mode, connection
// pooling, and TTL-aware operations for cached module invocation
// results, resolved host variables, and an audit log.
package stores
