package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Register the pure-Go SQLite driver (no CGO required).
	_ "modernc.org/sqlite"

	"github.com/giantswarm/kindenv/internal/fileutil"
)

// schema creates the clusters table. created_at is stored as Unix seconds;
// SQLite has no native time type and integer seconds round-trip losslessly.
const schema = `
CREATE TABLE IF NOT EXISTS clusters (
	name            TEXT PRIMARY KEY,
	kind_version    TEXT NOT NULL,
	kubeconfig_path TEXT NOT NULL,
	node_image      TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL
)`

// Cluster is one registry row describing a cluster created by this harness.
type Cluster struct {
	Name           string
	KindVersion    string
	KubeconfigPath string
	NodeImage      string
	CreatedAt      time.Time
}

// Registry is a handle to the bookkeeping database. Safe for use from a
// single logical flow at a time, matching the rest of the library.
type Registry struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if necessary) the registry database at path.
// If logger is nil, slog.Default() is used.
func Open(path string, logger *slog.Logger) (*Registry, error) {
	if path == "" {
		return nil, fmt.Errorf("registry path must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := fileutil.EnsureDirForFile(path); err != nil {
		return nil, fmt.Errorf("prepare registry dir: %w", err)
	}

	// WAL mode with a generous busy timeout tolerates concurrent test
	// binaries sharing one base directory. NORMAL synchronous is enough:
	// this is recoverable bookkeeping, not durable state.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)&_pragma=synchronous(NORMAL)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// Single connection: short-lived bookkeeping sessions, not a pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create registry schema: %w", err)
	}

	return &Registry{db: db, log: logger}, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close registry: %w", err)
	}
	return nil
}

// Record upserts a cluster row. Recording an existing name refreshes its
// metadata and creation time, matching create-reuse semantics.
func (r *Registry) Record(ctx context.Context, c Cluster) error {
	if c.Name == "" {
		return fmt.Errorf("cluster name must not be empty")
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const query = `
		INSERT INTO clusters (name, kind_version, kubeconfig_path, node_image, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			kind_version = excluded.kind_version,
			kubeconfig_path = excluded.kubeconfig_path,
			node_image = excluded.node_image,
			created_at = excluded.created_at
	`
	if _, err := r.db.ExecContext(ctx, query,
		c.Name, c.KindVersion, c.KubeconfigPath, c.NodeImage, createdAt.Unix()); err != nil {
		return fmt.Errorf("record cluster %s: %w", c.Name, err)
	}
	return nil
}

// Remove deletes the row for name. Removing an unknown name is a no-op.
func (r *Registry) Remove(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM clusters WHERE name = ?`, name); err != nil {
		return fmt.Errorf("remove cluster %s: %w", name, err)
	}
	return nil
}

// List returns all recorded clusters ordered by creation time, oldest first.
func (r *Registry) List(ctx context.Context) ([]Cluster, error) {
	const query = `
		SELECT name, kind_version, kubeconfig_path, node_image, created_at
		FROM clusters ORDER BY created_at, name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close() //nolint:errcheck // rows.Err() below catches read errors

	var clusters []Cluster
	for rows.Next() {
		var c Cluster
		var createdAt int64
		if err := rows.Scan(&c.Name, &c.KindVersion, &c.KubeconfigPath, &c.NodeImage, &createdAt); err != nil {
			return nil, fmt.Errorf("scan cluster row: %w", err)
		}
		c.CreatedAt = time.Unix(createdAt, 0)
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cluster rows: %w", err)
	}

	return clusters, nil
}
