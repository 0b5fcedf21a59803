package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"fleetforge/internal/repository"
	"fleetforge/internal/topology"

	_ "modernc.org/sqlite"
)

// querier is the subset of *sql.DB and *sql.Tx the queries run against
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// queries implements repository.Queries over a database or a transaction
type queries struct {
	q querier
}

// Repository implements repository.Repository and topology.Store using SQLite
type Repository struct {
	queries
	db *sql.DB
}

var (
	_ repository.Repository = (*Repository)(nil)
	_ topology.Store        = (*Repository)(nil)
	_ topology.Tx           = (*Tx)(nil)
	_ topology.ReadTx       = (*Tx)(nil)
)

// New opens the SQLite database at dbPath and migrates its schema
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{queries: queries{q: db}, db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

// dsn adds the connection pragmas. Write transactions start IMMEDIATE so the
// write lock is taken at BEGIN and a reconciliation never has to upgrade.
// The driver ignores _txlock for read-only transactions.
func dsn(dbPath string) string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")
	if dbPath != ":memory:" {
		params.Add("_pragma", "journal_mode(WAL)")
	}
	params.Set("_txlock", "immediate")
	params.Set("_time_format", "sqlite")

	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return "file:" + dbPath + sep + params.Encode()
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS releases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		version TEXT NOT NULL,
		description TEXT,
		UNIQUE (name, version)
	);

	CREATE TABLE IF NOT EXISTS clusters (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		release_id INTEGER,
		mode TEXT,
		net_manager TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (release_id) REFERENCES releases(id) ON DELETE SET NULL
	);

	CREATE TABLE IF NOT EXISTS cluster_attributes (
		cluster_id INTEGER PRIMARY KEY,
		editable JSON,
		generated JSON,
		FOREIGN KEY (cluster_id) REFERENCES clusters(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS network_groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		cluster_id INTEGER NOT NULL,
		vlan_start INTEGER,
		cidr TEXT,
		gateway TEXT,
		FOREIGN KEY (cluster_id) REFERENCES clusters(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS nodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT,
		mac TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'discover',
		online INTEGER NOT NULL DEFAULT 1,
		cluster_id INTEGER,
		meta JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (cluster_id) REFERENCES clusters(id) ON DELETE SET NULL
	);

	CREATE TABLE IF NOT EXISTS interfaces (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		node_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		mac TEXT NOT NULL UNIQUE,
		current_speed INTEGER,
		max_speed INTEGER,
		FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS assignments (
		interface_id INTEGER NOT NULL,
		network_id INTEGER NOT NULL,
		PRIMARY KEY (interface_id, network_id),
		FOREIGN KEY (interface_id) REFERENCES interfaces(id) ON DELETE CASCADE,
		FOREIGN KEY (network_id) REFERENCES network_groups(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic TEXT NOT NULL,
		message TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'unread',
		node_id INTEGER,
		cluster_id INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE SET NULL,
		FOREIGN KEY (cluster_id) REFERENCES clusters(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_cluster ON nodes(cluster_id);
	CREATE INDEX IF NOT EXISTS idx_interfaces_node ON interfaces(node_id);
	CREATE INDEX IF NOT EXISTS idx_network_groups_cluster ON network_groups(cluster_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_network ON assignments(network_id);
	`

	if _, err := r.db.Exec(schema); err != nil {
		return err
	}

	// Columns added after the initial schema
	return r.addColumnIfNotExists("nodes", "topology_version", "INTEGER NOT NULL DEFAULT 0")
}

// addColumnIfNotExists adds a column to table unless it is already present
func (r *Repository) addColumnIfNotExists(table, column, decl string) error {
	rows, err := r.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return fmt.Errorf("failed to scan %s columns: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating %s columns: %w", table, err)
	}
	rows.Close()

	if _, err := r.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)); err != nil {
		return fmt.Errorf("failed to add %s.%s: %w", table, column, err)
	}
	return nil
}

// Tx is a repository transaction. It also serves as the topology
// transaction of the reconciler.
type Tx struct {
	queries
	tx *sql.Tx
}

// Begin starts a transaction
func (r *Repository) Begin(ctx context.Context) (*Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{queries: queries{q: tx}, tx: tx}, nil
}

// BeginTx implements topology.Store
func (r *Repository) BeginTx(ctx context.Context) (topology.Tx, error) {
	return r.Begin(ctx)
}

// BeginReadTx implements topology.Store. A read-only transaction starts
// DEFERRED, so under WAL it reads a snapshot while a writer holds the lock.
// An in-memory database has a single connection and waits for the writer.
func (r *Repository) BeginReadTx(ctx context.Context) (topology.ReadTx, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	return &Tx{queries: queries{q: tx}, tx: tx}, nil
}

// WithTx runs fn inside one transaction
func (r *Repository) WithTx(ctx context.Context, fn func(q repository.Queries) error) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

// Commit commits the transaction
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is a no-op.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return err
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
