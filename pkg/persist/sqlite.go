package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteGateway stores keys in a single kv table inside one SQLite file —
// a middle ground between the flat-file and Badger backends when a whole
// workspace's sessions should live in one portable database.
type SQLiteGateway struct {
	db *sql.DB

	mu     sync.Mutex
	closed bool
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);`

// NewSQLite opens (and if needed initializes) a SQLite-backed gateway at
// the given database path.
func NewSQLite(path string) (*SQLiteGateway, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &SQLiteGateway{db: db}, nil
}

func (g *SQLiteGateway) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Get returns the value for key, or (nil, nil) when missing.
func (g *SQLiteGateway) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if g.isClosed() {
		return nil, ErrClosed
	}

	var value []byte
	err := g.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, nil
}

// Set upserts value under key. SQLite's transactional write gives the
// atomic replace the contract requires.
func (g *SQLiteGateway) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if g.isClosed() {
		return ErrClosed
	}

	_, err := g.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (g *SQLiteGateway) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if g.isClosed() {
		return ErrClosed
	}

	if _, err := g.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// List returns all keys with the given prefix.
func (g *SQLiteGateway) List(ctx context.Context, prefix string) ([]string, error) {
	if g.isClosed() {
		return nil, ErrClosed
	}

	rows, err := g.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE key LIKE ? ESCAPE '\' ORDER BY key`, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("listing %q: %w", prefix, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing %q: %w", prefix, err)
	}
	return keys, nil
}

// Clear deletes every key with the given prefix.
func (g *SQLiteGateway) Clear(ctx context.Context, prefix string) error {
	if g.isClosed() {
		return ErrClosed
	}

	if _, err := g.db.ExecContext(ctx,
		`DELETE FROM kv WHERE key LIKE ? ESCAPE '\'`, likePrefix(prefix)); err != nil {
		return fmt.Errorf("clearing %q: %w", prefix, err)
	}
	return nil
}

// likePrefix turns a literal prefix into a LIKE pattern, escaping the
// wildcard characters so "graph:%" style ids cannot widen the match.
func likePrefix(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}

// Close shuts the database down. Close is idempotent.
func (g *SQLiteGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	if err := g.db.Close(); err != nil {
		return fmt.Errorf("closing sqlite: %w", err)
	}
	return nil
}
