package dedup

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/lib/pq"
)

// PostgresStore keeps the fingerprint set in a Postgres table so several
// deployments can share one dedup history. Same contract as FileStore;
// capacity is trimmed by insertion time on Save.
type PostgresStore struct {
	db       *sql.DB
	capacity int

	mu      sync.RWMutex
	pending map[string]struct{}
	known   map[string]struct{}
}

// NewPostgresStore connects and ensures the schema exists.
func NewPostgresStore(dsn string, capacity int) (*PostgresStore, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS seen_articles (
		id SERIAL PRIMARY KEY,
		fingerprint VARCHAR(64) UNIQUE NOT NULL,
		inserted_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_seen_articles_fingerprint ON seen_articles(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_seen_articles_inserted_at ON seen_articles(inserted_at);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init dedup schema: %w", err)
	}

	return &PostgresStore{
		db:       db,
		capacity: capacity,
		pending:  make(map[string]struct{}),
		known:    make(map[string]struct{}),
	}, nil
}

// Load snapshots the persisted fingerprints into memory. Query failures
// leave the set empty with a warning so the run can proceed.
func (ps *PostgresStore) Load() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.known = make(map[string]struct{})
	ps.pending = make(map[string]struct{})

	rows, err := ps.db.Query(`SELECT fingerprint FROM seen_articles ORDER BY id`)
	if err != nil {
		slog.Warn("dedup table unreadable, starting empty", "error", err)
		return nil
	}
	defer rows.Close()

	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			continue
		}
		ps.known[fp] = struct{}{}
	}
	return nil
}

func (ps *PostgresStore) Has(key string) bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	if _, ok := ps.known[key]; ok {
		return true
	}
	_, ok := ps.pending[key]
	return ok
}

func (ps *PostgresStore) MarkSeen(key string) error {
	if key == "" {
		return fmt.Errorf("empty dedup key")
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if _, ok := ps.known[key]; ok {
		return nil
	}
	ps.pending[key] = struct{}{}
	return nil
}

// Save flushes pending fingerprints and trims the table to capacity,
// deleting oldest rows first.
func (ps *PostgresStore) Save() error {
	ps.mu.Lock()
	pending := make([]string, 0, len(ps.pending))
	for fp := range ps.pending {
		pending = append(pending, fp)
	}
	ps.mu.Unlock()

	for _, fp := range pending {
		_, err := ps.db.Exec(
			`INSERT INTO seen_articles (fingerprint) VALUES ($1) ON CONFLICT (fingerprint) DO NOTHING`, fp)
		if err != nil {
			return fmt.Errorf("insert fingerprint: %w", err)
		}
		ps.mu.Lock()
		ps.known[fp] = struct{}{}
		delete(ps.pending, fp)
		ps.mu.Unlock()
	}

	_, err := ps.db.Exec(`
		DELETE FROM seen_articles
		WHERE id NOT IN (SELECT id FROM seen_articles ORDER BY id DESC LIMIT $1)`, ps.capacity)
	if err != nil {
		return fmt.Errorf("trim dedup table: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
