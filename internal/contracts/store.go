// Package contracts stores downloaded contract definitions in SQLite and
// fetches missing ones from the official backend.
package contracts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a contract is not stored locally.
var ErrNotFound = errors.New("contract not found")

// Contract is one stored contract.
type Contract struct {
	ID           string
	PublicID     string
	Title        string
	Location     string
	Type         string
	CreatorID    string
	GameVersion  string
	Body         json.RawMessage
	DownloadedAt time.Time
}

// Store manages the local contract database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewStore creates or opens a contract store at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		public_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		creator_id TEXT NOT NULL DEFAULT '',
		game_version TEXT NOT NULL,
		body TEXT NOT NULL,
		downloaded_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_contracts_public_id ON contracts(public_id);
	CREATE INDEX IF NOT EXISTS idx_contracts_game_version ON contracts(game_version);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Resolve reports whether a contract id is stored. Lookup errors count as
// not stored.
func (s *Store) Resolve(ctx context.Context, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM contracts WHERE id = ?`, id).Scan(&one)
	return err == nil
}

// Put inserts or replaces a contract.
func (s *Store) Put(ctx context.Context, c *Contract) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("contract id is required")
	}
	if len(c.Body) == 0 {
		return fmt.Errorf("contract %s has no body", c.ID)
	}
	if c.DownloadedAt.IsZero() {
		c.DownloadedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contracts (id, public_id, title, location, type, creator_id, game_version, body, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			public_id = excluded.public_id,
			title = excluded.title,
			location = excluded.location,
			type = excluded.type,
			creator_id = excluded.creator_id,
			game_version = excluded.game_version,
			body = excluded.body,
			downloaded_at = excluded.downloaded_at`,
		c.ID, c.PublicID, c.Title, c.Location, c.Type, c.CreatorID, c.GameVersion, string(c.Body), c.DownloadedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store contract %s: %w", c.ID, err)
	}
	return nil
}

// Get loads one contract.
func (s *Store) Get(ctx context.Context, id string) (*Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, public_id, title, location, type, creator_id, game_version, body, downloaded_at
		FROM contracts WHERE id = ?`, id)
	c, err := scanContract(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load contract %s: %w", id, err)
	}
	return c, nil
}

// List returns stored contracts for a game version, newest first. An empty
// game version lists everything.
func (s *Store) List(ctx context.Context, gameVersion string) ([]Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, public_id, title, location, type, creator_id, game_version, body, downloaded_at
		FROM contracts`
	var args []any
	if gameVersion != "" {
		query += ` WHERE game_version = ?`
		args = append(args, gameVersion)
	}
	query += ` ORDER BY downloaded_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	defer rows.Close()

	var out []Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContract(row scanner) (*Contract, error) {
	var c Contract
	var body string
	if err := row.Scan(&c.ID, &c.PublicID, &c.Title, &c.Location, &c.Type, &c.CreatorID, &c.GameVersion, &body, &c.DownloadedAt); err != nil {
		return nil, err
	}
	c.Body = json.RawMessage(body)
	return &c, nil
}
