package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

//go:embed schema.sql
var schema string

// ErrNotFound indicates the requested document does not exist
var ErrNotFound = errors.New("document not found")

// validName restricts references to the names this store issues, anything
// with path separators or dot segments is rejected before touching the
// filesystem
var validName = regexp.MustCompile(`^[a-zA-Z0-9-]+\.xml$`)

// Config represents storage configuration
type Config struct {
	Dir             string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Record describes one generated document in the registry
type Record struct {
	ID        int64     `db:"id" json:"id"`
	FileName  string    `db:"filename" json:"filename"`
	Title     string    `db:"title" json:"title"`
	Sources   int       `db:"sources" json:"sources"`
	Size      int64     `db:"size" json:"size"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Store persists generated feed documents as files under a root directory
// and tracks them in a sqlite registry
type Store struct {
	db  *sqlx.DB
	dir string
}

// New creates the storage directory, opens the registry database and
// initializes its schema
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("storage dir is required")
	}
	if cfg.DSN == "" {
		cfg.DSN = "file:feedsmith.db?cache=shared&mode=rwc&_txlock=immediate"
	}

	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	db, err := sqlx.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// optimize SQLite settings
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000", // 5 second timeout for locks
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	// initialize schema
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dir: cfg.Dir}, nil
}

// Close closes the registry database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the document under a freshly generated unique filename and
// registers it. Returns the filename callers use to retrieve it later. A
// failed registration removes the file, no partial artifact is left behind.
func (s *Store) Save(ctx context.Context, content []byte, title string, sources int) (string, error) {
	name := uuid.NewString() + ".xml"
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err := retrier.Do(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO documents (filename, title, sources, size, created_at) VALUES (?, ?, ?, ?, ?)`,
			name, title, sources, int64(len(content)), time.Now().UTC())
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("register document: %w", err)}
		}
		return nil
	})
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("save document: %w", err)
	}

	return name, nil
}

// Load returns the stored bytes for a previously issued reference. Unknown,
// unregistered or malformed references report ErrNotFound.
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("invalid document name %q: %w", name, ErrNotFound)
	}

	var registered string
	err := s.db.GetContext(ctx, &registered, `SELECT filename FROM documents WHERE filename = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %q not registered: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup document: %w", err)
	}

	content, err := os.ReadFile(filepath.Join(s.dir, registered)) //nolint:gosec // name is validated and registry-issued
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("document file %q missing: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	return content, nil
}

// List returns the most recently generated documents
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []Record
	err := s.db.SelectContext(ctx, &records,
		`SELECT id, filename, title, sources, size, created_at FROM documents ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	return records, nil
}

// Cleanup deletes documents older than the given age, files first and
// registry rows after. Returns the number of removed documents.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	var expired []Record
	err := s.db.SelectContext(ctx, &expired,
		`SELECT id, filename, title, sources, size, created_at FROM documents WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("select expired documents: %w", err)
	}

	removed := 0
	for _, rec := range expired {
		if err := os.Remove(filepath.Join(s.dir, rec.FileName)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove expired file %s: %w", rec.FileName, err)
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, rec.ID); err != nil {
			return removed, fmt.Errorf("delete expired record %s: %w", rec.FileName, err)
		}
		removed++
	}

	return removed, nil
}

// criticalError wraps an error to signal repeater to stop retrying
type criticalError struct {
	err error
}

func (e *criticalError) Error() string {
	return e.err.Error()
}

// isLockError checks if an error is a SQLite lock/busy error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked")
}
