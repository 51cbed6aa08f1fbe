// Package activity keeps an audit log of admin operations in SQLite.
//
// The log records what happened; it is never consulted to decide what pages
// or books exist.
package activity

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/eringen/orator/logging"
)

// Kind names a recorded operation.
type Kind string

const (
	PageCreated   Kind = "page_created"
	PageDeleted   Kind = "page_deleted"
	SiteConverted Kind = "site_converted"
	LoginFailed   Kind = "login_failed"
	LoggedIn      Kind = "logged_in"
)

// Event is one audit log entry.
type Event struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Subject string    `json:"subject"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// Store provides database operations for the audit log.
type Store struct {
	db  *sql.DB
	log *logging.Logger

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string, log *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open activity db: %w", err)
	}
	// WAL lets the cleanup scheduler and request handlers write without
	// blocking readers; writers wait on busy instead of failing.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure activity db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	s := &Store{
		db:      db,
		log:     logging.OrNop(log),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			subject TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);
		CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// currentSchemaVersion is the latest schema version. Increment when adding migrations.
const currentSchemaVersion = 1

func (s *Store) migrate() error {
	verStr, err := s.GetSetting("schema_version")
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	version := 0
	if verStr != "" {
		version, err = strconv.Atoi(verStr)
		if err != nil {
			return fmt.Errorf("parse schema version %q: %w", verStr, err)
		}
	}
	if version < currentSchemaVersion {
		version = currentSchemaVersion
	}
	return s.SetSetting("schema_version", strconv.Itoa(version))
}

// GetSetting retrieves a setting value by key. Returns empty string if not found.
func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

// SetSetting stores a setting value by key (upsert).
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) newID(t time.Time) string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

// Record stores e. A zero At is set to now and a missing ID is generated.
func (s *Store) Record(ctx context.Context, e Event) (Event, error) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	e.At = e.At.UTC()
	if e.ID == "" {
		e.ID = s.newID(e.At)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, kind, subject, detail, at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.Subject, e.Detail, e.At)
	if err != nil {
		return Event{}, fmt.Errorf("record %s: %w", e.Kind, err)
	}
	return e, nil
}

// Log records e and logs instead of failing. Callers use it where the audit
// log must never break the operation being audited.
func (s *Store) Log(ctx context.Context, kind Kind, subject, detail string) {
	if s == nil {
		return
	}
	if _, err := s.Record(ctx, Event{Kind: kind, Subject: subject, Detail: detail}); err != nil {
		s.log.Warn("activity not recorded", "kind", kind, "subject", subject, "error", err)
	}
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, subject, detail, at FROM events ORDER BY at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.Subject, &e.Detail, &e.At); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Purge removes events older than retentionDays and returns how many were
// removed.
func (s *Store) Purge(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge events: %w", err)
	}
	return res.RowsAffected()
}

// StartCleanupScheduler runs periodic purges of old events. Returns a stop function.
func (s *Store) StartCleanupScheduler(retentionDays int, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				n, err := s.Purge(context.Background(), retentionDays)
				if err != nil {
					s.log.Error("activity cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					s.log.Info("activity cleanup", "removed", n)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
