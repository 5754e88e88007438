// Package checkpoint provides SQLite-based run persistence for irsight.
// Every completed (site, criterion) result is durably recorded so an
// interrupted audit resumes without redoing finished work.
package checkpoint

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ShayCichocki/irsight/pkg/models"
)

// Pair identifies one unit of audit work.
type Pair struct {
	SiteID      int
	CriterionID int
}

// Store wraps an SQLite database holding audit results and run metadata.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DefaultPath returns the checkpoint location under the output directory.
func DefaultPath(outputDir string) string {
	return filepath.Join(outputDir, "checkpoint.db")
}

// Open opens (or creates) a checkpoint database at the given path and
// applies pending migrations. WAL mode is enabled for concurrent reads.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the checkpoint file.
func (s *Store) Path() string {
	return s.path
}

// migrate applies all pending schema migrations.
func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Results},
		{2, migrationV2Meta},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Results = `
CREATE TABLE IF NOT EXISTS results (
	site_id INTEGER NOT NULL,
	criterion_id INTEGER NOT NULL,
	verdict TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0.0,
	details TEXT,
	checked_at DATETIME NOT NULL,
	checked_url TEXT,
	error_message TEXT,
	evidence_path TEXT,
	PRIMARY KEY (site_id, criterion_id)
);

CREATE INDEX IF NOT EXISTS idx_results_site_id ON results(site_id);
CREATE INDEX IF NOT EXISTS idx_results_verdict ON results(verdict);
`

const migrationV2Meta = `
CREATE TABLE IF NOT EXISTS run_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Record persists one result. Recording an already-recorded pair is a no-op:
// the first write wins, which keeps resumes idempotent.
func (s *Store) Record(r models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		INSERT INTO results
			(site_id, criterion_id, verdict, confidence, details, checked_at, checked_url, error_message, evidence_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (site_id, criterion_id) DO NOTHING
	`, r.SiteID, r.CriterionID, string(r.Verdict), r.Confidence, r.Details,
		formatTime(r.CheckedAt), r.CheckedURL, r.ErrorMessage, r.EvidencePath)
	if err != nil {
		return fmt.Errorf("record result (site %d, criterion %d): %w", r.SiteID, r.CriterionID, err)
	}
	return nil
}

// IsCompleted reports whether the pair already has a recorded result.
func (s *Store) IsCompleted(siteID, criterionID int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	row := s.conn.QueryRow(
		"SELECT COUNT(*) FROM results WHERE site_id = ? AND criterion_id = ?",
		siteID, criterionID)
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("check completion: %w", err)
	}
	return n > 0, nil
}

// CompletedPairs returns the set of pairs with recorded results. The
// orchestrator loads this once at startup to skip finished work.
func (s *Store) CompletedPairs() (map[Pair]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.Query("SELECT site_id, criterion_id FROM results")
	if err != nil {
		return nil, fmt.Errorf("load completed pairs: %w", err)
	}
	defer rows.Close()

	done := make(map[Pair]bool)
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.SiteID, &p.CriterionID); err != nil {
			return nil, fmt.Errorf("scan completed pair: %w", err)
		}
		done[p] = true
	}
	return done, rows.Err()
}

// Results returns all recorded results ordered by site then criterion.
func (s *Store) Results() ([]models.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.Query(`
		SELECT site_id, criterion_id, verdict, confidence, details, checked_at,
		       checked_url, error_message, evidence_path
		FROM results
		ORDER BY site_id, criterion_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	defer rows.Close()

	var out []models.Result
	for rows.Next() {
		var r models.Result
		var verdict, checkedAt string
		var details, checkedURL, errMsg, evidence sql.NullString
		if err := rows.Scan(&r.SiteID, &r.CriterionID, &verdict, &r.Confidence,
			&details, &checkedAt, &checkedURL, &errMsg, &evidence); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Verdict = models.Verdict(verdict)
		r.Details = details.String
		r.CheckedURL = checkedURL.String
		r.ErrorMessage = errMsg.String
		r.EvidencePath = evidence.String
		if t, err := parseTime(checkedAt); err == nil {
			r.CheckedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// VerdictCounts returns how many recorded results carry each verdict.
func (s *Store) VerdictCounts() (map[models.Verdict]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.Query("SELECT verdict, COUNT(*) FROM results GROUP BY verdict")
	if err != nil {
		return nil, fmt.Errorf("count verdicts: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Verdict]int)
	for rows.Next() {
		var v string
		var n int
		if err := rows.Scan(&v, &n); err != nil {
			return nil, fmt.Errorf("scan verdict count: %w", err)
		}
		counts[models.Verdict(v)] = n
	}
	return counts, rows.Err()
}

// SetMeta stores or replaces a run metadata value.
func (s *Store) SetMeta(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		INSERT INTO run_meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}

// Meta returns a run metadata value, or empty string when unset.
func (s *Store) Meta(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	row := s.conn.QueryRow("SELECT value FROM run_meta WHERE key = ?", key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("get meta %q: %w", key, err)
	}
	return value, nil
}

// TouchSavedAt records the time of the latest checkpoint flush.
func (s *Store) TouchSavedAt(t time.Time) error {
	return s.SetMeta("saved_at", formatTime(t))
}

// SavedAt returns the time of the latest checkpoint flush, zero when never
// saved.
func (s *Store) SavedAt() (time.Time, error) {
	v, err := s.Meta("saved_at")
	if err != nil || v == "" {
		return time.Time{}, err
	}
	return parseTime(v)
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
