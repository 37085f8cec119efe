// Package store provides SQLite-backed persistence for settings and alert
// dedup markers. Markers use last-writer-wins semantics; only one controller
// instance per organization ever writes them.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Well-known settings keys.
const (
	KeySelectedOrganization = "selected_organization_id"
	KeyNotifyOnUsageReset   = "notify_on_usage_reset"
	KeySessionKey           = "session_key"
	KeySMTPPasswordEnc      = "smtp_password_enc"
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (and if needed creates) the database at path. Use ":memory:" for
// tests.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// The driver is not safe for concurrent writers on one connection pool
	// with default settings; a single connection is plenty here.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS alert_markers (
	org_id      TEXT NOT NULL,
	period_kind TEXT NOT NULL,
	alert_kind  TEXT NOT NULL,
	period_id   TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	PRIMARY KEY (org_id, period_kind, alert_kind)
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetSetting returns the value for key, or "" and false when unset.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting writes a setting (write-through).
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("store: set setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes a setting. Reports whether a row was deleted.
func (s *Store) DeleteSetting(key string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("store: delete setting %s: %w", key, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetBoolSetting reads a boolean setting with a default.
func (s *Store) GetBoolSetting(key string, def bool) (bool, error) {
	value, ok, err := s.GetSetting(key)
	if err != nil || !ok {
		return def, err
	}
	return value == "true" || value == "1", nil
}

// Marker returns the persisted period id for one dedup marker, or "" when no
// notification has been recorded for that slot yet.
func (s *Store) Marker(orgID, periodKind, alertKind string) (string, error) {
	var periodID string
	err := s.db.QueryRow(
		`SELECT period_id FROM alert_markers
		 WHERE org_id = ? AND period_kind = ? AND alert_kind = ?`,
		orgID, periodKind, alertKind).Scan(&periodID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: marker %s/%s/%s: %w", orgID, periodKind, alertKind, err)
	}
	return periodID, nil
}

// SetMarker records the period id a notification was fired for.
func (s *Store) SetMarker(orgID, periodKind, alertKind, periodID string) error {
	_, err := s.db.Exec(
		`INSERT INTO alert_markers (org_id, period_kind, alert_kind, period_id, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(org_id, period_kind, alert_kind) DO UPDATE SET
		   period_id = excluded.period_id, updated_at = excluded.updated_at`,
		orgID, periodKind, alertKind, periodID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store: set marker %s/%s/%s: %w", orgID, periodKind, alertKind, err)
	}
	return nil
}
