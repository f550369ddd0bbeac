package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"github.com/nlzhang/study-buddy/backend/internal/model/chat"
	"github.com/nlzhang/study-buddy/backend/internal/model/identity"
)

const schema = `CREATE TABLE IF NOT EXISTS app_storage (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// SQLite persists the key/value layout in a single embedded database
// file. Session collections are stored as one JSON blob per user.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures
// the storage table exists.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create storage table: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM app_storage WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read key %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLite) put(key string, value []byte) error {
	_, err := s.db.Exec(
		"INSERT INTO app_storage (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("write key %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) remove(key string) error {
	if _, err := s.db.Exec("DELETE FROM app_storage WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete key %q: %w", key, err)
	}
	return nil
}

// LoadSessions returns userID's session collection; a missing key yields
// an empty map.
func (s *SQLite) LoadSessions(userID string) (map[string]chat.ChatSession, error) {
	raw, ok, err := s.get(SessionsKey(userID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]chat.ChatSession{}, nil
	}
	sessions := map[string]chat.ChatSession{}
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return nil, fmt.Errorf("decode sessions for user %s: %w", userID, err)
	}
	return sessions, nil
}

// SaveSessions overwrites userID's entire session collection.
func (s *SQLite) SaveSessions(userID string, sessions map[string]chat.ChatSession) error {
	raw, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("encode sessions for user %s: %w", userID, err)
	}
	return s.put(SessionsKey(userID), raw)
}

// User returns the last stored identity, if any. Decode failures are
// logged and treated as absent so a corrupt record cannot block startup.
func (s *SQLite) User() (identity.Identity, bool) {
	raw, ok, err := s.get(userKey)
	if err != nil || !ok {
		if err != nil {
			log.Printf("[storage] failed to read stored user: %v", err)
		}
		return identity.Identity{}, false
	}
	var user identity.Identity
	if err := json.Unmarshal(raw, &user); err != nil {
		log.Printf("[storage] failed to decode stored user: %v", err)
		return identity.Identity{}, false
	}
	return user, true
}

// SaveUser stores the identity record.
func (s *SQLite) SaveUser(user identity.Identity) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return s.put(userKey, raw)
}

// RemoveUser clears the stored identity. Session data is retained.
func (s *SQLite) RemoveUser() error {
	return s.remove(userKey)
}

// Theme returns the stored theme preference, defaulting to light.
func (s *SQLite) Theme() string {
	raw, ok, err := s.get(themeKey)
	if err != nil || !ok {
		if err != nil {
			log.Printf("[storage] failed to read theme: %v", err)
		}
		return ThemeLight
	}
	theme := string(raw)
	if theme != ThemeLight && theme != ThemeDark {
		return ThemeLight
	}
	return theme
}

// SaveTheme stores the theme preference.
func (s *SQLite) SaveTheme(theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return fmt.Errorf("invalid theme %q", theme)
	}
	return s.put(themeKey, []byte(theme))
}
