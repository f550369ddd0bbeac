// Package storage provides the key-addressed durable store backing the
// study-assistant core: per-user session collections plus two small
// scalar entries (last-known identity, theme preference) that must be
// readable synchronously at startup.
package storage

import (
	"github.com/nlzhang/study-buddy/backend/internal/model/chat"
	"github.com/nlzhang/study-buddy/backend/internal/model/identity"
)

// Storage key layout, namespaced by a fixed prefix plus the identity id.
const (
	sessionsKeyPrefix = "study_buddy_sessions_"
	userKey           = "study_buddy_user"
	themeKey          = "study_buddy_theme"
)

// Theme preference values.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// SessionsKey returns the storage key holding userID's session collection.
func SessionsKey(userID string) string {
	return sessionsKeyPrefix + userID
}

// Store is the durable backend for session collections and preferences.
// LoadSessions must treat a missing key as an empty collection; writes are
// full-collection overwrites (read-modify-write, last writer wins).
type Store interface {
	LoadSessions(userID string) (map[string]chat.ChatSession, error)
	SaveSessions(userID string, sessions map[string]chat.ChatSession) error

	User() (identity.Identity, bool)
	SaveUser(user identity.Identity) error
	RemoveUser() error

	Theme() string
	SaveTheme(theme string) error
}
