package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nlzhang/study-buddy/backend/internal/model/chat"
	"github.com/nlzhang/study-buddy/backend/internal/model/identity"
)

// ErrUnavailable is returned by a Memory store switched into failure mode.
var ErrUnavailable = errors.New("storage unavailable")

// Memory implements Store with plain maps, suitable for tests and
// diskless runs. FailWrites/FailReads switch the store into failure mode
// to exercise degradation paths.
type Memory struct {
	mu         sync.Mutex
	sessions   map[string]map[string]chat.ChatSession
	user       *identity.Identity
	theme      string
	FailReads  bool
	FailWrites bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]map[string]chat.ChatSession)}
}

func (m *Memory) LoadSessions(userID string) (map[string]chat.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads {
		return nil, ErrUnavailable
	}
	out := make(map[string]chat.ChatSession, len(m.sessions[userID]))
	for id, s := range m.sessions[userID] {
		out[id] = s.Clone()
	}
	return out, nil
}

func (m *Memory) SaveSessions(userID string, sessions map[string]chat.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrUnavailable
	}
	stored := make(map[string]chat.ChatSession, len(sessions))
	for id, s := range sessions {
		stored[id] = s.Clone()
	}
	m.sessions[userID] = stored
	return nil
}

func (m *Memory) User() (identity.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return identity.Identity{}, false
	}
	return *m.user, true
}

func (m *Memory) SaveUser(user identity.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrUnavailable
	}
	m.user = &user
	return nil
}

func (m *Memory) RemoveUser() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = nil
	return nil
}

func (m *Memory) Theme() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.theme == "" {
		return ThemeLight
	}
	return m.theme
}

func (m *Memory) SaveTheme(theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return fmt.Errorf("invalid theme %q", theme)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrUnavailable
	}
	m.theme = theme
	return nil
}
