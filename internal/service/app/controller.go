// Package app wires the identity lifecycle, session selection and theme
// preference together. While an identity is logged in, the current
// selection is never nil: deleting the selected session promotes the most
// recently updated survivor, or creates a fresh empty session.
package app

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/nlzhang/study-buddy/backend/internal/model/chat"
	"github.com/nlzhang/study-buddy/backend/internal/model/identity"
	"github.com/nlzhang/study-buddy/backend/internal/service/session"
	"github.com/nlzhang/study-buddy/backend/internal/storage"
)

var ErrNotAuthenticated = errors.New("no identity is logged in")

// Controller coordinates identity, session selection and preferences.
type Controller struct {
	backend  storage.Store
	sessions *session.Store

	mu        sync.Mutex
	user      *identity.Identity
	currentID string
	theme     string
}

// NewController builds the controller over the durable store and the
// session store.
func NewController(backend storage.Store, sessions *session.Store) *Controller {
	return &Controller{
		backend:  backend,
		sessions: sessions,
		theme:    storage.ThemeLight,
	}
}

// Startup reads the theme and last-known identity synchronously, then
// restores that identity's session set and selection if one is present.
func (c *Controller) Startup(ctx context.Context) {
	theme := c.backend.Theme()
	c.mu.Lock()
	c.theme = theme
	c.mu.Unlock()

	user, ok := c.backend.User()
	if !ok {
		return
	}
	c.mu.Lock()
	c.user = &user
	c.mu.Unlock()
	c.loadAndSelect(ctx, user.ID)
}

// Login stores the identity wholesale and loads its session set. The
// most recently updated session becomes current.
func (c *Controller) Login(ctx context.Context, user identity.Identity) {
	if err := c.backend.SaveUser(user); err != nil {
		log.Printf("[app] failed to persist identity: %v", err)
	}
	c.mu.Lock()
	c.user = &user
	c.mu.Unlock()
	c.loadAndSelect(ctx, user.ID)
}

// Logout clears the identity and all in-memory session state. Stored data
// for the identity is retained; logout is not a data wipe.
func (c *Controller) Logout() {
	if err := c.backend.RemoveUser(); err != nil {
		log.Printf("[app] failed to remove stored identity: %v", err)
	}
	c.mu.Lock()
	c.user = nil
	c.currentID = ""
	c.mu.Unlock()
	c.sessions.Reset()
}

// User returns the active identity, if any.
func (c *Controller) User() (identity.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return identity.Identity{}, false
	}
	return *c.user, true
}

// Theme returns the active theme preference.
func (c *Controller) Theme() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

// SetTheme stores and applies the theme preference.
func (c *Controller) SetTheme(theme string) error {
	if err := c.backend.SaveTheme(theme); err != nil {
		return err
	}
	c.mu.Lock()
	c.theme = theme
	c.mu.Unlock()
	return nil
}

// Sessions returns the session list in display order.
func (c *Controller) Sessions() []chat.ChatSession {
	return c.sessions.List()
}

// CurrentSession returns the selected session.
func (c *Controller) CurrentSession() (chat.ChatSession, bool) {
	c.mu.Lock()
	id := c.currentID
	c.mu.Unlock()
	if id == "" {
		return chat.ChatSession{}, false
	}
	return c.sessions.Get(id)
}

// SelectSession makes an existing session current.
func (c *Controller) SelectSession(id string) error {
	if _, ok := c.sessions.Get(id); !ok {
		return session.ErrSessionNotFound
	}
	c.mu.Lock()
	c.currentID = id
	c.mu.Unlock()
	return nil
}

// NewSession creates an empty session for the active identity and selects
// it.
func (c *Controller) NewSession(ctx context.Context) (chat.ChatSession, error) {
	user, ok := c.User()
	if !ok {
		return chat.ChatSession{}, ErrNotAuthenticated
	}
	sess := c.sessions.Create(ctx, user.ID)
	c.mu.Lock()
	c.currentID = sess.ID
	c.mu.Unlock()
	return sess, nil
}

// DeleteSession removes a session. If it was current, selection falls to
// the most recently updated survivor, or a freshly created session when
// none remain.
func (c *Controller) DeleteSession(ctx context.Context, id string) error {
	user, ok := c.User()
	if !ok {
		return ErrNotAuthenticated
	}
	if err := c.sessions.Delete(ctx, id, user.ID); err != nil {
		return err
	}

	c.mu.Lock()
	wasCurrent := c.currentID == id
	c.mu.Unlock()
	if !wasCurrent {
		return nil
	}

	remaining := c.sessions.List()
	if len(remaining) > 0 {
		c.mu.Lock()
		c.currentID = remaining[0].ID
		c.mu.Unlock()
		return nil
	}
	_, err := c.NewSession(ctx)
	return err
}

// loadAndSelect pulls the identity's collection (seeding one session when
// empty) and selects the most recently updated entry.
func (c *Controller) loadAndSelect(ctx context.Context, userID string) {
	loaded := c.sessions.LoadAll(ctx, userID)
	sorted := chat.SortSessions(loaded)
	c.mu.Lock()
	c.currentID = sorted[0].ID
	c.mu.Unlock()
}
