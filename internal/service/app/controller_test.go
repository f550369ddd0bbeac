package app

import (
	"context"
	"testing"

	"github.com/nlzhang/study-buddy/backend/internal/model/chat"
	"github.com/nlzhang/study-buddy/backend/internal/model/identity"
	"github.com/nlzhang/study-buddy/backend/internal/service/session"
	"github.com/nlzhang/study-buddy/backend/internal/storage"
)

func setup(t *testing.T) (*Controller, *session.Store, *storage.Memory) {
	t.Helper()
	backend := storage.NewMemory()
	sessions := session.NewStore(backend)
	t.Cleanup(sessions.Close)
	return NewController(backend, sessions), sessions, backend
}

func mustGuest(t *testing.T, email string) identity.Identity {
	t.Helper()
	user, err := identity.Guest("Student", email)
	if err != nil {
		t.Fatalf("Guest err: %v", err)
	}
	return user
}

func TestLoginSeedsAndSelectsSession(t *testing.T) {
	ctrl, _, _ := setup(t)

	ctrl.Login(context.Background(), mustGuest(t, "a@example.com"))

	current, ok := ctrl.CurrentSession()
	if !ok {
		t.Fatal("a session must be selected after login")
	}
	if current.Title != chat.DefaultTitle {
		t.Fatalf("seeded session title = %q, want %q", current.Title, chat.DefaultTitle)
	}
	if len(ctrl.Sessions()) != 1 {
		t.Fatalf("expected exactly one seeded session, got %d", len(ctrl.Sessions()))
	}
}

func TestLoginSelectsMostRecentlyUpdated(t *testing.T) {
	ctrl, sessions, _ := setup(t)
	ctx := context.Background()
	user := mustGuest(t, "a@example.com")

	// Prepare two stored sessions with distinct recency.
	sessions.LoadAll(ctx, user.ID)
	older := sessions.List()[0]
	newer := sessions.Create(ctx, user.ID)
	newer.UpdatedAt = older.UpdatedAt + 1000
	sessions.Update(ctx, newer)
	sessions.Flush()
	sessions.Reset()

	ctrl.Login(ctx, user)

	current, _ := ctrl.CurrentSession()
	if current.ID != newer.ID {
		t.Fatalf("selected %q, want most recently updated %q", current.ID, newer.ID)
	}
}

func TestStartupRestoresIdentity(t *testing.T) {
	backend := storage.NewMemory()
	user := mustGuest(t, "a@example.com")
	if err := backend.SaveUser(user); err != nil {
		t.Fatalf("SaveUser err: %v", err)
	}
	if err := backend.SaveTheme(storage.ThemeDark); err != nil {
		t.Fatalf("SaveTheme err: %v", err)
	}

	sessions := session.NewStore(backend)
	t.Cleanup(sessions.Close)
	ctrl := NewController(backend, sessions)
	ctrl.Startup(context.Background())

	restored, ok := ctrl.User()
	if !ok || restored.ID != user.ID {
		t.Fatalf("expected restored identity %q, got %+v ok=%v", user.ID, restored, ok)
	}
	if ctrl.Theme() != storage.ThemeDark {
		t.Fatalf("Theme() = %q, want dark", ctrl.Theme())
	}
	if _, ok := ctrl.CurrentSession(); !ok {
		t.Fatal("startup with a stored identity must select a session")
	}
}

func TestStartupWithoutIdentity(t *testing.T) {
	ctrl, _, _ := setup(t)
	ctrl.Startup(context.Background())

	if _, ok := ctrl.User(); ok {
		t.Fatal("no identity should be restored from an empty store")
	}
	if _, ok := ctrl.CurrentSession(); ok {
		t.Fatal("no session should be selected without an identity")
	}
	if ctrl.Theme() != storage.ThemeLight {
		t.Fatalf("Theme() = %q, want the light default", ctrl.Theme())
	}
}

func TestLogoutRetainsStoredData(t *testing.T) {
	ctrl, _, backend := setup(t)
	ctx := context.Background()
	user := mustGuest(t, "a@example.com")

	ctrl.Login(ctx, user)
	ctrl.Logout()

	if _, ok := ctrl.User(); ok {
		t.Fatal("identity must be cleared on logout")
	}
	if len(ctrl.Sessions()) != 0 {
		t.Fatal("in-memory sessions must be cleared on logout")
	}
	if _, ok := backend.User(); ok {
		t.Fatal("stored identity must be removed on logout")
	}

	// The session data itself survives for the next login.
	ctrl.Login(ctx, user)
	if len(ctrl.Sessions()) != 1 {
		t.Fatalf("stored sessions must survive logout, got %d", len(ctrl.Sessions()))
	}
}

func TestNewSessionSelectsIt(t *testing.T) {
	ctrl, _, _ := setup(t)
	ctx := context.Background()
	ctrl.Login(ctx, mustGuest(t, "a@example.com"))

	created, err := ctrl.NewSession(ctx)
	if err != nil {
		t.Fatalf("NewSession err: %v", err)
	}
	current, _ := ctrl.CurrentSession()
	if current.ID != created.ID {
		t.Fatal("a new session must become current")
	}
	if len(ctrl.Sessions()) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(ctrl.Sessions()))
	}
}

func TestNewSessionRequiresIdentity(t *testing.T) {
	ctrl, _, _ := setup(t)
	if _, err := ctrl.NewSession(context.Background()); err != ErrNotAuthenticated {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestDeleteCurrentPromotesSurvivor(t *testing.T) {
	ctrl, sessions, _ := setup(t)
	ctx := context.Background()
	ctrl.Login(ctx, mustGuest(t, "a@example.com"))

	first, _ := ctrl.CurrentSession()
	second, _ := ctrl.NewSession(ctx)
	second.UpdatedAt = first.UpdatedAt + 1000
	sessions.Update(ctx, second)

	if err := ctrl.DeleteSession(ctx, second.ID); err != nil {
		t.Fatalf("DeleteSession err: %v", err)
	}
	current, _ := ctrl.CurrentSession()
	if current.ID != first.ID {
		t.Fatalf("selection must fall to the survivor %q, got %q", first.ID, current.ID)
	}
}

func TestDeleteLastSessionCreatesFresh(t *testing.T) {
	ctrl, _, _ := setup(t)
	ctx := context.Background()
	ctrl.Login(ctx, mustGuest(t, "a@example.com"))

	only, _ := ctrl.CurrentSession()
	if err := ctrl.DeleteSession(ctx, only.ID); err != nil {
		t.Fatalf("DeleteSession err: %v", err)
	}

	current, ok := ctrl.CurrentSession()
	if !ok {
		t.Fatal("selection must never be empty while logged in")
	}
	if current.ID == only.ID {
		t.Fatal("the deleted session must not remain current")
	}
	if len(current.Messages) != 0 || current.Title != chat.DefaultTitle {
		t.Fatalf("replacement must be a fresh empty session, got %+v", current)
	}
}

func TestDeleteNonCurrentKeepsSelection(t *testing.T) {
	ctrl, _, _ := setup(t)
	ctx := context.Background()
	ctrl.Login(ctx, mustGuest(t, "a@example.com"))

	first, _ := ctrl.CurrentSession()
	second, _ := ctrl.NewSession(ctx)
	if err := ctrl.SelectSession(first.ID); err != nil {
		t.Fatalf("SelectSession err: %v", err)
	}

	if err := ctrl.DeleteSession(ctx, second.ID); err != nil {
		t.Fatalf("DeleteSession err: %v", err)
	}
	current, _ := ctrl.CurrentSession()
	if current.ID != first.ID {
		t.Fatal("deleting a non-current session must not move the selection")
	}
}

func TestSelectUnknownSession(t *testing.T) {
	ctrl, _, _ := setup(t)
	ctrl.Login(context.Background(), mustGuest(t, "a@example.com"))

	if err := ctrl.SelectSession("missing"); err != session.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSetThemePersists(t *testing.T) {
	ctrl, _, backend := setup(t)

	if err := ctrl.SetTheme(storage.ThemeDark); err != nil {
		t.Fatalf("SetTheme err: %v", err)
	}
	if ctrl.Theme() != storage.ThemeDark {
		t.Fatalf("Theme() = %q, want dark", ctrl.Theme())
	}
	if backend.Theme() != storage.ThemeDark {
		t.Fatal("theme must be written through to storage")
	}
}

func TestSetThemeRejectsUnknownValue(t *testing.T) {
	ctrl, _, _ := setup(t)

	if err := ctrl.SetTheme("sepia"); err == nil {
		t.Fatal("expected an error for an unknown theme")
	}
	if ctrl.Theme() != storage.ThemeLight {
		t.Fatal("a rejected theme must not be applied")
	}
}
