// Package session holds the in-memory authoritative view of the active
// identity's chat sessions and mediates reads/writes against durable
// storage. Mutations apply to memory synchronously and schedule
// persistence through an ordered queue without blocking the caller.
package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/nlzhang/study-buddy/backend/internal/model/chat"
	"github.com/nlzhang/study-buddy/backend/internal/storage"
)

var ErrSessionNotFound = errors.New("session not found")

// Change event types published to the listener.
const (
	EventCreated = "session.created"
	EventUpdated = "session.updated"
	EventDeleted = "session.deleted"
)

// Event describes one change to the session collection. Session is nil
// for deletions.
type Event struct {
	Type      string
	UserID    string
	SessionID string
	Session   *chat.ChatSession
}

// Listener receives change events after the in-memory state has been
// updated. Called outside the store lock.
type Listener func(Event)

// persistJob is one queued storage write. A nil snapshot is a flush
// sentinel. When reply is set, the worker reports the write's outcome.
type persistJob struct {
	userID   string
	snapshot map[string]chat.ChatSession
	reply    chan error
}

// Store is the in-memory session collection for the active identity.
type Store struct {
	mu       sync.RWMutex
	userID   string
	sessions map[string]chat.ChatSession

	backend  storage.Store
	listener Listener

	persistCh chan persistJob
	stopped   chan struct{}
}

// NewStore wires the store to its durable backend and starts the
// persistence worker.
func NewStore(backend storage.Store) *Store {
	s := &Store{
		sessions:  make(map[string]chat.ChatSession),
		backend:   backend,
		persistCh: make(chan persistJob, 32),
		stopped:   make(chan struct{}),
	}
	go s.persistLoop()
	return s
}

// SetListener registers the change listener. Must be called before the
// store starts receiving traffic.
func (s *Store) SetListener(fn Listener) {
	s.listener = fn
}

// LoadAll switches the in-memory view to userID's collection. A storage
// read failure degrades to an empty collection; an empty collection is
// seeded with exactly one fresh session, persisted before returning, so a
// logged-in identity always has at least one session to select.
func (s *Store) LoadAll(_ context.Context, userID string) map[string]chat.ChatSession {
	stored, err := s.backend.LoadSessions(userID)
	if err != nil {
		log.Printf("[session] failed to load sessions for user %s: %v", userID, err)
		stored = map[string]chat.ChatSession{}
	}

	var seeded *chat.ChatSession
	if len(stored) == 0 {
		fresh := chat.NewSession(userID)
		stored[fresh.ID] = fresh
		if err := s.backend.SaveSessions(userID, stored); err != nil {
			log.Printf("[session] failed to persist seeded session for user %s: %v", userID, err)
		}
		seeded = &fresh
	}

	s.mu.Lock()
	s.userID = userID
	s.sessions = stored
	out := s.cloneAllLocked()
	s.mu.Unlock()

	if seeded != nil {
		s.notify(Event{Type: EventCreated, UserID: userID, SessionID: seeded.ID, Session: seeded})
	}
	return out
}

// Create builds a new empty session, applies it optimistically and
// schedules persistence. Selecting it as current is the caller's job.
func (s *Store) Create(_ context.Context, userID string) chat.ChatSession {
	sess := chat.NewSession(userID)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	snapshot := s.cloneAllLocked()
	s.mu.Unlock()

	s.enqueuePersist(userID, snapshot)
	s.notify(Event{Type: EventCreated, UserID: userID, SessionID: sess.ID, Session: &sess})
	return sess
}

// Update replaces the stored entry for session.ID wholesale and schedules
// persistence. No merge logic: callers supply a complete session value.
func (s *Store) Update(_ context.Context, sess chat.ChatSession) {
	s.mu.Lock()
	if s.userID != "" && sess.UserID != s.userID {
		s.mu.Unlock()
		log.Printf("[session] ignoring update for inactive user %s", sess.UserID)
		return
	}
	s.sessions[sess.ID] = sess.Clone()
	snapshot := s.cloneAllLocked()
	s.mu.Unlock()

	s.enqueuePersist(sess.UserID, snapshot)
	s.notify(Event{Type: EventUpdated, UserID: sess.UserID, SessionID: sess.ID, Session: &sess})
}

// Delete removes a session, durably first so an interrupted deletion can
// never resurrect the session on the next load. The write goes through
// the persist queue: any snapshot enqueued earlier still contains the
// session and must land before, not after, the deletion.
func (s *Store) Delete(_ context.Context, id, userID string) error {
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	remaining := s.cloneAllLocked()
	delete(remaining, id)

	// The lock is held across the wait so no concurrent mutation can
	// enqueue a snapshot containing the session behind this write.
	reply := make(chan error, 1)
	s.persistCh <- persistJob{userID: userID, snapshot: remaining, reply: reply}
	if err := <-reply; err != nil {
		s.mu.Unlock()
		return err
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	s.notify(Event{Type: EventDeleted, UserID: userID, SessionID: id})
	return nil
}

// Get returns a copy of one session.
func (s *Store) Get(id string) (chat.ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return chat.ChatSession{}, false
	}
	return sess.Clone(), true
}

// List returns the collection in display order, most recently updated
// first.
func (s *Store) List() []chat.ChatSession {
	s.mu.RLock()
	snapshot := s.cloneAllLocked()
	s.mu.RUnlock()
	return chat.SortSessions(snapshot)
}

// Reset drops the in-memory view, used on logout. Durable data is kept.
func (s *Store) Reset() {
	s.mu.Lock()
	s.userID = ""
	s.sessions = make(map[string]chat.ChatSession)
	s.mu.Unlock()
}

// Flush blocks until every persistence job enqueued so far has been
// written. Used by tests and shutdown.
func (s *Store) Flush() {
	reply := make(chan error, 1)
	s.persistCh <- persistJob{reply: reply}
	<-reply
}

// Close drains the persistence queue and stops the worker.
func (s *Store) Close() {
	close(s.persistCh)
	<-s.stopped
}

func (s *Store) cloneAllLocked() map[string]chat.ChatSession {
	out := make(map[string]chat.ChatSession, len(s.sessions))
	for id, sess := range s.sessions {
		out[id] = sess.Clone()
	}
	return out
}

func (s *Store) enqueuePersist(userID string, snapshot map[string]chat.ChatSession) {
	s.persistCh <- persistJob{userID: userID, snapshot: snapshot}
}

// persistLoop writes full-collection snapshots in submission order.
// Failures are logged, never rolled back into the in-memory state.
func (s *Store) persistLoop() {
	defer close(s.stopped)
	for job := range s.persistCh {
		var err error
		if job.snapshot != nil {
			err = s.backend.SaveSessions(job.userID, job.snapshot)
			if err != nil {
				log.Printf("[session] failed to persist sessions for user %s: %v", job.userID, err)
			}
		}
		if job.reply != nil {
			job.reply <- err
		}
	}
}

func (s *Store) notify(e Event) {
	if s.listener != nil {
		s.listener(e)
	}
}
