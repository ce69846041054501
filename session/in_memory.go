package session

import (
	"container/list"
	"sort"
	"sync"

	"github.com/hupe1980/proverbs/core"
)

// Options configures an InMemoryStore.
type Options struct {
	// MaxEvents bounds the history kept per session; the oldest events are
	// dropped first. Zero keeps everything.
	MaxEvents int

	// MaxSessions bounds the number of sessions held at once. When a new
	// session would exceed it, the least recently used one is evicted.
	// Zero keeps everything.
	MaxSessions int
}

// InMemoryStore is a volatile SessionStore implementation storing
// sessions in a process local map. It is safe for concurrent access. Each
// returned session is cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu          sync.Mutex
	sessions    map[string]*core.Session
	recency     *list.List // front is most recently used
	elements    map[string]*list.Element
	maxEvents   int
	maxSessions int
}

var _ core.SessionStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &InMemoryStore{
		sessions:    make(map[string]*core.Session),
		recency:     list.New(),
		elements:    make(map[string]*list.Element),
		maxEvents:   opts.MaxEvents,
		maxSessions: opts.MaxSessions,
	}
}

// Get returns an existing session (clone) or creates a new one lazily.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreateLocked(sessionID).Clone(), nil
}

// Lookup returns a clone of an existing session without creating one.
func (s *InMemoryStore) Lookup(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}

	return session.Clone(), nil
}

// Create forces the creation (or overwriting) of a session with the given id.
func (s *InMemoryStore) Create(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createSessionLocked(sessionID).Clone(), nil
}

// Delete removes a session. Deleting an unknown session is not an error.
func (s *InMemoryStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(sessionID)
}

// Len returns the number of sessions currently held.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

// IDs returns the known session ids in lexical order.
func (s *InMemoryStore) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// AppendEvent adds an event to an existing or newly created session.
func (s *InMemoryStore) AppendEvent(sessionID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(sessionID)
	sess.AddEvent(ev)

	if s.maxEvents > 0 {
		if events := sess.GetEvents(); len(events) > s.maxEvents {
			trimmed := core.NewSession(sessionID)
			trimmed.Created = sess.Created
			trimmed.ApplyStateDelta(sess.StateCopy())
			for _, e := range events[len(events)-s.maxEvents:] {
				trimmed.AddEvent(e)
			}
			s.sessions[sessionID] = trimmed
		}
	}

	return nil
}

// ApplyDelta merges a key/value delta into the session state.
func (s *InMemoryStore) ApplyDelta(sessionID string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrCreateLocked(sessionID).ApplyStateDelta(delta)

	return nil
}

// getOrCreateLocked returns the stored session, creating it when missing,
// and marks it as most recently used. Caller must hold the lock.
func (s *InMemoryStore) getOrCreateLocked(sessionID string) *core.Session {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return s.createSessionLocked(sessionID)
	}

	if el, ok := s.elements[sessionID]; ok {
		s.recency.MoveToFront(el)
	}

	return sess
}

// createSessionLocked allocates and stores a new session, evicting the least
// recently used ones beyond MaxSessions. Caller must hold the lock.
func (s *InMemoryStore) createSessionLocked(sessionID string) *core.Session {
	s.removeLocked(sessionID)

	if s.maxSessions > 0 {
		for len(s.sessions) >= s.maxSessions {
			oldest := s.recency.Back()
			if oldest == nil {
				break
			}
			s.removeLocked(oldest.Value.(string))
		}
	}

	sess := core.NewSession(sessionID)
	s.sessions[sessionID] = sess
	s.elements[sessionID] = s.recency.PushFront(sessionID)

	return sess
}

func (s *InMemoryStore) removeLocked(sessionID string) {
	delete(s.sessions, sessionID)

	if el, ok := s.elements[sessionID]; ok {
		s.recency.Remove(el)
		delete(s.elements, sessionID)
	}
}
