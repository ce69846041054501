package core

import (
	"context"
)

type rcMockSessionStore struct {
	sessions map[string]*Session
}

func newRCMockSessionStore() *rcMockSessionStore {
	return &rcMockSessionStore{sessions: map[string]*Session{}}
}

func (s *rcMockSessionStore) Get(id string) (*Session, error) {
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	return s.Create(id)
}

func (s *rcMockSessionStore) Create(id string) (*Session, error) {
	sess := NewSession(id)
	s.sessions[id] = sess
	return sess, nil
}

func (s *rcMockSessionStore) AppendEvent(id string, ev Event) error {
	sess, _ := s.Get(id)
	sess.AddEvent(ev)
	return nil
}

func (s *rcMockSessionStore) ApplyDelta(id string, delta map[string]any) error {
	sess, _ := s.Get(id)
	sess.ApplyStateDelta(delta)
	return nil
}

// sliceStore is a minimal single-goroutine ProverbStore used by context tests.
type sliceStore struct{ items []string }

func (s *sliceStore) GetAll() []string { return append([]string{}, s.items...) }

func (s *sliceStore) Append(items []string) StateSnapshot {
	s.items = append(s.items, items...)
	return StateSnapshot{Proverbs: s.GetAll()}
}

func (s *sliceStore) Replace(items []string) StateSnapshot {
	s.items = append([]string{}, items...)
	return StateSnapshot{Proverbs: s.GetAll()}
}

func newRunContextForTest() (*RunContext, chan Event) {
	emit := make(chan Event, 5)
	resume := make(chan struct{}, 5)
	store := newRCMockSessionStore()
	sess, _ := store.Create("sess-x")
	return NewRunContext(
		context.Background(), "sess-x", "run-x", AgentInfo{Name: "Agent1", Type: "test"},
		NewTextContent("user", "hi"), 0, emit, resume, sess, store, &sliceStore{}, nil,
	), emit
}
