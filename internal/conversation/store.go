// Package conversation keeps per-conversation question/query history in
// memory so follow-up questions can refer to earlier turns.
package conversation

import (
	"context"
	"errors"
	"sync"

	"github.com/askdb/askdb/internal/prompt"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("conversation not found")

// Store is safe for concurrent use. Histories handed out are copies.
// Single calls are atomic; callers that read a history and append to it
// later hold Lock for the conversation in between.
type Store struct {
	mu    sync.Mutex
	turns map[string][]prompt.Turn
	locks map[string]*conversationLock
	newID func() string
}

type conversationLock struct {
	held chan struct{}
	refs int
}

func NewStore() *Store {
	return &Store{
		turns: map[string][]prompt.Turn{},
		locks: map[string]*conversationLock{},
		newID: uuid.NewString,
	}
}

// Lock blocks until the caller holds conversation id exclusively and returns
// the function that releases it. Waiters acquire it in no particular order.
// A cancelled ctx abandons the wait with ctx.Err().
func (s *Store) Lock(ctx context.Context, id string) (unlock func(), err error) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &conversationLock{held: make(chan struct{}, 1)}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.held <- struct{}{}:
	case <-ctx.Done():
		s.release(id, l)
		return nil, ctx.Err()
	}
	return func() {
		<-l.held
		s.release(id, l)
	}, nil
}

func (s *Store) release(id string, l *conversationLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
}

// StartOrContinue returns the id to use and the history recorded so far.
// An empty id starts a new conversation. An id the store has never seen is
// registered as a new, empty conversation under that id.
func (s *Store) StartOrContinue(id string) (string, []prompt.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = s.newID()
	}
	history, ok := s.turns[id]
	if !ok {
		s.turns[id] = nil
		setActive(len(s.turns))
		return id, nil
	}
	out := make([]prompt.Turn, len(history))
	copy(out, history)
	return id, out
}

func (s *Store) Append(id, question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns[id] = append(s.turns[id], prompt.Turn{Question: question, Answer: answer})
	setActive(len(s.turns))
}

func (s *Store) End(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.turns[id]; !ok {
		return ErrNotFound
	}
	delete(s.turns, id)
	setActive(len(s.turns))
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}
