/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package principal

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Store when there is no local user with the given subject.
var ErrNotFound = errors.New("user not found")

// User is a local user the token subject is resolved to.
type User struct {
	ID       string `json:"id"`
	Subject  string `json:"sub"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Store looks up local users by subject.
type Store interface {
	FindBySubject(ctx context.Context, subject string) (*User, error)
}

// StoreFunc is a function that implements Store interface.
type StoreFunc func(ctx context.Context, subject string) (*User, error)

// FindBySubject implements Store interface.
func (f StoreFunc) FindBySubject(ctx context.Context, subject string) (*User, error) {
	return f(ctx, subject)
}

// MemoryStore is an in-memory Store. It's safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryStore creates a new MemoryStore with the given users.
func NewMemoryStore(users ...User) *MemoryStore {
	s := &MemoryStore{users: make(map[string]User, len(users))}
	for _, u := range users {
		s.users[u.Subject] = u
	}
	return s
}

// Add adds or replaces the user.
func (s *MemoryStore) Add(user User) {
	s.mu.Lock()
	s.users[user.Subject] = user
	s.mu.Unlock()
}

// Remove removes the user with the given subject.
func (s *MemoryStore) Remove(subject string) {
	s.mu.Lock()
	delete(s.users, subject)
	s.mu.Unlock()
}

// Len returns the number of users.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// FindBySubject implements Store interface.
func (s *MemoryStore) FindBySubject(_ context.Context, subject string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[subject]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}
