package token

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type identity struct {
	kind Kind
	key  string
}

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	tokens map[identity]Token
	mu     sync.Mutex
}

// NewMemoryStore creates an empty in-memory token store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[identity]Token),
	}
}

func (s *MemoryStore) Replace(ctx context.Context, t Token) (*Token, error) {
	if !t.Kind.Valid() {
		return nil, ErrInvalidKind
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[identity{t.Kind, t.IdentityKey()}] = t
	return &t, nil
}

func (s *MemoryStore) FindByValue(ctx context.Context, kind Kind, value string) (*Token, error) {
	if !kind.UniqueValue() {
		return nil, ErrUnsupportedLookup
	}
	return s.find(kind, func(t Token) bool { return t.Value == value })
}

func (s *MemoryStore) FindByEmail(ctx context.Context, kind Kind, email string) (*Token, error) {
	return s.find(kind, func(t Token) bool { return t.Email == email })
}

func (s *MemoryStore) FindByUserID(ctx context.Context, kind Kind, userID uuid.UUID) (*Token, error) {
	return s.find(kind, func(t Token) bool { return t.UserID == userID })
}

func (s *MemoryStore) Consume(ctx context.Context, t Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identity{t.Kind, t.IdentityKey()}
	stored, ok := s.tokens[key]
	if !ok || stored.ID != t.ID {
		return ErrTokenNotFound
	}
	delete(s.tokens, key)
	return nil
}

// Count returns how many tokens of kind are stored, expired ones included.
func (s *MemoryStore) Count(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.tokens {
		if k.kind == kind {
			n++
		}
	}
	return n
}

// find returns the most recently created match.
func (s *MemoryStore) find(kind Kind, match func(Token) bool) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *Token
	for k, t := range s.tokens {
		if k.kind != kind || !match(t) {
			continue
		}
		if found == nil || t.CreatedAt.After(found.CreatedAt) {
			t := t
			found = &t
		}
	}
	if found == nil {
		return nil, ErrTokenNotFound
	}
	return found, nil
}

// MemoryConfirmationStore implements ConfirmationStore in process memory.
type MemoryConfirmationStore struct {
	confirmations map[uuid.UUID]Confirmation
	mu            sync.Mutex
}

// NewMemoryConfirmationStore creates an empty in-memory confirmation store
func NewMemoryConfirmationStore() *MemoryConfirmationStore {
	return &MemoryConfirmationStore{
		confirmations: make(map[uuid.UUID]Confirmation),
	}
}

func (s *MemoryConfirmationStore) Confirm(ctx context.Context, userID uuid.UUID) (*Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := Confirmation{ID: uuid.New(), UserID: userID, CreatedAt: time.Now().UTC()}
	s.confirmations[userID] = c
	return &c, nil
}

func (s *MemoryConfirmationStore) Consume(ctx context.Context, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.confirmations[userID]; !ok {
		return false, nil
	}
	delete(s.confirmations, userID)
	return true, nil
}

// Has reports whether a confirmation is pending for userID.
func (s *MemoryConfirmationStore) Has(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.confirmations[userID]
	return ok
}
