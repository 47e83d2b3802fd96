package user

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemRepository implements Repository with maps guarded by one mutex.
type InMemRepository struct {
	users    map[uuid.UUID]User
	byEmail  map[string]uuid.UUID
	accounts map[uuid.UUID][]Account
	mu       sync.RWMutex
}

// NewInMemRepository creates an empty in-memory user repository
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		users:    make(map[uuid.UUID]User),
		byEmail:  make(map[string]uuid.UUID),
		accounts: make(map[uuid.UUID][]Account),
	}
}

func (r *InMemRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return r.get(id), nil
}

func (r *InMemRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.users[id]; !ok {
		return nil, ErrUserNotFound
	}
	return r.get(id), nil
}

func (r *InMemRepository) Create(ctx context.Context, u User) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return nil, ErrEmailInUse
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.HasLinkedAccount = false

	r.users[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return r.get(u.ID), nil
}

func (r *InMemRepository) Update(ctx context.Context, u User) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[u.ID]
	if !ok {
		return nil, ErrUserNotFound
	}
	if u.Email != existing.Email {
		if owner, taken := r.byEmail[u.Email]; taken && owner != u.ID {
			return nil, ErrEmailInUse
		}
		delete(r.byEmail, existing.Email)
		r.byEmail[u.Email] = u.ID
	}
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	r.users[u.ID] = u
	return r.get(u.ID), nil
}

func (r *InMemRepository) LinkAccount(ctx context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[account.UserID]; !ok {
		return ErrUserNotFound
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.CreatedAt = time.Now().UTC()
	r.accounts[account.UserID] = append(r.accounts[account.UserID], account)
	return nil
}

// get returns a copy so callers never alias stored state. Caller holds mu.
func (r *InMemRepository) get(id uuid.UUID) *User {
	u := r.users[id]
	if u.EmailVerifiedAt != nil {
		t := *u.EmailVerifiedAt
		u.EmailVerifiedAt = &t
	}
	u.HasLinkedAccount = len(r.accounts[id]) > 0
	return &u
}
