package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when no database is configured, and by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*memUser
	byEmail map[string]string // email_norm -> id
}

type memUser struct {
	user UserAuth
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*memUser),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, rec NewUserRecord) (User, error) {
	const op = "identity.CreateUser"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if rec.ID == "" || rec.EmailNorm == "" || rec.PasswordHash == "" {
		return User{}, invalid(op, "incomplete user record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[rec.EmailNorm]; ok {
		return User{}, ConflictError{Op: op, Field: "email"}
	}
	if _, ok := s.byID[rec.ID]; ok {
		return User{}, ConflictError{Op: op, Field: "id"}
	}

	u := User{
		ID:        rec.ID,
		Email:     rec.Email,
		EmailNorm: rec.EmailNorm,
		Name:      rec.Name,
		CreatedAt: rec.CreatedAt,
	}
	s.byID[rec.ID] = &memUser{user: UserAuth{User: u, PasswordHash: rec.PasswordHash}}
	s.byEmail[rec.EmailNorm] = rec.ID
	return u, nil
}

func (s *MemoryStore) GetUserAuthByEmail(ctx context.Context, emailNorm string) (UserAuth, error) {
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailNorm]
	if !ok {
		return UserAuth{}, NotFoundError{Op: "identity.GetUserAuthByEmail", Resource: "user"}
	}
	return s.byID[id].user, nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return User{}, NotFoundError{Op: "identity.GetUserByID", Resource: "user"}
	}
	return m.user.User, nil
}

func (s *MemoryStore) UpdatePasswordHash(ctx context.Context, userID, passwordHash string, _ time.Time) error {
	const op = "identity.UpdatePasswordHash"
	if err := ctx.Err(); err != nil {
		return err
	}
	if passwordHash == "" {
		return invalid(op, "empty password hash")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[userID]
	if !ok {
		return NotFoundError{Op: op, Resource: "user"}
	}
	m.user.PasswordHash = passwordHash
	return nil
}
