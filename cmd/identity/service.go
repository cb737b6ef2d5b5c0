package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tasktrack/cmd/security/password"
)

// RegisterInput is a registration request after boundary decoding.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// Service implements registration and credential verification over a Store.
type Service struct {
	store  Store
	hasher password.Config
	now    func() time.Time
	log    *slog.Logger

	// dummyHash is verified when the email is unknown so both failure paths cost one KDF run.
	dummyHash string
}

// Option configures Service.
type Option func(*Service) error

// WithHasher sets the password hasher/policy (default password.DefaultConfig()).
func WithHasher(cfg password.Config) Option {
	return func(s *Service) error {
		s.hasher = cfg
		return nil
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return errors.New("identity: nil clock")
		}
		s.now = now
		return nil
	}
}

// WithLogger sets the logger used for non-fatal background failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) error {
		if log != nil {
			s.log = log
		}
		return nil
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("identity: nil store")
	}
	s := &Service{
		store:  store,
		hasher: password.DefaultConfig(),
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	// The dummy digest is produced with current params but outside the user-facing policy.
	dummyCfg := s.hasher
	dummyCfg.Policy = password.Policy{MinLength: 1, MaxLength: 1024}
	h, err := dummyCfg.Hash("timing-equalizer-not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("identity: dummy hash: %w", err)
	}
	s.dummyHash = h

	return s, nil
}

// Register validates input, hashes the password and creates the user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	const op = "identity.Register"

	email := strings.TrimSpace(in.Email)
	name := strings.TrimSpace(in.Name)

	switch {
	case email == "" || name == "" || in.Password == "":
		return User{}, invalid(op, "Please provide name, email and password")
	case !validEmail(email):
		return User{}, invalid(op, "Please provide a valid email")
	case !validName(name):
		return User{}, invalid(op, fmt.Sprintf("Name must be at most %d characters", maxNameRunes))
	}
	if err := s.hasher.Validate(in.Password); err != nil {
		return User{}, invalid(op, s.passwordPolicyMessage(err))
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("%s: hash: %w", op, err)
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	id, err := NewULID(now)
	if err != nil {
		return User{}, fmt.Errorf("%s: id: %w", op, err)
	}

	return s.store.CreateUser(ctx, NewUserRecord{
		ID:           id,
		Email:        email,
		EmailNorm:    NormalizeEmail(email),
		Name:         name,
		PasswordHash: digest,
		CreatedAt:    now,
	})
}

// Verify checks credentials. Unknown email and wrong password both yield ErrInvalidCredentials.
//
// A digest made with legacy or weaker parameters is replaced after a successful check.
func (s *Service) Verify(ctx context.Context, email, plaintext string) (User, error) {
	const op = "identity.Verify"

	norm := NormalizeEmail(email)
	if norm == "" || plaintext == "" {
		return User{}, invalid(op, "Please provide email and password")
	}

	ua, err := s.store.GetUserAuthByEmail(ctx, norm)
	if err != nil {
		if IsNotFound(err) {
			_, _ = s.hasher.Verify(s.dummyHash, plaintext)
			return User{}, invalidCredentials(op)
		}
		return User{}, err
	}

	ok, err := s.hasher.Verify(ua.PasswordHash, plaintext)
	if err != nil {
		return User{}, fmt.Errorf("%s: stored digest for user %s: %w", op, ua.User.ID, err)
	}
	if !ok {
		return User{}, invalidCredentials(op)
	}

	if s.hasher.NeedsRehash(ua.PasswordHash) {
		s.upgradeDigest(ctx, ua.User.ID, plaintext)
	}

	return ua.User, nil
}

// GetUser resolves a user by ID.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUser"
	if strings.TrimSpace(id) == "" {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return s.store.GetUserByID(ctx, id)
}

func (s *Service) upgradeDigest(ctx context.Context, userID, plaintext string) {
	// Legacy passwords may predate the current policy; rehash outside it.
	cfg := s.hasher
	cfg.Policy = password.Policy{MinLength: 1, MaxLength: 1024}

	digest, err := cfg.Hash(plaintext)
	if err == nil {
		err = s.store.UpdatePasswordHash(ctx, userID, digest, s.now().UTC())
	}
	if err != nil {
		s.log.Warn("identity.rehash.fail", "user_id", userID, "err", err)
		return
	}
	s.log.Info("identity.rehash.ok", "user_id", userID)
}

func (s *Service) passwordPolicyMessage(err error) string {
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		return fmt.Sprintf("Password must be at least %d characters", s.hasher.Policy.MinLength)
	case errors.Is(err, password.ErrPasswordTooLong):
		return fmt.Sprintf("Password must be at most %d characters", s.hasher.Policy.MaxLength)
	default:
		return "Password is too weak"
	}
}
