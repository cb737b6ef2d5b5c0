// Package gate authenticates bearer tokens on protected routes and attaches
// the resolved user to the request context.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tasktrack/cmd/identity"
	"tasktrack/cmd/internal/auth/session"
	"tasktrack/cmd/internal/httpio"
)

// Client-facing messages. Every token failure maps to the same text.
const (
	MsgNoToken     = "Not authorized, no token"
	MsgTokenFailed = "Not authorized, token failed"
)

var (
	// ErrNoToken is returned when the request carries no usable bearer token.
	ErrNoToken = errors.New("gate: no token")
	// ErrTokenFailed covers every verification failure and a subject that no longer exists.
	ErrTokenFailed = errors.New("gate: token failed")
)

// UserResolver re-checks that a token subject still exists.
type UserResolver interface {
	GetUser(ctx context.Context, id string) (identity.User, error)
}

// Gate verifies tokens and resolves users.
type Gate struct {
	tokens session.TokenManager
	users  UserResolver
	now    func() time.Time
	log    *slog.Logger
}

// Option configures Gate.
type Option func(*Gate)

// WithClock overrides the verification clock.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gate) {
		if log != nil {
			g.log = log
		}
	}
}

// New constructs a Gate.
func New(tokens session.TokenManager, users UserResolver, opts ...Option) (*Gate, error) {
	if tokens == nil {
		return nil, errors.New("gate: nil token manager")
	}
	if users == nil {
		return nil, errors.New("gate: nil user resolver")
	}
	g := &Gate{
		tokens: tokens,
		users:  users,
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Authenticate verifies raw and loads its subject.
//
// Token problems and a missing subject yield ErrTokenFailed; other errors come from the store.
func (g *Gate) Authenticate(ctx context.Context, raw string) (identity.User, error) {
	if raw == "" {
		return identity.User{}, ErrNoToken
	}

	claims, err := g.tokens.Verify(raw, g.now().UTC())
	if err != nil {
		g.log.Debug("auth.gate.verify.fail", "reason", verifyReason(err))
		return identity.User{}, fmt.Errorf("%w: %w", ErrTokenFailed, err)
	}

	u, err := g.users.GetUser(ctx, claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			g.log.Debug("auth.gate.subject.missing", "user_id", claims.UserID)
			return identity.User{}, fmt.Errorf("%w: %w", ErrTokenFailed, err)
		}
		return identity.User{}, err
	}
	return u, nil
}

// Require rejects unauthenticated requests and passes the user to next via the context.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := httpio.BearerToken(r)
		if !ok {
			httpio.WriteMessage(w, http.StatusUnauthorized, MsgNoToken)
			return
		}

		u, err := g.Authenticate(r.Context(), raw)
		switch {
		case err == nil:
		case errors.Is(err, ErrTokenFailed):
			httpio.WriteMessage(w, http.StatusUnauthorized, MsgTokenFailed)
			return
		default:
			g.log.Error("auth.gate.resolve.fail", "err", err)
			httpio.WriteInternal(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

func verifyReason(err error) string {
	switch {
	case errors.Is(err, session.ErrTokenExpired):
		return "expired"
	case errors.Is(err, session.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, session.ErrTokenMalformed):
		return "malformed"
	default:
		return "other"
	}
}
