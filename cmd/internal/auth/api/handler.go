package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tasktrack/cmd/identity"
	"tasktrack/cmd/internal/auth/gate"
	"tasktrack/cmd/internal/auth/session"
	"tasktrack/cmd/internal/httpio"
)

// Client-facing messages.
const (
	msgRegistered         = "User registered successfully"
	msgLoggedIn           = "Login successful"
	msgProfile            = "Protected profile route accessed"
	msgUserExists         = "User already exists"
	msgInvalidCredentials = "Invalid email or password"
)

// Accounts is the credential store used by the handlers.
type Accounts interface {
	Register(ctx context.Context, in identity.RegisterInput) (identity.User, error)
	Verify(ctx context.Context, email, password string) (identity.User, error)
}

// Handler wires HTTP auth endpoints to the identity and token services.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	accounts Accounts
	tokens   session.TokenManager
	throttle *loginThrottle
	metrics  *Metrics
	now      func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithMetrics enables auth counters.
func WithMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithClock overrides the time source used for tokens and throttling.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, accounts Accounts, tokens session.TokenManager, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if accounts == nil {
		return nil, errors.New("authapi: nil accounts")
	}
	if tokens == nil {
		return nil, errors.New("authapi: nil token manager")
	}
	if log == nil {
		log = slog.Default()
	}
	cfg.clamp()

	h := &Handler{
		log:      log,
		cfg:      cfg,
		accounts: accounts,
		tokens:   tokens,
		throttle: newLoginThrottle(cfg),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Routes mounts /auth/* on r. requireAuth guards the profile route.
func (h *Handler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.With(requireAuth).Get("/profile", h.handleProfile)
	})
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpio.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		h.metrics.observe("register", outcomeInvalid)
		httpio.WriteMessage(w, http.StatusBadRequest, httpio.DecodeMessage(err))
		return
	}

	ip := ipString(httpio.ClientIP(r, h.cfg.TrustProxy))

	u, err := h.accounts.Register(r.Context(), identity.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case identity.IsInvalidInput(err):
			h.metrics.observe("register", outcomeInvalid)
			httpio.WriteMessage(w, http.StatusBadRequest, identity.PublicMessage(err))
		case identity.IsConflict(err):
			h.metrics.observe("register", outcomeConflict)
			httpio.WriteMessage(w, http.StatusConflict, msgUserExists)
		default:
			h.logFailure("register", "auth.register.fail", err, "ip", ip)
			httpio.WriteInternal(w)
		}
		return
	}

	tok, _, err := h.tokens.Issue(session.Subject{UserID: u.ID, Email: u.Email}, h.now().UTC())
	if err != nil {
		h.logFailure("register", "auth.token.issue.fail", err, "user_id", u.ID)
		httpio.WriteInternal(w)
		return
	}

	h.auditRegister(u.ID, ip)
	httpio.WriteJSON(w, http.StatusCreated, authResponse{
		Message: msgRegistered,
		Token:   tok,
		User:    toUserResponse(u),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpio.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		h.metrics.observe("login", outcomeInvalid)
		httpio.WriteMessage(w, http.StatusBadRequest, httpio.DecodeMessage(err))
		return
	}

	now := h.now().UTC()
	ip := ipString(httpio.ClientIP(r, h.cfg.TrustProxy))
	identifier := identity.NormalizeEmail(req.Email)

	// Throttle before touching the store or running the KDF.
	if blocked, retryAfter := h.throttle.check(ip, identifier, now); blocked {
		h.auditLoginRateLimited(identifier, ip, retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}

	u, err := h.accounts.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case identity.IsInvalidInput(err):
			h.metrics.observe("login", outcomeInvalid)
			httpio.WriteMessage(w, http.StatusBadRequest, identity.PublicMessage(err))
		case identity.IsInvalidCredentials(err):
			h.throttle.recordFailure(ip, identifier, now)
			h.auditLoginFailed(identifier, ip, "invalid_credentials")
			httpio.WriteMessage(w, http.StatusUnauthorized, msgInvalidCredentials)
		default:
			h.logFailure("login", "auth.login.verify.fail", err, "ip", ip)
			httpio.WriteInternal(w)
		}
		return
	}

	tok, _, err := h.tokens.Issue(session.Subject{UserID: u.ID, Email: u.Email}, now)
	if err != nil {
		h.logFailure("login", "auth.token.issue.fail", err, "user_id", u.ID)
		httpio.WriteInternal(w)
		return
	}

	h.throttle.reset(identifier)
	h.auditLoginSuccess(u.ID, ip)
	httpio.WriteJSON(w, http.StatusOK, authResponse{
		Message: msgLoggedIn,
		Token:   tok,
		User:    toUserResponse(u),
	})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := gate.UserFromContext(r.Context())
	if !ok {
		httpio.WriteMessage(w, http.StatusUnauthorized, gate.MsgNoToken)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, profileResponse{
		Message: msgProfile,
		User:    toUserResponse(u),
	})
}
