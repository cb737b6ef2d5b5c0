package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"tasktrack/cmd/identity"
	"tasktrack/cmd/internal/auth/gate"
	"tasktrack/cmd/internal/httpio"
	v1 "tasktrack/shared/contracts/taskfeed/v1"
)

const (
	wsDefaultSendQueueSize = 256
	wsMinSendQueueSize     = 32

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsMaxPingFailures = 3

	msgOriginNotAllowed = "Origin not allowed"
)

// Authenticator resolves a bearer token to a live user. *gate.Gate satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (identity.User, error)
}

// WSGateway is the websocket entrypoint of the task feed.
//
// It enforces origin policy, subprotocol selection, authentication, rate limits
// and heartbeats. Authenticated sessions join the owner's feed on the Hub.
type WSGateway struct {
	log  *slog.Logger
	hub  *Hub
	auth Authenticator
	cfg  GatewayConfig
	now  func() time.Time

	// Derived for websocket.Accept, which needs host patterns for cross-origin requests.
	originPatterns []string
}

// GatewayOption configures optional gateway dependencies.
type GatewayOption func(*WSGateway)

// WithGatewayClock overrides the time source.
func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(g *WSGateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewWSGateway constructs a gateway.
func NewWSGateway(log *slog.Logger, hub *Hub, auth Authenticator, cfg GatewayConfig, opts ...GatewayOption) (*WSGateway, error) {
	if hub == nil {
		return nil, errors.New("realtime: nil hub")
	}
	if auth == nil {
		return nil, errors.New("realtime: nil authenticator")
	}
	if log == nil {
		log = slog.Default()
	}
	cfg.normalize()

	g := &WSGateway{
		log:            log,
		hub:            hub,
		auth:           auth,
		cfg:            cfg,
		now:            time.Now,
		originPatterns: deriveOriginPatternsFromAllowedOrigins(cfg.AllowedOrigins),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS authenticates, upgrades and runs the session until either side closes.
//
// A bearer Authorization header is checked before the upgrade. Without one the
// first frame must be a hello carrying the token.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		httpio.WriteMessage(w, http.StatusForbidden, msgOriginNotAllowed)
		return
	}

	var (
		user   identity.User
		authed bool
	)
	if r.Header.Get("Authorization") != "" {
		raw, ok := httpio.BearerToken(r)
		if !ok {
			httpio.WriteMessage(w, http.StatusUnauthorized, gate.MsgNoToken)
			return
		}
		u, err := g.auth.Authenticate(r.Context(), raw)
		if err != nil {
			status, msg := authFailure(err)
			if status == http.StatusInternalServerError {
				g.log.Error("ws.auth.fail", "err", err)
			}
			httpio.WriteMessage(w, status, msg)
			return
		}
		user, authed = u, true
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{v1.Subprotocol},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.cfg.DevInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != v1.Subprotocol {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", v1.Subprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if !authed {
		u, code, msg := g.handshake(ctx, conn)
		if code != "" {
			g.writeDirect(ctx, conn, code, msg)
			_ = conn.Close(websocket.StatusPolicyViolation, "unauthorized")
			return
		}
		user = u
	}

	sessionID := NewSessionID(g.now().UTC())
	client := NewClient(user.ID, sessionID, g.cfg.SendQueue)
	g.hub.Join(client)

	var closeOnce sync.Once

	// shutdown leaves the hub before closing the client so publishers never see a half-closed session.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			g.hub.Leave(client)
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	// lastSeen is refreshed by inbound frames and answered pings. Clients are
	// read-only listeners, so a healthy heartbeat alone keeps them alive.
	var lastSeen atomic.Int64
	touch := func() { lastSeen.Store(g.now().UnixNano()) }
	touch()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.cfg.WriteTimeout); err != nil {
					g.log.Info("ws.write.fail", "session_id", sessionID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.cfg.HeartbeatInterval)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err == nil {
					failures = 0
					touch()
					continue
				}

				failures++
				g.log.Info("ws.ping.fail", "session_id", sessionID, "failures", failures, "err", err)
				if failures >= wsMaxPingFailures {
					shutdown(websocket.StatusGoingAway, "heartbeat failed")
					return
				}
				if idle := g.now().Sub(time.Unix(0, lastSeen.Load())); idle > g.cfg.ReadIdleTimeout {
					g.log.Info("ws.session.idle", "session_id", sessionID, "idle", idle)
					shutdown(websocket.StatusGoingAway, "idle")
					return
				}
			}
		}
	}()

	g.sendHelloAck(client)
	g.log.Info("ws.session.open", "session_id", sessionID, "user_id", user.ID)

	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)

readLoop:
	for {
		env, err := readEnvelope(ctx, conn)

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				g.trySendError(client, "bad_json", "invalid JSON")
				continue readLoop
			default:
				g.log.Info("ws.read.fail", "session_id", sessionID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		touch()

		if !rl.Allow(g.now().UTC()) {
			g.trySendError(client, "rate_limited", "too many events")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if err := env.Validate(); err != nil {
			g.trySendError(client, "bad_envelope", err.Error())
			continue readLoop
		}
		if !v1.ClientInbound(env.Type) {
			g.trySendError(client, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
			continue readLoop
		}

		switch env.Type {
		case v1.TypeHello:
			// Already authenticated; repeat the ack so clients can resync.
			g.sendHelloAck(client)
		case v1.TypePing:
			client.offer(newEnvelope(v1.TypePong, nil, g.now().UTC()))
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
	g.log.Info("ws.session.close", "session_id", sessionID, "user_id", user.ID)
}

// handshake waits for a hello carrying a token. A non-empty code means rejection.
func (g *WSGateway) handshake(ctx context.Context, conn *websocket.Conn) (identity.User, string, string) {
	hsCtx, hsCancel := context.WithTimeout(ctx, g.cfg.HandshakeTimeout)
	env, err := readEnvelope(hsCtx, conn)
	hsCancel()
	if err != nil {
		g.log.Info("ws.handshake.read.fail", "err", err)
		return identity.User{}, "unauthorized", gate.MsgNoToken
	}
	if env.Validate() != nil || env.Type != v1.TypeHello {
		return identity.User{}, "unauthorized", gate.MsgNoToken
	}

	var p v1.HelloPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return identity.User{}, "unauthorized", gate.MsgNoToken
		}
	}
	token := strings.TrimSpace(p.Token)
	if token == "" {
		return identity.User{}, "unauthorized", gate.MsgNoToken
	}
	if len(token) > maxHelloTokenBytes {
		return identity.User{}, "unauthorized", gate.MsgTokenFailed
	}

	u, err := g.auth.Authenticate(ctx, token)
	if err != nil {
		status, msg := authFailure(err)
		if status == http.StatusInternalServerError {
			g.log.Error("ws.auth.fail", "err", err)
			return identity.User{}, "internal", msg
		}
		return identity.User{}, "unauthorized", msg
	}
	return u, "", ""
}

func authFailure(err error) (int, string) {
	switch {
	case errors.Is(err, gate.ErrNoToken):
		return http.StatusUnauthorized, gate.MsgNoToken
	case errors.Is(err, gate.ErrTokenFailed):
		return http.StatusUnauthorized, gate.MsgTokenFailed
	default:
		return http.StatusInternalServerError, httpio.MsgInternal
	}
}

// ---- send helpers ----

func (g *WSGateway) sendHelloAck(client *Client) {
	p, _ := json.Marshal(v1.HelloAckPayload{SessionID: client.SessionID, UserID: client.UserID})
	client.offer(newEnvelope(v1.TypeHelloAck, p, g.now().UTC()))
}

func (g *WSGateway) trySendError(client *Client, code, msg string) {
	p, _ := json.Marshal(v1.ErrorPayload{Code: code, Message: msg})
	client.offer(newEnvelope(v1.TypeError, p, g.now().UTC()))
}

// writeDirect is used before the writer goroutine exists.
func (g *WSGateway) writeDirect(ctx context.Context, conn *websocket.Conn, code, msg string) {
	p, _ := json.Marshal(v1.ErrorPayload{Code: code, Message: msg})
	if err := writeEnvelope(ctx, conn, newEnvelope(v1.TypeError, p, g.now().UTC()), g.cfg.WriteTimeout); err != nil {
		g.log.Debug("ws.write.fail", "err", err)
	}
}

// ---- envelope IO ----

func newEnvelope(typ string, payload json.RawMessage, ts time.Time) v1.Envelope {
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      NewEnvelopeID(ts),
		TS:      ts,
		Payload: payload,
	}
}

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return readErrBadJSON
	}
	if strings.Contains(err.Error(), "unexpected end of JSON input") {
		return readErrBadJSON
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.cfg.OriginRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.cfg.AllowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.cfg.AllowedOrigins {
		a = strings.TrimSpace(a)
		switch {
		case a == "":
			continue
		case a == "*":
			return nil
		case origin == a:
			return nil
		case originHost != "" && originHost == originHostOnly(a):
			// Host match ignores scheme and port.
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = strings.TrimSpace(u.Host)
		if s == "" {
			return ""
		}
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// deriveOriginPatternsFromAllowedOrigins keeps websocket.Accept's own origin check in agreement with enforceOrigin.
func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	out := make([]string, 0, len(allowed))
	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" {
			continue
		}
		out = append(out, h)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
