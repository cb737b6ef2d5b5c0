// Package main is a CI-friendly end-to-end smoke test for the tasktrack API and task feed.
//
// It validates:
//   - register over REST and bearer token issuance
//   - feed handshake via Authorization header and via hello
//   - task_created / task_updated / task_deleted fanout to every session of the owner
//   - no delivery to another user's session
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"

	v1 "tasktrack/shared/contracts/taskfeed/v1"
)

const maxReadBytes = 1 << 20

type smokeClient struct {
	name      string
	conn      *websocket.Conn
	sessionID string

	inbox chan v1.Envelope
	errCh chan error
}

type account struct {
	token string
	id    string
}

func main() {
	var (
		baseURL = flag.String("base", "http://127.0.0.1:8080", "HTTP base URL of the server")
		prefix  = flag.String("api-prefix", "", "API prefix (TASKTRACK_API_PREFIX)")
		origin  = flag.String("origin", "http://localhost", "Origin header for the websocket handshake")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	api, err := apiURL(*baseURL, *prefix)
	if err != nil {
		fatalf("invalid -base: %v", err)
	}
	wsURL := feedURL(*baseURL)
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	root := context.Background()
	hc := &http.Client{Timeout: *timeout}

	alice := mustRegister(root, hc, api, "alice")
	bob := mustRegister(root, hc, api, "bob")

	a := mustConnect(root, "A", wsURL, *origin, alice.token, true, *timeout)
	defer closeWS(a.conn)
	b := mustConnect(root, "B", wsURL, *origin, alice.token, false, *timeout)
	defer closeWS(b.conn)
	c := mustConnect(root, "C", wsURL, *origin, bob.token, true, *timeout)
	defer closeWS(c.conn)

	if *verbose {
		fmt.Printf("connected: A=%s B=%s (alice=%s) C=%s (bob=%s)\n", a.sessionID, b.sessionID, alice.id, c.sessionID, bob.id)
	}

	var created v1.TaskPayload
	mustCall(root, hc, http.MethodPost, api+"/tasks", alice.token, map[string]string{"title": "smoke task"}, http.StatusCreated, &created)

	for _, cl := range []*smokeClient{a, b} {
		var p v1.TaskPayload
		cl.mustReadPayload(root, v1.TypeTaskCreated, *timeout, &p)
		if p.ID != created.ID || p.User != alice.id {
			fatalf("task_created mismatch (%s): got=%+v want id=%s", cl.name, p, created.ID)
		}
	}

	mustCall(root, hc, http.MethodPut, api+"/tasks/"+created.ID, alice.token, map[string]string{"status": "completed"}, http.StatusOK, nil)
	for _, cl := range []*smokeClient{a, b} {
		var p v1.TaskPayload
		cl.mustReadPayload(root, v1.TypeTaskUpdated, *timeout, &p)
		if p.ID != created.ID || p.Status != "completed" {
			fatalf("task_updated mismatch (%s): %+v", cl.name, p)
		}
	}

	mustCall(root, hc, http.MethodDelete, api+"/tasks/"+created.ID, alice.token, nil, http.StatusOK, nil)
	for _, cl := range []*smokeClient{a, b} {
		var p v1.TaskDeletedPayload
		cl.mustReadPayload(root, v1.TypeTaskDeleted, *timeout, &p)
		if p.ID != created.ID {
			fatalf("task_deleted mismatch (%s): got=%q want=%q", cl.name, p.ID, created.ID)
		}
	}

	// Bob's session must not have seen any of alice's events; a ping round-trip
	// proves the queue is drained up to now.
	mustWriteWithTimeout(root, c.conn, v1.Envelope{V: v1.Version, Type: v1.TypePing, TS: time.Now().UTC()}, *timeout)
	env := c.mustRead(root, *timeout)
	if env.Type != v1.TypePong {
		fatalf("isolation: bob received %q before pong", env.Type)
	}

	fmt.Println("OK: feed smoke passed")
}

// ---- REST ----

func apiURL(base, prefix string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", errors.New("missing host")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return u.String() + prefix, nil
}

func feedURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws"
	default:
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws"
	}
}

func mustRegister(ctx context.Context, hc *http.Client, api, name string) account {
	email := fmt.Sprintf("%s-%d@smoke.example.com", name, time.Now().UnixNano())

	var out struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	mustCall(ctx, hc, http.MethodPost, api+"/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "smoke-password-1",
	}, http.StatusCreated, &out)

	if out.Token == "" || out.User.ID == "" {
		fatalf("register %s: missing token or user id", name)
	}
	return account{token: out.Token, id: out.User.ID}
}

func mustCall(ctx context.Context, hc *http.Client, method, target, token string, body any, want int, out any) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(mustJSON(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		fatalf("%s %s: %v", method, target, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := hc.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if resp.StatusCode != want {
		fatalf("%s %s: status=%d want=%d body=%s", method, target, resp.StatusCode, want, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			fatalf("%s %s: decode: %v", method, target, err)
		}
	}
}

// ---- websocket ----

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

// mustConnect authenticates either with an Authorization header or with a hello frame.
func mustConnect(parent context.Context, name, wsURL, origin, token string, viaHeader bool, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}
	if viaHeader {
		h.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}
	if got := conn.Subprotocol(); got != v1.Subprotocol {
		fatalf("subprotocol mismatch (%s): got=%q want=%q", name, got, v1.Subprotocol)
	}

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan v1.Envelope, 512),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()

	if !viaHeader {
		mustWriteWithTimeout(parent, conn, v1.Envelope{
			V:       v1.Version,
			Type:    v1.TypeHello,
			ID:      name + "-hello",
			TS:      time.Now().UTC(),
			Payload: mustJSON(v1.HelloPayload{Token: token}),
		}, stepTimeout)
	}

	var p v1.HelloAckPayload
	c.mustReadPayload(parent, v1.TypeHelloAck, stepTimeout, &p)
	if strings.TrimSpace(p.SessionID) == "" || strings.TrimSpace(p.UserID) == "" {
		fatalf("hello_ack incomplete (%s): %+v", name, p)
	}
	c.sessionID = p.SessionID
	return c
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				c.fail(err)
				return
			}
			if mt != websocket.MessageText && mt != websocket.MessageBinary {
				c.fail(fmt.Errorf("unsupported message type: %v", mt))
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				c.fail(fmt.Errorf("bad envelope json: %w", err))
				return
			}
			c.inbox <- env
		}
	}()
}

func (c *smokeClient) fail(err error) {
	select {
	case c.errCh <- err:
	default:
	}
}

func (c *smokeClient) mustRead(parent context.Context, stepTimeout time.Duration) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		fatalf("timeout waiting for envelope (%s)", c.name)
	case err := <-c.errCh:
		fatalf("read failed (%s): %v", c.name, err)
	case env, ok := <-c.inbox:
		if !ok {
			fatalf("connection closed (%s)", c.name)
		}
		if env.Type == v1.TypeError {
			var p v1.ErrorPayload
			_ = json.Unmarshal(env.Payload, &p)
			fatalf("server error (%s): code=%s msg=%s", c.name, p.Code, p.Message)
		}
		return env
	}
	return v1.Envelope{}
}

func (c *smokeClient) mustReadPayload(parent context.Context, typ string, stepTimeout time.Duration, out any) {
	env := c.mustRead(parent, stepTimeout)
	if env.Type != typ {
		fatalf("unexpected envelope (%s): got=%q want=%q", c.name, env.Type, typ)
	}
	if err := env.Validate(); err != nil {
		fatalf("invalid envelope (%s): %v", c.name, err)
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		fatalf("unmarshal %s payload (%s): %v", typ, c.name, err)
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, env v1.Envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, mustJSON(env)); err != nil {
		fatalf("write %s: %v", env.Type, err)
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		fatalf("marshal: %v", err)
	}
	return b
}

func closeWS(c *websocket.Conn) {
	if c == nil {
		return
	}
	_ = c.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
