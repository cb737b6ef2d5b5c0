package taskapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"tasktrack/cmd/identity"
	authapi "tasktrack/cmd/internal/auth/api"
	"tasktrack/cmd/internal/auth/gate"
	"tasktrack/cmd/internal/auth/session"
	"tasktrack/cmd/internal/tasks"
	"tasktrack/cmd/security/password"
)

type testServer struct {
	ts *httptest.Server
}

func newTestServer(t *testing.T) testServer {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	hasher := password.DefaultConfig()
	hasher.Params.MemoryKiB = 8 * 1024
	hasher.Params.Iterations = 1
	hasher.Params.Parallelism = 1

	accounts, err := identity.NewService(identity.NewMemoryStore(), identity.WithHasher(hasher))
	if err != nil {
		t.Fatalf("identity.NewService: %v", err)
	}

	sessCfg := session.DefaultConfig()
	sessCfg.SigningKey = strings.Repeat("s", 32)
	tokens, err := session.NewTokenManager(sessCfg)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	g, err := gate.New(tokens, accounts, gate.WithLogger(log))
	if err != nil {
		t.Fatalf("gate.New: %v", err)
	}

	svc, err := tasks.NewService(tasks.NewMemoryRepository(), tasks.WithLogger(log))
	if err != nil {
		t.Fatalf("tasks.NewService: %v", err)
	}

	authH, err := authapi.NewHandler(log, accounts, tokens, authapi.DefaultConfig())
	if err != nil {
		t.Fatalf("authapi.NewHandler: %v", err)
	}
	taskH, err := NewHandler(log, svc, 0)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	r := chi.NewRouter()
	authH.Routes(r, g.Require)
	taskH.Routes(r, g.Require)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return testServer{ts: ts}
}

func (s testServer) do(t *testing.T, method, path string, body any, token string) (int, []byte) {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.ts.URL+path, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := s.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer res.Body.Close()

	out, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return res.StatusCode, out
}

// signup registers through the HTTP API and returns the issued token.
func (s testServer) signup(t *testing.T, name, email string) string {
	t.Helper()

	status, body := s.do(t, http.MethodPost, "/auth/register", map[string]string{
		"name": name, "email": email, "password": "pw123456",
	}, "")
	if status != http.StatusCreated {
		t.Fatalf("register %s: status=%d body=%s", email, status, body)
	}
	var res struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &res); err != nil || res.Token == "" {
		t.Fatalf("register %s: bad body %s (%v)", email, body, err)
	}
	return res.Token
}

func decodeTask(t *testing.T, body []byte) tasks.Task {
	t.Helper()
	var task tasks.Task
	if err := json.Unmarshal(body, &task); err != nil {
		t.Fatalf("decode task %q: %v", body, err)
	}
	return task
}

func decodeTasks(t *testing.T, body []byte) []tasks.Task {
	t.Helper()
	var out []tasks.Task
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode tasks %q: %v", body, err)
	}
	return out
}

func messageOf(t *testing.T, body []byte) string {
	t.Helper()
	var m struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("decode message %q: %v", body, err)
	}
	return m.Message
}

func TestAliceScenario(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.signup(t, "alice", "a@x.com")

	status, body := s.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "a@x.com", "password": "pw123456",
	}, "")
	if status != http.StatusOK {
		t.Fatalf("login status=%d body=%s", status, body)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &login); err != nil || login.Token == "" {
		t.Fatalf("login body %s (%v)", body, err)
	}
	tok := login.Token

	status, body = s.do(t, http.MethodPost, "/tasks", map[string]string{"title": "Buy milk"}, tok)
	if status != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", status, body)
	}
	created := decodeTask(t, body)
	if created.Status != tasks.StatusPending || created.Title != "Buy milk" || created.ID == "" {
		t.Fatalf("unexpected created task: %+v", created)
	}

	status, body = s.do(t, http.MethodPut, "/tasks/"+created.ID, map[string]string{"status": "completed"}, tok)
	if status != http.StatusOK {
		t.Fatalf("update status=%d body=%s", status, body)
	}
	if got := decodeTask(t, body); got.Status != tasks.StatusCompleted || got.Title != "Buy milk" {
		t.Fatalf("unexpected updated task: %+v", got)
	}

	status, body = s.do(t, http.MethodDelete, "/tasks/"+created.ID, nil, tok)
	if status != http.StatusOK || messageOf(t, body) != msgTaskDeleted {
		t.Fatalf("delete status=%d body=%s", status, body)
	}

	status, body = s.do(t, http.MethodGet, "/tasks", nil, tok)
	if status != http.StatusOK {
		t.Fatalf("list status=%d body=%s", status, body)
	}
	if strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("expected empty JSON array, got %s", body)
	}
}

func TestTaskJSONShape(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	tok := s.signup(t, "alice", "a@x.com")

	status, body := s.do(t, http.MethodPost, "/tasks", map[string]string{"title": "Shape", "description": "d"}, tok)
	if status != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", status, body)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, k := range []string{"_id", "title", "description", "status", "user", "createdAt", "updatedAt"} {
		if _, ok := raw[k]; !ok {
			t.Fatalf("missing %q in %s", k, body)
		}
	}
	if len(raw) != 7 {
		t.Fatalf("unexpected extra fields in %s", body)
	}
}

func TestCrossUserIsolation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	alice := s.signup(t, "alice", "a@x.com")
	bob := s.signup(t, "bob", "b@x.com")

	status, body := s.do(t, http.MethodPost, "/tasks", map[string]string{"title": "alice only"}, alice)
	if status != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", status, body)
	}
	task := decodeTask(t, body)

	checks := []struct {
		method string
		body   any
	}{
		{http.MethodGet, nil},
		{http.MethodPut, map[string]string{"title": "pwned"}},
		{http.MethodDelete, nil},
	}
	for _, c := range checks {
		status, body := s.do(t, c.method, "/tasks/"+task.ID, c.body, bob)
		if status != http.StatusNotFound || messageOf(t, body) != msgTaskNotFound {
			t.Fatalf("%s as bob: status=%d body=%s", c.method, status, body)
		}
	}

	// Missing tasks look exactly the same.
	status, body = s.do(t, http.MethodGet, "/tasks/01ARZ3NDEKTSV4RRFFQ69G5FAV", nil, bob)
	if status != http.StatusNotFound || messageOf(t, body) != msgTaskNotFound {
		t.Fatalf("missing task: status=%d body=%s", status, body)
	}

	status, body = s.do(t, http.MethodGet, "/tasks", nil, bob)
	if status != http.StatusOK || len(decodeTasks(t, body)) != 0 {
		t.Fatalf("bob list: status=%d body=%s", status, body)
	}

	status, body = s.do(t, http.MethodGet, "/tasks/"+task.ID, nil, alice)
	if status != http.StatusOK || decodeTask(t, body).Title != "alice only" {
		t.Fatalf("alice get after bob's attempts: status=%d body=%s", status, body)
	}
}

func TestListFilters(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	tok := s.signup(t, "alice", "a@x.com")

	for _, in := range []map[string]string{
		{"title": "Buy milk"},
		{"title": "Buy eggs", "status": "completed"},
		{"title": "Call mom", "status": "in-progress"},
	} {
		if status, body := s.do(t, http.MethodPost, "/tasks", in, tok); status != http.StatusCreated {
			t.Fatalf("create %v: status=%d body=%s", in, status, body)
		}
	}

	cases := []struct {
		query string
		want  []string
	}{
		{"", []string{"Call mom", "Buy eggs", "Buy milk"}},
		{"?status=all", []string{"Call mom", "Buy eggs", "Buy milk"}},
		{"?status=completed", []string{"Buy eggs"}},
		{"?q=buy", []string{"Buy eggs", "Buy milk"}},
		{"?search=MILK", []string{"Buy milk"}},
		{"?q=buy&status=pending", []string{"Buy milk"}},
	}
	for _, tc := range cases {
		status, body := s.do(t, http.MethodGet, "/tasks"+tc.query, nil, tok)
		if status != http.StatusOK {
			t.Fatalf("list %q: status=%d body=%s", tc.query, status, body)
		}
		got := decodeTasks(t, body)
		if len(got) != len(tc.want) {
			t.Fatalf("list %q: got %d tasks, want %v", tc.query, len(got), tc.want)
		}
		for i := range got {
			if got[i].Title != tc.want[i] {
				t.Fatalf("list %q: position %d = %q, want %q", tc.query, i, got[i].Title, tc.want[i])
			}
		}
	}

	status, body := s.do(t, http.MethodGet, "/tasks?status=archived", nil, tok)
	if status != http.StatusBadRequest {
		t.Fatalf("bad status filter: status=%d body=%s", status, body)
	}
}

func TestValidationAndAuth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	tok := s.signup(t, "alice", "a@x.com")

	status, body := s.do(t, http.MethodPost, "/tasks", map[string]string{"title": "   "}, tok)
	if status != http.StatusBadRequest || messageOf(t, body) != "Title is required" {
		t.Fatalf("blank title: status=%d body=%s", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/tasks", `{"title":"x","user":"someone-else"}`, tok)
	if status != http.StatusBadRequest {
		t.Fatalf("owner override must be rejected: status=%d body=%s", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/tasks", map[string]string{"title": "ok"}, tok)
	if status != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", status, body)
	}
	id := decodeTask(t, body).ID

	status, body = s.do(t, http.MethodPut, "/tasks/"+id, map[string]string{"status": "done"}, tok)
	if status != http.StatusBadRequest {
		t.Fatalf("bad status update: status=%d body=%s", status, body)
	}

	status, body = s.do(t, http.MethodGet, "/tasks", nil, "")
	if status != http.StatusUnauthorized || messageOf(t, body) != gate.MsgNoToken {
		t.Fatalf("no token: status=%d body=%s", status, body)
	}
	status, body = s.do(t, http.MethodGet, "/tasks", nil, "garbage")
	if status != http.StatusUnauthorized || messageOf(t, body) != gate.MsgTokenFailed {
		t.Fatalf("bad token: status=%d body=%s", status, body)
	}
}
