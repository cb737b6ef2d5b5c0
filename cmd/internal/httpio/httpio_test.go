package httpio

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type sample struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		body    string
		max     int64
		wantMsg string
	}{
		{name: "ok", body: `{"title":"x","count":2}`},
		{name: "empty", body: ``, wantMsg: "Request body is required"},
		{name: "syntax", body: `{"title":`, wantMsg: "Malformed JSON body"},
		{name: "unknown field", body: `{"title":"x","owner":"y"}`, wantMsg: `Unknown field "owner"`},
		{name: "wrong type", body: `{"count":"two"}`, wantMsg: `Invalid value for field "count"`},
		{name: "trailing", body: `{"title":"x"}{"title":"y"}`, wantMsg: "Request body must contain a single JSON object"},
		{name: "too large", body: `{"title":"` + strings.Repeat("a", 64) + `"}`, max: 16, wantMsg: "Request body too large"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			w := httptest.NewRecorder()

			var dst sample
			err := DecodeJSON(w, r, tc.max, &dst)
			if tc.wantMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.Title != "x" || dst.Count != 2 {
					t.Fatalf("unexpected decode: %+v", dst)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := DecodeMessage(err); got != tc.wantMsg {
				t.Fatalf("message=%q want %q", got, tc.wantMsg)
			}
		})
	}
}

func TestWriteMessage(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	WriteMessage(w, http.StatusNotFound, "Task not found")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("cache-control=%q", cc)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 || body["message"] != "Task not found" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"Bearer abc def", "", false},
		{"Bearer abc", "abc", true},
		{"bearer   abc  ", "abc", true},
		{"BEARER abc", "abc", true},
	}

	for _, tc := range cases {
		tc := tc
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		got, ok := BearerToken(r)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("BearerToken(%q)=(%q,%v) want (%q,%v)", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		xff     []string
		realIP  string
		trusted string
	}{
		{name: "single hop", xff: []string{"203.0.113.7"}, trusted: "203.0.113.7"},
		{name: "right-most wins", xff: []string{"198.51.100.66, 203.0.113.7"}, trusted: "203.0.113.7"},
		{name: "spoofed prefix rotated", xff: []string{"192.0.2.200, 192.0.2.201, 203.0.113.7"}, trusted: "203.0.113.7"},
		{name: "multiple header lines", xff: []string{"198.51.100.66", "203.0.113.8"}, trusted: "203.0.113.8"},
		{name: "garbage falls back to real ip", xff: []string{"203.0.113.7, nope"}, realIP: "203.0.113.9", trusted: "203.0.113.9"},
		{name: "no headers", trusted: "10.0.0.9"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = "10.0.0.9:1234"
			for _, v := range tc.xff {
				r.Header.Add("X-Forwarded-For", v)
			}
			if tc.realIP != "" {
				r.Header.Set("X-Real-IP", tc.realIP)
			}

			if got := ClientIP(r, false); got.String() != "10.0.0.9" {
				t.Fatalf("untrusted: got %v", got)
			}
			if got := ClientIP(r, true); got.String() != tc.trusted {
				t.Fatalf("trusted: got %v want %s", got, tc.trusted)
			}
		})
	}
}
