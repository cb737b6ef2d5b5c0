// Package httpio holds the JSON request/response conventions shared by the HTTP APIs.
//
// Every error body has the shape {"message": "..."}.
package httpio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// DefaultMaxBodyBytes bounds request bodies when no explicit limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// MsgInternal is the only message clients see for unexpected failures.
const MsgInternal = "Internal server error"

// MessageResponse is the body of every error and of message-only successes.
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON writes v with status. Responses are never cacheable.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes {"message": msg} with status.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, MessageResponse{Message: msg})
}

// WriteInternal writes the generic 500 body. The cause must be logged by the caller.
func WriteInternal(w http.ResponseWriter) {
	WriteMessage(w, http.StatusInternalServerError, MsgInternal)
}

// DecodeError describes why a request body was rejected. Its message is client-safe.
type DecodeError struct {
	Msg string
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeJSON strictly decodes a single JSON object into dst:
// unknown fields, trailing data and bodies over maxBytes are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return &DecodeError{Msg: "Request body is required"}
	}
	defer func() { _ = r.Body.Close() }()

	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &tooLarge):
			return &DecodeError{Msg: "Request body too large", Err: err}
		case errors.Is(err, io.EOF):
			return &DecodeError{Msg: "Request body is required", Err: err}
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return &DecodeError{Msg: "Malformed JSON body", Err: err}
		case errors.As(err, &typeErr):
			return &DecodeError{Msg: fmt.Sprintf("Invalid value for field %q", typeErr.Field), Err: err}
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return &DecodeError{Msg: "Unknown field " + field, Err: err}
		default:
			return &DecodeError{Msg: "Invalid request body", Err: err}
		}
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return &DecodeError{Msg: "Request body must contain a single JSON object"}
	}
	return nil
}

// DecodeMessage returns the client-safe text for a DecodeJSON failure.
func DecodeMessage(err error) string {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Msg
	}
	return "Invalid request body"
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is case-insensitive. ok is false when the header is absent or malformed.
func BearerToken(r *http.Request) (token string, ok bool) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", false
	}
	scheme, rest, found := strings.Cut(raw, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(rest)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// ClientIP returns the caller address. Forwarding headers are honored only when trustProxy is set.
func ClientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Values("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

// parseForwardedIP takes the right-most entry, the one appended by the trusted
// proxy. Entries to its left are client-controlled.
func parseForwardedIP(lines []string) net.IP {
	if len(lines) == 0 {
		return nil
	}
	last := lines[len(lines)-1]
	if i := strings.LastIndexByte(last, ','); i >= 0 {
		last = last[i+1:]
	}
	return net.ParseIP(strings.TrimSpace(last))
}
