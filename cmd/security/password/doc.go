// Package password hashes and verifies user passwords.
//
// New digests are Argon2id in a PHC-like encoded string; the salt and cost
// parameters travel inside the digest so verification needs nothing else.
// bcrypt digests are accepted for verification only and are reported by
// NeedsRehash so callers can upgrade them after a successful login.
//
// Digests are treated as untrusted input during Verify: malformed strings and
// parameters far above the configured cost are refused.
package password
