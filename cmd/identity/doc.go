// Package identity implements user registration and credential verification.
//
// Service owns the rules (email shape, display name, password policy, uniform
// credential failures); Store implementations only persist records and enforce
// email uniqueness through the backend itself (unique index or constraint).
//
// Backends: in-memory, PostgreSQL (pgx), MongoDB and SQLite.
package identity
