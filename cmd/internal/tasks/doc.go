// Package tasks implements owner-scoped task storage.
//
// Every read and write is filtered by the owning user ID. A task owned by
// someone else is indistinguishable from a missing one: both are NotFound.
// Updates and deletes are single filtered statements on every backend.
package tasks
