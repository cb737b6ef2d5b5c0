// Package realtime pushes task mutations to the owner's open websocket sessions.
//
// The feed is read-only for clients: they authenticate, then receive
// task_created, task_updated and task_deleted envelopes for their own tasks.
package realtime
