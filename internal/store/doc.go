// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// The package exposes small interfaces per concern:
//
//   - UserStore: identities created by OAuth or local login
//   - ProjectStore: projects with owner and member lists
//   - ContainerStore: simulated container state and lifecycle events
//   - AuditStore: append-only record of user actions
//
// SQLiteStore implements all of them, and Store composes them with Close.
//
// # Schema
//
// Tables are created on first open and extended by idempotent migrations.
// Timestamps are stored as RFC 3339 strings with nanoseconds so they sort
// lexically. Member and tag lists are JSON arrays, queried with json_each.
//
// Deleting a project cascades to its container row and its container events.
// Deleting only the container keeps the event history.
//
// # Usage
//
//	s, err := store.NewSQLiteStore("/var/lib/vibecode/gateway.db")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
// Pass store.MemoryPath for a throwaway in-memory database.
package store
