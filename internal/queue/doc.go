// Package queue defines the task data model and its SQLite-backed store.
//
// Every task mutation flows through the Store so that status queries always
// observe a fully written snapshot. The store keeps a secondary index on the
// contention key to back the single-flight check performed by the workflow
// manager.
package queue
