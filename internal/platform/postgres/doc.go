// Package postgres stores the history of finished tasks in PostgreSQL.
// It owns the connection setup, the embedded schema migrations and the
// event handler that records every ended task.
package postgres
