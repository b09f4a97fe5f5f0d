//go:build integration

// Package testdb provides database helpers for integration tests. Tests
// using it are skipped unless TASKD_TEST_DATABASE_URL (or DATABASE_URL) is
// set; in CI a missing URL fails instead.
package testdb
