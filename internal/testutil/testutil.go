// Package testutil provides shared test helpers:
//   - Miniredis helpers for Redis-backed unit tests (miniredis.go)
//   - Retry executors with no-op clocks so tests never sleep (executor.go)
//
// None of the helpers require Docker; everything runs in-process.
package testutil
