// Package logging assembles structured slog loggers and formatting helpers used
// across memeflow.
//
// It owns the console/JSON handlers, centralizes level and output plumbing, and
// exposes context-aware helpers so node code can tag log lines with run IDs,
// flow and node names, and correlation IDs. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
