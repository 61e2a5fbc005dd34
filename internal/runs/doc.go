// Package runs is the run registry: it issues run identifiers, persists the
// state snapshot each flow builds, and lists past runs.
//
// State lives in a SQLite database (runs.db) next to the per-run output
// directories. Each flow owns one namespace row, so a commit for one flow can
// never erase another flow's outputs. Every commit is a single immediate
// transaction; a reader sees either the previous or the new namespace.
//
// A human-readable copy of the latest snapshot is exported to
// runs/<id>/metadata/snapshot.json after each commit.
package runs
