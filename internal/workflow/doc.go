// Package workflow composes nodes into flows and executes them against a run.
//
// A Flow is a closed, ordered node list checked once by Compose: produced
// keys must live in the flow's own namespace, no two nodes may produce the
// same key, and every own-namespace requirement must be produced by an
// earlier node. Requirements on other flows' namespaces are checked at
// execution time against the run snapshot, because those flows may have run
// in another process.
//
// The Engine runs nodes strictly in order through stageexec, checkpointing
// the flow's namespace after every successful node. A failed node aborts the
// flow; the outputs committed before it stay in the run. Cancellation is
// observed between nodes only.
//
// The Runner is the entry point commands use: it creates or loads the run,
// resolves the invocation config, runs preflight checks, builds the named
// flow from the catalog, executes it, exports the snapshot and writes
// metrics.
package workflow
