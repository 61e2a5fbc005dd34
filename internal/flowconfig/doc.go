// Package flowconfig resolves the per-invocation options a flow runs with.
//
// Three layers are merged in order of increasing precedence: the defaults
// derived from the process configuration, the options a run inherited from
// the flow that ran before it, and a flat comma-separated key=value override
// string supplied by the caller. Every resolved option keeps its typed value
// and the layer it came from. Keys that no default declares are accepted,
// typed by inference, and reported through Config.Unknown.
//
// Resolution is pure: the same inputs always produce the same Config.
package flowconfig
