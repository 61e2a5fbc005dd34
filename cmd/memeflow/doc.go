// Package main hosts the memeflow CLI entrypoint and command graph.
//
// The Cobra-based command tree runs catalog flows (text, meme, animation)
// against the run registry, inspects stored runs and cache entries, and
// scaffolds configuration. It centralizes configuration loading, logger
// construction and collaborator wiring so subcommands only describe what
// they print.
//
// Errors reach the terminal through services.Details: the stable kind and a
// safe message, never a collaborator payload.
package main
