// Package services defines shared utilities consumed by flow nodes and the
// external collaborator clients.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, flow and node names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap and Transient helpers that let the
//     node executor decide between retrying and aborting, and let the CLI print
//     a stable kind with a message that never leaks collaborator payloads.
//   - HTTP status and transport classification shared by every collaborator
//     client.
package services
