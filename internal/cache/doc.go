// Package cache persists expensive node outputs between invocations.
//
// Two validity policies are supported. Fingerprint entries stay valid until
// the caller presents a different input fingerprint; TTL entries expire once
// their age reaches the requested time-to-live. Each key holds at most one
// entry, and a recompute replaces whatever was stored before.
//
// Reads never take a lock, so a concurrent reader may observe the previous
// value while a recompute is in flight. A miss takes a per-key lock (an
// in-process mutex plus a backend lock that spans processes), re-reads the
// entry, and only then computes. Different keys never contend.
//
// Entries that fail to decode are treated as misses and logged; they are
// never fatal. Backends: one JSON file per key guarded by flock, or Redis.
package cache
