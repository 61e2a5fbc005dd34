package cache

import (
	"encoding/json"
	"time"
)

// Policy names the validity rule an entry was stored under.
type Policy string

const (
	PolicyFingerprint Policy = "fingerprint"
	PolicyTTL         Policy = "ttl"
)

// Entry is one persisted cache record.
type Entry struct {
	Key         string            `json:"key"`
	Policy      Policy            `json:"policy"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	TTLSeconds  float64           `json:"ttl_seconds,omitempty"`
	Value       json.RawMessage   `json:"value"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// TTL returns the time-to-live the entry was stored with.
func (e Entry) TTL() time.Duration {
	return time.Duration(e.TTLSeconds * float64(time.Second))
}

// Age reports how old the entry is at now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// Reason explains a lookup result.
type Reason string

const (
	ReasonHit     Reason = "hit"
	ReasonMiss    Reason = "miss"
	ReasonStale   Reason = "stale"
	ReasonExpired Reason = "expired"
	ReasonForced  Reason = "forced"
	ReasonCorrupt Reason = "corrupt"
)

// Outcome describes what a GetOrCompute call did.
type Outcome struct {
	Key    string
	Policy Policy
	Hit    bool
	Reason Reason
	// Age of the served entry on a hit.
	Age time.Duration
}

// Recomputed reports whether compute ran.
func (o Outcome) Recomputed() bool {
	return !o.Hit
}
