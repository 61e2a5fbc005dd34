package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"memeflow/internal/services"
)

type request struct {
	key         string
	policy      Policy
	fingerprint string
	ttl         time.Duration
	force       bool
}

// GetOrComputeByFingerprint returns the value cached for key when it was
// stored under the same fingerprint. Otherwise, or when force is set, it
// runs compute and replaces the entry.
func GetOrComputeByFingerprint[T any](ctx context.Context, s *Store, key, fingerprint string, force bool, compute func(context.Context) (T, error)) (T, Outcome, error) {
	return getOrCompute(ctx, s, request{key: key, policy: PolicyFingerprint, fingerprint: fingerprint, force: force}, compute)
}

// GetOrComputeByTTL returns the value cached for key while its age is below
// ttl. Otherwise, or when force is set, it runs compute and restarts the
// clock.
func GetOrComputeByTTL[T any](ctx context.Context, s *Store, key string, ttl time.Duration, force bool, compute func(context.Context) (T, error)) (T, Outcome, error) {
	return getOrCompute(ctx, s, request{key: key, policy: PolicyTTL, ttl: ttl, force: force}, compute)
}

func getOrCompute[T any](ctx context.Context, s *Store, req request, compute func(context.Context) (T, error)) (T, Outcome, error) {
	var zero T
	req.key = strings.TrimSpace(req.key)
	if s == nil || req.key == "" || compute == nil {
		return zero, Outcome{}, services.Wrap(services.ErrContract, "cache", "get", "cache key and compute function are required", nil)
	}

	reason := ReasonForced
	if !req.force {
		if value, outcome, ok := lookup[T](ctx, s, req); ok {
			s.observe(outcome)
			return value, outcome, nil
		}
	}

	release, err := s.lock(ctx, req.key)
	if err != nil {
		return zero, Outcome{Key: req.key, Policy: req.policy}, err
	}
	defer release()

	// Another holder of the lock may have filled the entry meanwhile.
	if !req.force {
		value, outcome, ok := lookup[T](ctx, s, req)
		if ok {
			s.observe(outcome)
			return value, outcome, nil
		}
		reason = outcome.Reason
	}

	outcome := Outcome{Key: req.key, Policy: req.policy, Reason: reason}
	value, err := compute(ctx)
	if err != nil {
		return zero, outcome, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return zero, outcome, services.Wrap(services.ErrContract, "cache", "encode", "computed value is not serializable", err)
	}
	entry := Entry{
		Key:         req.key,
		Policy:      req.policy,
		Fingerprint: req.fingerprint,
		CreatedAt:   s.now().UTC(),
		Value:       raw,
		Metadata:    map[string]string{"type": fmt.Sprintf("%T", value)},
	}
	if req.policy == PolicyTTL {
		entry.TTLSeconds = req.ttl.Seconds()
	}
	s.write(ctx, entry)
	s.observe(outcome)
	return value, outcome, nil
}

// lookup reports a valid decoded value, or the reason there is none.
func lookup[T any](ctx context.Context, s *Store, req request) (T, Outcome, bool) {
	var value T
	outcome := Outcome{Key: req.key, Policy: req.policy}
	entry, reason := s.read(ctx, req.key)
	if reason != ReasonHit {
		outcome.Reason = reason
		return value, outcome, false
	}
	now := s.now()
	switch req.policy {
	case PolicyFingerprint:
		if entry.Policy != PolicyFingerprint || entry.Fingerprint != req.fingerprint {
			outcome.Reason = ReasonStale
			return value, outcome, false
		}
	case PolicyTTL:
		if entry.Policy != PolicyTTL {
			outcome.Reason = ReasonStale
			return value, outcome, false
		}
		// An entry stamped in the future comes from a skewed clock.
		if age := entry.Age(now); req.ttl <= 0 || age < 0 || age >= req.ttl {
			outcome.Reason = ReasonExpired
			return value, outcome, false
		}
	}
	if err := json.Unmarshal(entry.Value, &value); err != nil {
		s.warnCorrupt(req.key, services.Wrap(services.ErrCacheCorruption, "cache", "decode", "cached value unreadable", err))
		var zero T
		outcome.Reason = ReasonCorrupt
		return zero, outcome, false
	}
	outcome.Hit = true
	outcome.Reason = ReasonHit
	outcome.Age = entry.Age(now)
	return value, outcome, true
}
