package stage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"memeflow/internal/cache"
	"memeflow/internal/flowconfig"
	"memeflow/internal/logging"
	"memeflow/internal/services"
)

// Input is the read-only view of run state handed to a node.
type Input struct {
	Flow   string
	RunID  string
	RunDir string
	Config *flowconfig.Config
	Logger *slog.Logger
	values map[Key]json.RawMessage
}

// NewInput builds an Input over values. The map is copied.
func NewInput(flow, runID, runDir string, cfg *flowconfig.Config, logger *slog.Logger, values map[Key]json.RawMessage) *Input {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg == nil {
		cfg, _ = flowconfig.Resolve(nil, "", nil)
	}
	return &Input{
		Flow:   flow,
		RunID:  runID,
		RunDir: runDir,
		Config: cfg,
		Logger: logger,
		values: maps.Clone(values),
	}
}

// WithLogger returns a shallow copy of in that logs through logger.
func (in *Input) WithLogger(logger *slog.Logger) *Input {
	clone := *in
	clone.Logger = logger
	return &clone
}

// Has reports whether key is present.
func (in *Input) Has(key Key) bool {
	_, ok := in.values[key]
	return ok
}

// Raw returns the encoded value for key.
func (in *Input) Raw(key Key) (json.RawMessage, bool) {
	raw, ok := in.values[key]
	return raw, ok
}

// Decode unmarshals key into dst. A missing key is a composition error; a
// value that does not decode is a contract error.
func (in *Input) Decode(key Key, dst any) error {
	raw, ok := in.values[key]
	if !ok {
		return services.Wrap(services.ErrComposition, "stage", "decode",
			fmt.Sprintf("state key %s is missing", key), nil)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return services.Wrap(services.ErrContract, "stage", "decode",
			fmt.Sprintf("state key %s has an unexpected shape", key), err)
	}
	return nil
}

// Keys lists available keys sorted by namespace then name.
func (in *Input) Keys() []Key {
	keys := slices.Collect(maps.Keys(in.values))
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Output collects the values a node produces.
type Output struct {
	values map[Key]json.RawMessage
	cache  []cache.Outcome
	notes  map[string]string
}

// NewOutput returns an empty Output.
func NewOutput() *Output {
	return &Output{values: make(map[Key]json.RawMessage)}
}

// Set JSON-encodes value under key.
func (o *Output) Set(key Key, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return services.Wrap(services.ErrContract, "stage", "set",
			fmt.Sprintf("value for %s is not serializable", key), err)
	}
	o.values[key] = raw
	return nil
}

// SetRaw stores an already encoded value.
func (o *Output) SetRaw(key Key, raw json.RawMessage) {
	o.values[key] = append(json.RawMessage(nil), raw...)
}

// Keys lists produced keys, sorted.
func (o *Output) Keys() []Key {
	if o == nil {
		return nil
	}
	keys := slices.Collect(maps.Keys(o.values))
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Values returns a copy of the produced values.
func (o *Output) Values() map[Key]json.RawMessage {
	if o == nil {
		return nil
	}
	return maps.Clone(o.values)
}

// ReportCache records a cache lookup made while producing this output.
func (o *Output) ReportCache(outcome cache.Outcome) {
	o.cache = append(o.cache, outcome)
}

// CacheOutcomes returns the reported cache lookups.
func (o *Output) CacheOutcomes() []cache.Outcome {
	if o == nil {
		return nil
	}
	return slices.Clone(o.cache)
}

// Note attaches a short human-readable annotation, e.g. why work was skipped.
func (o *Output) Note(key, value string) {
	if o.notes == nil {
		o.notes = make(map[string]string)
	}
	o.notes[key] = value
}

// Notes returns the annotations.
func (o *Output) Notes() map[string]string {
	if o == nil {
		return nil
	}
	return maps.Clone(o.notes)
}

func compareKeys(a, b Key) int {
	if a.Namespace != b.Namespace {
		if a.Namespace < b.Namespace {
			return -1
		}
		return 1
	}
	switch {
	case a.Name < b.Name:
		return -1
	case a.Name > b.Name:
		return 1
	default:
		return 0
	}
}
