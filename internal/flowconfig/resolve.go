package flowconfig

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"memeflow/internal/services"
)

// Source identifies the layer that supplied a resolved value.
type Source string

const (
	SourceDefault   Source = "default"
	SourceInherited Source = "inherited"
	SourceOverride  Source = "override"
)

// Defaults maps every known option to its default value. The value's kind is
// the option's declared kind.
type Defaults map[string]Value

type entry struct {
	value   Value
	source  Source
	unknown bool
}

// Entry is one resolved option, as reported by Config.Entries.
type Entry struct {
	Key     string
	Value   Value
	Source  Source
	Unknown bool
}

// Config is the resolved option set for one flow invocation. It is immutable.
type Config struct {
	entries map[string]entry
}

type assignment struct {
	key   string
	parts []string
}

// Resolve merges defaults, inherited and override layers. Only a malformed
// override fails; unknown keys are kept and flagged.
func Resolve(defaults Defaults, override string, inherited map[string]Value) (*Config, error) {
	cfg := &Config{entries: make(map[string]entry, len(defaults)+len(inherited))}
	for key, value := range defaults {
		cfg.entries[key] = entry{value: value.clone(), source: SourceDefault}
	}

	for _, key := range slices.Sorted(maps.Keys(inherited)) {
		value := inherited[key]
		declared, known := defaults[key]
		if !known {
			cfg.entries[key] = entry{value: value.clone(), source: SourceInherited, unknown: true}
			continue
		}
		converted, ok := coerce(declared.Kind, value)
		if !ok {
			return nil, services.UserInput("flowconfig", "resolve",
				fmt.Sprintf("inherited option %q cannot be read as %s", key, declared.Kind))
		}
		cfg.entries[key] = entry{value: converted, source: SourceInherited}
	}

	assignments, err := parseOverride(override, defaults)
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		declared, known := defaults[a.key]
		if !known {
			cfg.entries[a.key] = entry{value: inferParts(a.parts), source: SourceOverride, unknown: true}
			continue
		}
		value, ok := parseAs(declared.Kind, a.parts)
		if !ok {
			return nil, services.UserInput("flowconfig", "parse override",
				fmt.Sprintf("option %q expects a %s value, got %q", a.key, declared.Kind, strings.Join(a.parts, ",")))
		}
		cfg.entries[a.key] = entry{value: value, source: SourceOverride}
	}
	return cfg, nil
}

// parseOverride splits "k=v,k2=a,b" into assignments. A segment without "="
// continues the previous key when that key is declared as a list or is not
// declared at all.
func parseOverride(override string, defaults Defaults) ([]assignment, error) {
	var out []assignment
	for _, segment := range strings.Split(override, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		key, value, found := strings.Cut(segment, "=")
		if !found {
			if len(out) > 0 && continues(defaults, out[len(out)-1].key) {
				last := &out[len(out)-1]
				last.parts = append(last.parts, segment)
				continue
			}
			return nil, services.UserInput("flowconfig", "parse override",
				fmt.Sprintf("malformed override segment %q (expected key=value)", segment))
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, services.UserInput("flowconfig", "parse override",
				fmt.Sprintf("malformed override segment %q (empty key)", segment))
		}
		out = append(out, assignment{key: key, parts: []string{strings.TrimSpace(value)}})
	}
	return out, nil
}

func continues(defaults Defaults, key string) bool {
	declared, known := defaults[key]
	return !known || declared.Kind == KindList
}

// inferParts types an unknown key's value: several parts form a list.
func inferParts(parts []string) Value {
	if len(parts) > 1 {
		return ListValue(parts...)
	}
	return infer(parts[0])
}

// Get returns the resolved value for key.
func (c *Config) Get(key string) (Value, bool) {
	if c == nil {
		return Value{}, false
	}
	e, ok := c.entries[key]
	if !ok {
		return Value{}, false
	}
	return e.value.clone(), true
}

// Source reports which layer supplied key, or "" when it is unset.
func (c *Config) Source(key string) Source {
	if c == nil {
		return ""
	}
	return c.entries[key].source
}

// String returns key as a string. Non-string values are rendered.
func (c *Config) String(key, def string) string {
	v, ok := c.Get(key)
	if !ok {
		return def
	}
	return v.String()
}

// Strings returns key as a list. A scalar becomes a single-element list.
func (c *Config) Strings(key string, def []string) []string {
	v, ok := c.Get(key)
	if !ok {
		return def
	}
	if v.Kind == KindList {
		return v.List
	}
	if s := strings.TrimSpace(v.String()); s != "" {
		return []string{s}
	}
	return nil
}

func (c *Config) Bool(key string, def bool) bool {
	v, ok := c.Get(key)
	if !ok {
		return def
	}
	if v.Kind == KindBool {
		return v.Bool
	}
	if b, ok := parseBool(v.String()); ok {
		return b
	}
	return def
}

func (c *Config) Int(key string, def int) int {
	v, ok := c.Get(key)
	if !ok {
		return def
	}
	switch v.Kind {
	case KindInt:
		return int(v.Int)
	case KindFloat:
		return int(v.Float)
	}
	if parsed, ok := parseAs(KindInt, []string{v.String()}); ok {
		return int(parsed.Int)
	}
	return def
}

func (c *Config) Float(key string, def float64) float64 {
	v, ok := c.Get(key)
	if !ok {
		return def
	}
	switch v.Kind {
	case KindFloat:
		return v.Float
	case KindInt:
		return float64(v.Int)
	}
	if parsed, ok := parseAs(KindFloat, []string{v.String()}); ok {
		return parsed.Float
	}
	return def
}

// Values returns a copy of every resolved value, suitable for storing as the
// inherited layer of a later flow.
func (c *Config) Values() map[string]Value {
	if c == nil {
		return nil
	}
	out := make(map[string]Value, len(c.entries))
	for key, e := range c.entries {
		out[key] = e.value.clone()
	}
	return out
}

// Explicit returns the values supplied by the inherited or override layers.
// A run stores these so the next flow inherits choices, not defaults.
func (c *Config) Explicit() map[string]Value {
	if c == nil {
		return nil
	}
	out := make(map[string]Value)
	for key, e := range c.entries {
		if e.source != SourceDefault {
			out[key] = e.value.clone()
		}
	}
	return out
}

// Unknown lists keys no default declares, sorted.
func (c *Config) Unknown() []string {
	if c == nil {
		return nil
	}
	var keys []string
	for key, e := range c.entries {
		if e.unknown {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys
}

// Entries lists every resolved option sorted by key.
func (c *Config) Entries() []Entry {
	if c == nil {
		return nil
	}
	keys := slices.Sorted(maps.Keys(c.entries))
	out := make([]Entry, 0, len(keys))
	for _, key := range keys {
		e := c.entries[key]
		out = append(out, Entry{Key: key, Value: e.value.clone(), Source: e.source, Unknown: e.unknown})
	}
	return out
}

// ForceRefresh reports whether the node-level flag nodeKey forces a cache
// refresh. An explicitly set node flag wins over the global force_refresh.
func (c *Config) ForceRefresh(nodeKey string) bool {
	if nodeKey != "" {
		if src := c.Source(nodeKey); src == SourceInherited || src == SourceOverride {
			return c.Bool(nodeKey, false)
		}
	}
	return c.Bool(KeyForceRefresh, false)
}
