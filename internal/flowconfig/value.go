package flowconfig

import (
	"slices"
	"strconv"
	"strings"
)

// Kind is the declared or inferred type of an option value.
type Kind string

const (
	KindString Kind = "string"
	KindList   Kind = "list"
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
)

// Value is a typed option value. Only the field matching Kind is meaningful;
// the JSON form round-trips exactly.
type Value struct {
	Kind  Kind     `json:"kind"`
	Str   string   `json:"string,omitempty"`
	List  []string `json:"list,omitempty"`
	Bool  bool     `json:"bool,omitempty"`
	Int   int64    `json:"int,omitempty"`
	Float float64  `json:"float,omitempty"`
}

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

func ListValue(items ...string) Value {
	return Value{Kind: KindList, List: append([]string(nil), items...)}
}

func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i} }

func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// Equal reports whether two values have the same kind and content. A nil and
// an empty list are equal.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == other.Str
	case KindList:
		return slices.Equal(v.List, other.List)
	case KindBool:
		return v.Bool == other.Bool
	case KindInt:
		return v.Int == other.Int
	case KindFloat:
		return v.Float == other.Float
	default:
		return true
	}
}

// String renders the value the way it would be written in an override.
func (v Value) String() string {
	switch v.Kind {
	case KindList:
		return strings.Join(v.List, ",")
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		return v.Str
	}
}

func (v Value) clone() Value {
	if v.List != nil {
		v.List = append([]string(nil), v.List...)
	}
	return v
}

// parseAs converts raw override text into a value of the given kind.
func parseAs(kind Kind, parts []string) (Value, bool) {
	raw := strings.TrimSpace(strings.Join(parts, ","))
	switch kind {
	case KindList:
		items := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		return Value{Kind: KindList, List: items}, true
	case KindBool:
		b, ok := parseBool(raw)
		return BoolValue(b), ok
	case KindInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		return IntValue(i), err == nil
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		return FloatValue(f), err == nil
	default:
		return StringValue(raw), true
	}
}

// infer types a value for a key no default declares: bool words first, then
// integers, then floats, otherwise a string.
func infer(raw string) Value {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "true":
		return BoolValue(true)
	case "false":
		return BoolValue(false)
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return IntValue(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return FloatValue(f)
	}
	return StringValue(raw)
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1", "on":
		return true, true
	case "false", "no", "0", "off":
		return false, true
	default:
		return false, false
	}
}

// coerce converts an inherited value to the declared kind when a stored run
// predates a kind change.
func coerce(kind Kind, v Value) (Value, bool) {
	if v.Kind == kind {
		return v.clone(), true
	}
	if v.Kind == KindList {
		return parseAs(kind, v.List)
	}
	if kind == KindList {
		return parseAs(kind, strings.Split(v.String(), ","))
	}
	return parseAs(kind, []string{v.String()})
}
