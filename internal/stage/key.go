package stage

import (
	"fmt"
	"strings"

	"memeflow/internal/services"
)

// Key addresses one value in run state: the flow namespace that owns it and
// the output name within that namespace.
type Key struct {
	Namespace string
	Name      string
}

// K is shorthand for Key{Namespace: namespace, Name: name}.
func K(namespace, name string) Key {
	return Key{Namespace: namespace, Name: name}
}

func (k Key) String() string {
	return k.Namespace + "." + k.Name
}

// Valid reports whether both parts are set.
func (k Key) Valid() bool {
	return strings.TrimSpace(k.Namespace) != "" && strings.TrimSpace(k.Name) != ""
}

// ParseKey parses "namespace.name".
func ParseKey(raw string) (Key, error) {
	namespace, name, ok := strings.Cut(strings.TrimSpace(raw), ".")
	key := Key{Namespace: strings.TrimSpace(namespace), Name: strings.TrimSpace(name)}
	if !ok || !key.Valid() {
		return Key{}, services.UserInput("stage", "parse key", fmt.Sprintf("invalid state key %q (expected namespace.name)", raw))
	}
	return key, nil
}
