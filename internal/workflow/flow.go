package workflow

import (
	"fmt"
	"strings"

	"memeflow/internal/services"
	"memeflow/internal/stage"
)

// Flow is a named, ordered node list. Build one with Compose.
type Flow struct {
	Name  string
	Nodes []stage.Node
}

// NodeNames lists the nodes in execution order.
func (f *Flow) NodeNames() []string {
	if f == nil {
		return nil
	}
	names := make([]string, 0, len(f.Nodes))
	for _, node := range f.Nodes {
		names = append(names, node.Name())
	}
	return names
}

// Produces lists every key the flow writes, in node order.
func (f *Flow) Produces() []stage.Key {
	if f == nil {
		return nil
	}
	var keys []stage.Key
	for _, node := range f.Nodes {
		keys = append(keys, node.Spec().Produces...)
	}
	return keys
}

// External lists the keys the flow requires from other namespaces. The
// engine resolves them from completed flows of the run.
func (f *Flow) External() []stage.Key {
	if f == nil {
		return nil
	}
	seen := make(map[stage.Key]struct{})
	var keys []stage.Key
	for _, node := range f.Nodes {
		for _, key := range node.Spec().Requires {
			if key.Namespace == f.Name {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	return keys
}

// Compose validates nodes and returns them as a flow named name.
func Compose(name string, nodes ...stage.Node) (*Flow, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, compositionError("", "flow name is required")
	}
	if len(nodes) == 0 {
		return nil, compositionError("", fmt.Sprintf("flow %s has no nodes", name))
	}

	names := make(map[string]struct{}, len(nodes))
	producers := make(map[stage.Key]string)
	for i, node := range nodes {
		if node == nil {
			return nil, compositionError("", fmt.Sprintf("flow %s: node %d is nil", name, i+1))
		}
		nodeName := strings.TrimSpace(node.Name())
		if nodeName == "" {
			return nil, compositionError("", fmt.Sprintf("flow %s: node %d has no name", name, i+1))
		}
		if _, dup := names[nodeName]; dup {
			return nil, compositionError(nodeName, fmt.Sprintf("flow %s: duplicate node %s", name, nodeName))
		}
		names[nodeName] = struct{}{}

		spec := node.Spec()
		if len(spec.Produces) == 0 {
			return nil, compositionError(nodeName, fmt.Sprintf("node %s declares no outputs", nodeName))
		}
		for _, key := range append(append([]stage.Key(nil), spec.Requires...), spec.Optional...) {
			if !key.Valid() {
				return nil, compositionError(nodeName, fmt.Sprintf("node %s reads invalid key %q", nodeName, key.String()))
			}
			if key.Namespace != name {
				continue
			}
			if _, ok := producers[key]; !ok {
				return nil, compositionError(nodeName,
					fmt.Sprintf("node %s reads %s, which no earlier node produces", nodeName, key))
			}
		}
		for _, key := range spec.Produces {
			if !key.Valid() {
				return nil, compositionError(nodeName, fmt.Sprintf("node %s produces invalid key %q", nodeName, key.String()))
			}
			if key.Namespace != name {
				return nil, compositionError(nodeName,
					fmt.Sprintf("node %s produces %s outside namespace %s", nodeName, key, name))
			}
			if owner, taken := producers[key]; taken {
				return nil, compositionError(nodeName,
					fmt.Sprintf("node %s produces %s, already produced by %s", nodeName, key, owner))
			}
			producers[key] = nodeName
		}
	}
	return &Flow{Name: name, Nodes: append([]stage.Node(nil), nodes...)}, nil
}

func compositionError(node, message string) error {
	op := "compose"
	if node != "" {
		op = node
	}
	return services.Wrap(services.ErrComposition, "workflow", op, message, nil)
}
