package traversal

import (
	"github.com/OpenTwinHQ/opentwin/backend/pkg/model"
)

// Network is the adjacency index the traversal walks. It is built once per
// extract so the per-equipment BFS never re-derives relationships per hop.
//
// Port and generic connections are kept as separate maps because parser
// output is noisy: reciprocal links may be missing from either source. Both
// maps are symmetrized on build and the traversal takes the union of the two.
type Network struct {
	elements map[string]model.Element
	ports    map[string][]string
	generic  map[string][]string

	systemsOf     map[string][]string
	systemMembers map[string][]string

	spaceOf  map[string]string
	terminal map[string]struct{}
}

// NewNetwork indexes an extract for traversal.
func NewNetwork(ex *model.Extract) *Network {
	n := &Network{
		elements:      make(map[string]model.Element, len(ex.Elements)),
		ports:         make(map[string][]string),
		generic:       make(map[string][]string),
		systemsOf:     make(map[string][]string),
		systemMembers: make(map[string][]string),
		spaceOf:       make(map[string]string),
		terminal:      make(map[string]struct{}, len(ex.Candidates.Terminals)),
	}

	for _, el := range ex.Elements {
		n.elements[el.ID] = el
	}

	for _, pc := range ex.PortConnections {
		for _, other := range pc.ConnectedIDs {
			addNeighbor(n.ports, pc.ElementID, other)
			addNeighbor(n.ports, other, pc.ElementID)
		}
	}
	for _, c := range ex.Connections {
		addNeighbor(n.generic, c.FromID, c.ToID)
		addNeighbor(n.generic, c.ToID, c.FromID)
	}

	for _, m := range ex.Systems {
		name := m.SystemName
		if name == "" {
			name = m.SystemID
		}
		if name == "" {
			continue
		}
		addNeighbor(n.systemsOf, m.ElementID, name)
		addNeighbor(n.systemMembers, name, m.ElementID)
	}

	// Space membership comes from containment triples whose target is a space.
	for _, rel := range ex.Relations {
		if rel.Type != model.RelationContainment {
			continue
		}
		if target, ok := n.elements[rel.ToID]; ok && target.Kind == "IfcSpace" {
			n.spaceOf[rel.FromID] = rel.ToID
		}
	}

	for _, id := range ex.Candidates.Terminals {
		n.terminal[id] = struct{}{}
	}
	for _, el := range ex.Elements {
		if isTerminalKind(el.Kind) {
			n.terminal[el.ID] = struct{}{}
		}
	}

	return n
}

// Neighbors returns the deduplicated union of port-level and generic
// connection neighbors of id, in first-seen order.
func (n *Network) Neighbors(id string) []string {
	ports := n.ports[id]
	generic := n.generic[id]
	if len(generic) == 0 {
		return ports
	}
	out := make([]string, 0, len(ports)+len(generic))
	seen := make(map[string]struct{}, len(ports)+len(generic))
	for _, list := range [][]string{ports, generic} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// Element returns the indexed element metadata for id.
func (n *Network) Element(id string) (model.Element, bool) {
	el, ok := n.elements[id]
	return el, ok
}

// Systems returns the system names id belongs to.
func (n *Network) Systems(id string) []string {
	return n.systemsOf[id]
}

// SystemMembers returns the element ids belonging to the named system.
func (n *Network) SystemMembers(name string) []string {
	return n.systemMembers[name]
}

// SpaceOf returns the id of the space containing the element, if any.
func (n *Network) SpaceOf(id string) (string, bool) {
	s, ok := n.spaceOf[id]
	return s, ok
}

// IsTerminal reports whether id is a terminal, either by candidate list or
// by its type tag.
func (n *Network) IsTerminal(id string) bool {
	_, ok := n.terminal[id]
	return ok
}

func addNeighbor(m map[string][]string, key, value string) {
	if key == "" || value == "" || key == value {
		return
	}
	for _, existing := range m[key] {
		if existing == value {
			return
		}
	}
	m[key] = append(m[key], value)
}
