package traversal

import (
	"fmt"

	"github.com/OpenTwinHQ/opentwin/backend/pkg/logger"
)

// Default traversal bounds. The connection model can be malformed (missing
// reciprocal port links, cycles), so the walk is bounded in both depth and
// total dequeued nodes and is best-effort rather than fatal.
const (
	DefaultMaxDepth = 35
	DefaultMaxNodes = 3000
)

// Options bounds a single traversal.
type Options struct {
	MaxDepth int
	MaxNodes int
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MaxNodes <= 0 {
		o.MaxNodes = DefaultMaxNodes
	}
	return o
}

// Terminal is one discovered flow-delivery element.
type Terminal struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Kind        string   `json:"kind"`
	Tag         string   `json:"tag,omitempty"`
	SpaceID     string   `json:"space_id,omitempty"`
	SpaceName   string   `json:"space_name,omitempty"`
	SpaceNumber string   `json:"space_number,omitempty"`
	Storey      string   `json:"storey,omitempty"`
	Systems     []string `json:"systems,omitempty"`
}

// Space summarizes one space served by an equipment unit. SystemsByDirection
// groups the system names observed on the terminals serving this space by
// flow direction (supply, return, exhaust, fresh, other).
type Space struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name,omitempty"`
	Number             string              `json:"number,omitempty"`
	Storey             string              `json:"storey,omitempty"`
	SystemsByDirection map[string][]string `json:"systems_by_direction,omitempty"`
}

// Result is the traversal output for one equipment element.
//
// SystemAssociatedTerminals lists terminals that merely share a system
// membership with the equipment but were not physically reached. They are
// reported separately and never merged into ServedTerminals, preserving the
// distinction between "physically fed" and "nominally grouped".
type Result struct {
	EquipmentID               string     `json:"equipment_id"`
	ServedTerminals           []Terminal `json:"served_terminals"`
	SystemAssociatedTerminals []Terminal `json:"system_associated_terminals,omitempty"`
	ServedSpaces              []Space    `json:"served_spaces"`
	Warnings                  []string   `json:"warnings,omitempty"`
}

type frontierEntry struct {
	id    string
	depth int
}

// Traverse walks the physical connection network from one equipment element
// and collects every reachable terminal. The walk is breadth-first, seeded
// with all neighbors reachable from any port of the equipment so multi-duct
// units (supply, return and exhaust originating at one unit) are covered.
//
// A node is marked visited the moment it is enqueued, not when dequeued, so
// parallel port paths cannot enqueue it twice. Terminals are recorded and not
// expanded; other equipment is neither recorded nor expanded; everything else
// (fittings, duct segments) is expanded but not recorded.
func Traverse(net *Network, equipmentID string, equipment map[string]struct{}, opts Options) Result {
	opts = opts.withDefaults()
	res := Result{EquipmentID: equipmentID}

	visited := map[string]struct{}{equipmentID: {}}
	queue := make([]frontierEntry, 0, 16)
	for _, id := range net.Neighbors(equipmentID) {
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}
		queue = append(queue, frontierEntry{id: id, depth: 1})
	}

	dequeued := 0
	for len(queue) > 0 {
		if dequeued >= opts.MaxNodes {
			warning := fmt.Sprintf("connectivity traversal for %s stopped after %d nodes", equipmentID, opts.MaxNodes)
			res.Warnings = append(res.Warnings, warning)
			logger.Warn("[Traversal] Node budget exhausted", "equipment", equipmentID, "max_nodes", opts.MaxNodes)
			break
		}
		entry := queue[0]
		queue = queue[1:]
		dequeued++

		if net.IsTerminal(entry.id) {
			res.ServedTerminals = append(res.ServedTerminals, terminalRecord(net, entry.id))
			continue
		}
		if _, ok := equipment[entry.id]; ok && entry.id != equipmentID {
			continue
		}
		if entry.depth >= opts.MaxDepth {
			continue
		}
		for _, next := range net.Neighbors(entry.id) {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, frontierEntry{id: next, depth: entry.depth + 1})
		}
	}

	res.SystemAssociatedTerminals = systemAssociatedTerminals(net, equipmentID, res.ServedTerminals)
	res.ServedSpaces = servedSpaces(res.ServedTerminals)

	return res
}

func terminalRecord(net *Network, id string) Terminal {
	term := Terminal{ID: id, Systems: net.Systems(id)}
	if el, ok := net.Element(id); ok {
		term.Name = el.Name
		term.Kind = el.Kind
		term.Tag = el.Tag
		term.Storey = el.Storey
	}
	if spaceID, ok := net.SpaceOf(id); ok {
		term.SpaceID = spaceID
		if space, ok := net.Element(spaceID); ok {
			term.SpaceName = space.Name
			term.SpaceNumber = space.Number
			if term.Storey == "" {
				term.Storey = space.Storey
			}
		}
	}
	return term
}

// systemAssociatedTerminals finds terminals that share a system membership
// with the equipment but were not reached by the physical walk.
func systemAssociatedTerminals(net *Network, equipmentID string, served []Terminal) []Terminal {
	reached := make(map[string]struct{}, len(served))
	for _, t := range served {
		reached[t.ID] = struct{}{}
	}

	var out []Terminal
	seen := make(map[string]struct{})
	for _, system := range net.Systems(equipmentID) {
		for _, member := range net.SystemMembers(system) {
			if member == equipmentID || !net.IsTerminal(member) {
				continue
			}
			if _, ok := reached[member]; ok {
				continue
			}
			if _, ok := seen[member]; ok {
				continue
			}
			seen[member] = struct{}{}
			out = append(out, terminalRecord(net, member))
		}
	}
	return out
}

// servedSpaces derives space summaries from the discovered terminals, in
// first-seen order. Terminals without a containing space but with a known
// storey fall back to a synthetic storey-level space keyed by storey name.
func servedSpaces(terminals []Terminal) []Space {
	var order []string
	byKey := make(map[string]*Space)

	for _, t := range terminals {
		var key string
		var space Space
		switch {
		case t.SpaceID != "":
			key = t.SpaceID
			space = Space{ID: t.SpaceID, Name: t.SpaceName, Number: t.SpaceNumber, Storey: t.Storey}
		case t.Storey != "":
			key = "storey:" + t.Storey
			space = Space{ID: key, Name: t.Storey, Storey: t.Storey}
		default:
			continue
		}

		existing, ok := byKey[key]
		if !ok {
			space.SystemsByDirection = make(map[string][]string)
			byKey[key] = &space
			order = append(order, key)
			existing = &space
		}
		for _, system := range t.Systems {
			direction := ClassifySystemDirection(system)
			if !containsString(existing.SystemsByDirection[direction], system) {
				existing.SystemsByDirection[direction] = append(existing.SystemsByDirection[direction], system)
			}
		}
	}

	out := make([]Space, 0, len(order))
	for _, key := range order {
		s := byKey[key]
		if len(s.SystemsByDirection) == 0 {
			s.SystemsByDirection = nil
		}
		out = append(out, *s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
