package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/OpenTwinHQ/opentwin/backend/pkg/model"
	"github.com/OpenTwinHQ/opentwin/backend/pkg/traversal"
)

// maxPropertyValueLen caps the stringified value stored on property nodes.
const maxPropertyValueLen = 500

var spatialKinds = map[string]struct{}{
	"IfcSite":           {},
	"IfcBuilding":       {},
	"IfcBuildingStorey": {},
	"IfcSpace":          {},
}

// Builder accumulates a deduplicated node/edge set for one job. Node inserts
// are idempotent by id (attribute overwrite), edge inserts are idempotent on
// the (source, target, type) key.
type Builder struct {
	nodeIndex map[string]int
	nodes     []Node
	edgeSeen  map[string]struct{}
	edges     []Edge
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		nodeIndex: make(map[string]int),
		edgeSeen:  make(map[string]struct{}),
	}
}

// AddNode inserts or overwrites the node with n.ID.
func (b *Builder) AddNode(n Node) {
	if n.ID == "" {
		return
	}
	if idx, ok := b.nodeIndex[n.ID]; ok {
		b.nodes[idx] = n
		return
	}
	b.nodeIndex[n.ID] = len(b.nodes)
	b.nodes = append(b.nodes, n)
}

// HasNode reports whether a node with the given id was inserted.
func (b *Builder) HasNode(id string) bool {
	_, ok := b.nodeIndex[id]
	return ok
}

// AddEdge inserts the edge unless the same (source, target, type) triple was
// inserted before.
func (b *Builder) AddEdge(source, target, edgeType string) {
	if source == "" || target == "" {
		return
	}
	e := Edge{Source: source, Target: target, Type: edgeType}
	key := e.Key()
	if _, ok := b.edgeSeen[key]; ok {
		return
	}
	b.edgeSeen[key] = struct{}{}
	b.edges = append(b.edges, e)
}

// Document returns the accumulated artifact.
func (b *Builder) Document() *Document {
	return &Document{Nodes: b.nodes, Edges: b.edges}
}

// Build assembles the complete node/edge set for one job from the parsed
// extract and the per-equipment traversal results. Rules are applied in a
// fixed order, each adding nodes and edges, never removing.
func Build(ex *model.Extract, results []traversal.Result) *Document {
	b := NewBuilder()

	// Rule 1: every element becomes a node.
	for _, el := range ex.Elements {
		b.AddNode(elementNode(el))
	}

	// Rules 1-3: relationship triples.
	for _, rel := range ex.Relations {
		switch rel.Type {
		case model.RelationAggregation:
			if b.isSpatial(rel.FromID) && b.isSpatial(rel.ToID) {
				b.AddEdge(rel.FromID, rel.ToID, EdgeDecomposes)
			}
		case model.RelationContainment:
			b.AddEdge(rel.FromID, rel.ToID, EdgeContainedIn)
		case model.RelationBoundary:
			b.AddEdge(rel.FromID, rel.ToID, EdgeBoundedBy)
		}
	}

	// Rule 4: material associations to synthetic material nodes.
	for _, el := range ex.Elements {
		for _, name := range model.ResolveMaterials(el.Materials) {
			matID := MaterialNodeID(name)
			if !b.HasNode(matID) {
				b.AddNode(Node{ID: matID, Label: KindMaterial, Kind: KindMaterial, Name: name})
			}
			b.AddEdge(el.ID, matID, EdgeHasMaterial)
		}
	}

	// Rule 5: property set entries to synthetic property leaves.
	for _, el := range ex.Elements {
		for _, pset := range sortedKeys(el.PropertySets) {
			props := el.PropertySets[pset]
			for _, prop := range sortedKeys(props) {
				value, valueType := stringifyValue(props[prop])
				propID := PropertyNodeID(el.ID, pset, prop)
				b.AddNode(Node{
					ID:        propID,
					Label:     KindProperty,
					Kind:      KindProperty,
					Name:      prop,
					PsetName:  pset,
					PropName:  prop,
					Value:     value,
					ValueType: valueType,
				})
				b.AddEdge(el.ID, propID, EdgeHasProperty)
			}
		}
	}

	// Rule 6: system memberships to synthetic system nodes.
	for _, m := range ex.Systems {
		name := m.SystemName
		if name == "" {
			name = m.SystemID
		}
		if name == "" || m.ElementID == "" {
			continue
		}
		sysID := SystemNodeID(name)
		if !b.HasNode(sysID) {
			b.AddNode(Node{ID: sysID, Label: Label(KindSystem), Kind: KindSystem, Name: name})
		}
		b.AddEdge(m.ElementID, sysID, EdgeInSystem)
	}

	// Rule 7: traversal results become FEEDS and SERVES edges. Endpoints the
	// extract never enumerated are synthesized from the traversal's fallback
	// metadata rather than dropped.
	for _, res := range results {
		for _, term := range res.ServedTerminals {
			if !b.HasNode(res.EquipmentID) {
				b.AddNode(minimalNode(res.EquipmentID, "", "IfcDistributionElement", ""))
			}
			if !b.HasNode(term.ID) {
				b.AddNode(minimalNode(term.ID, term.Name, term.Kind, term.Storey))
			}
			b.AddEdge(res.EquipmentID, term.ID, EdgeFeeds)
		}
		for _, space := range res.ServedSpaces {
			if !b.HasNode(space.ID) {
				b.AddNode(minimalNode(space.ID, space.Name, "IfcSpace", space.Storey))
			}
		}
		for _, term := range res.ServedTerminals {
			spaceID := term.SpaceID
			if spaceID == "" && term.Storey != "" {
				spaceID = "storey:" + term.Storey
			}
			if spaceID == "" {
				continue
			}
			b.AddEdge(term.ID, spaceID, EdgeServes)
		}
	}

	return b.Document()
}

func (b *Builder) isSpatial(id string) bool {
	idx, ok := b.nodeIndex[id]
	if !ok {
		return false
	}
	_, spatial := spatialKinds[b.nodes[idx].Kind]
	return spatial
}

func elementNode(el model.Element) Node {
	return Node{
		ID:        el.ID,
		Label:     Label(el.Kind),
		Kind:      el.Kind,
		Name:      el.Name,
		Storey:    el.Storey,
		Materials: model.ResolveMaterials(el.Materials),
	}
}

func minimalNode(id, name, kind, storey string) Node {
	if kind == "" {
		kind = "IfcDistributionElement"
	}
	return Node{ID: id, Label: Label(kind), Kind: kind, Name: name, Storey: storey}
}

// stringifyValue renders a property value for storage and classifies it.
func stringifyValue(v any) (string, string) {
	var s, vt string
	switch value := v.(type) {
	case nil:
		s, vt = "", ValueTypeString
	case bool:
		s, vt = fmt.Sprintf("%t", value), ValueTypeBool
	case int:
		s, vt = fmt.Sprintf("%d", value), ValueTypeInt
	case int32:
		s, vt = fmt.Sprintf("%d", value), ValueTypeInt
	case int64:
		s, vt = fmt.Sprintf("%d", value), ValueTypeInt
	case float32:
		s, vt = trimFloat(float64(value)), ValueTypeFloat
	case float64:
		// JSON numbers always decode as float64; render integral values
		// without the trailing ".0" and classify them as ints.
		if value == float64(int64(value)) {
			return fmt.Sprintf("%d", int64(value)), ValueTypeInt
		}
		s, vt = trimFloat(value), ValueTypeFloat
	case string:
		s, vt = value, ValueTypeString
	case []any:
		parts := make([]string, len(value))
		for i, item := range value {
			parts[i], _ = stringifyValue(item)
		}
		s, vt = "["+strings.Join(parts, ", ")+"]", ValueTypeList
	default:
		s, vt = fmt.Sprintf("%v", value), ValueTypeString
	}
	if len(s) > maxPropertyValueLen {
		s = s[:maxPropertyValueLen]
	}
	return s, vt
}

func trimFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", f), "0"), ".")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
