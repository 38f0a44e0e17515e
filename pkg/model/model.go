package model

// Package model defines the input records handed to the graph core by the
// model-parsing collaborator. The parser runs outside this service and uploads
// an Extract document per job; everything here is treated as opaque facts.

// Relation type tags as emitted by the parser.
const (
	RelationContainment = "containment"
	RelationAggregation = "aggregation"
	RelationBoundary    = "boundary"
)

// Element is one building element from the parsed model.
type Element struct {
	ID            string                    `json:"id"`
	Kind          string                    `json:"kind"`
	SecondaryKind string                    `json:"secondary_kind,omitempty"`
	Name          string                    `json:"name,omitempty"`
	Tag           string                    `json:"tag,omitempty"`
	Number        string                    `json:"number,omitempty"`
	Storey        string                    `json:"storey,omitempty"`
	Materials     []MaterialRecord          `json:"materials,omitempty"`
	PropertySets  map[string]map[string]any `json:"property_sets,omitempty"`
}

// Relation is a typed relationship triple between two elements.
//
// For containment, FromID is the contained element and ToID the containing
// spatial structure. For aggregation, FromID is the parent and ToID the child.
// For boundary, FromID is the space and ToID the bounding element.
type Relation struct {
	Type   string `json:"type"`
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
}

// SystemMembership assigns an element to a distribution system.
type SystemMembership struct {
	ElementID  string `json:"element_id"`
	SystemID   string `json:"system_id"`
	SystemName string `json:"system_name,omitempty"`
}

// PortConnection lists the elements reachable from any physical port of one
// element. The parser already folds both connection directions into
// ConnectedIDs.
type PortConnection struct {
	ElementID    string   `json:"element_id"`
	ConnectedIDs []string `json:"connected_ids"`
}

// Connection is a generic element-level connects-to relation, the fallback
// the parser emits when port geometry is missing.
type Connection struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
}

// Candidates carries the parser's pre-classified equipment and terminal
// element ids. Discovery may extend the equipment list by type tag and
// keyword scan; terminals are taken as-is.
type Candidates struct {
	Equipment []string `json:"equipment"`
	Terminals []string `json:"terminals"`
}

// Extract is the complete fact set for one job, serialized as JSON by the
// parser and downloaded by the build worker.
type Extract struct {
	Elements        []Element          `json:"elements"`
	Relations       []Relation         `json:"relations"`
	Systems         []SystemMembership `json:"systems"`
	PortConnections []PortConnection   `json:"port_connections"`
	Connections     []Connection       `json:"connections"`
	Candidates      Candidates         `json:"candidates"`
}

// ElementByID returns the element with the given id, if present.
func (e *Extract) ElementByID(id string) (Element, bool) {
	for i := range e.Elements {
		if e.Elements[i].ID == id {
			return e.Elements[i], true
		}
	}
	return Element{}, false
}
