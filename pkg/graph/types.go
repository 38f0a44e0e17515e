package graph

import "strings"

// Edge types of the relationship graph. Two nodes may be joined by edges of
// different types simultaneously, never by two edges of the same type and
// direction.
const (
	EdgeContainedIn = "CONTAINED_IN"
	EdgeDecomposes  = "DECOMPOSES"
	EdgeBoundedBy   = "BOUNDED_BY"
	EdgeHasMaterial = "HAS_MATERIAL"
	EdgeHasProperty = "HAS_PROPERTY"
	EdgeInSystem    = "IN_SYSTEM"
	EdgeFeeds       = "FEEDS"
	EdgeServes      = "SERVES"
)

// Kinds reserved for synthetic nodes.
const (
	KindMaterial = "Material"
	KindSystem   = "IfcSystem"
	KindProperty = "Property"
)

// Value type tags for property nodes.
const (
	ValueTypeBool   = "bool"
	ValueTypeInt    = "int"
	ValueTypeFloat  = "float"
	ValueTypeList   = "list"
	ValueTypeString = "string"
)

// Node is one graph node: a model element, or a synthetic material, system or
// property leaf. IDs are unique within a job's graph namespace.
type Node struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Kind      string   `json:"kind"`
	Name      string   `json:"name,omitempty"`
	Storey    string   `json:"storey,omitempty"`
	Materials []string `json:"materials,omitempty"`

	// Property leaf attributes, set only when Kind == KindProperty.
	PsetName  string `json:"psetName,omitempty"`
	PropName  string `json:"propName,omitempty"`
	Value     string `json:"value,omitempty"`
	ValueType string `json:"valueType,omitempty"`
}

// Edge is a directed typed edge, unique per (Source, Target, Type).
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Key returns the edge's deduplication key.
func (e Edge) Key() string {
	return e.Source + "|" + e.Type + "|" + e.Target
}

// Document is the portable graph artifact exchanged between the builder and
// the store backends.
type Document struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Label derives the display category from a type tag by stripping the model
// domain prefix.
func Label(kind string) string {
	return strings.TrimPrefix(kind, "Ifc")
}

// Synthetic node id derivation.
func MaterialNodeID(name string) string {
	return "mat:" + name
}

func SystemNodeID(name string) string {
	return "sys:" + name
}

func PropertyNodeID(parentID, pset, prop string) string {
	return "prop:" + parentID + ":" + pset + ":" + prop
}
