package model

// Material constructs form a closed set of variants mirroring the model
// formats a material association can take. MaterialRecord is the wire shape;
// Construct converts it to the matching variant so consumers can dispatch
// with a type switch instead of inspecting the record fields.

const (
	MaterialKindSingle         = "material"
	MaterialKindLayerSet       = "layer_set"
	MaterialKindConstituentSet = "constituent_set"
	MaterialKindList           = "list"
	MaterialKindProfileSet     = "profile_set"
)

// MaterialRecord is the serialized form of a material construct. Kind selects
// the variant; Name carries the single-material case and Names the set cases.
type MaterialRecord struct {
	Kind  string   `json:"kind"`
	Name  string   `json:"name,omitempty"`
	Names []string `json:"names,omitempty"`
}

// MaterialConstruct is the closed union of material association variants.
type MaterialConstruct interface {
	isMaterialConstruct()
}

// Material is a direct single-material association.
type Material struct {
	Name string
}

// LayeredMaterialSet is a layered build-up, outermost layer first.
type LayeredMaterialSet struct {
	Layers []string
}

// ConstituentSet is an unordered set of named constituents.
type ConstituentSet struct {
	Constituents []string
}

// MaterialList is a plain ordered list of material names.
type MaterialList struct {
	Materials []string
}

// ProfileSet associates materials through extrusion profiles.
type ProfileSet struct {
	Profiles []string
}

func (Material) isMaterialConstruct()           {}
func (LayeredMaterialSet) isMaterialConstruct() {}
func (ConstituentSet) isMaterialConstruct()     {}
func (MaterialList) isMaterialConstruct()       {}
func (ProfileSet) isMaterialConstruct()         {}

// Construct returns the variant the record encodes, or nil for an unknown
// kind. Unknown kinds are skipped by callers rather than failing the build.
func (r MaterialRecord) Construct() MaterialConstruct {
	switch r.Kind {
	case MaterialKindSingle:
		return Material{Name: r.Name}
	case MaterialKindLayerSet:
		return LayeredMaterialSet{Layers: r.Names}
	case MaterialKindConstituentSet:
		return ConstituentSet{Constituents: r.Names}
	case MaterialKindList:
		return MaterialList{Materials: r.Names}
	case MaterialKindProfileSet:
		return ProfileSet{Profiles: r.Names}
	default:
		return nil
	}
}

// MaterialNames resolves a construct to its ordered-unique material names.
func MaterialNames(c MaterialConstruct) []string {
	switch v := c.(type) {
	case Material:
		return uniqueNonEmpty([]string{v.Name})
	case LayeredMaterialSet:
		return uniqueNonEmpty(v.Layers)
	case ConstituentSet:
		return uniqueNonEmpty(v.Constituents)
	case MaterialList:
		return uniqueNonEmpty(v.Materials)
	case ProfileSet:
		return uniqueNonEmpty(v.Profiles)
	default:
		return nil
	}
}

// ResolveMaterials flattens an element's material records into the
// ordered-unique name list used for graph nodes and edges.
func ResolveMaterials(records []MaterialRecord) []string {
	var names []string
	for _, rec := range records {
		c := rec.Construct()
		if c == nil {
			continue
		}
		names = append(names, MaterialNames(c)...)
	}
	return uniqueNonEmpty(names)
}

func uniqueNonEmpty(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
