package traversal

import (
	"testing"

	"github.com/OpenTwinHQ/opentwin/backend/pkg/model"
)

func discoveredIDs(els []model.Element) []string {
	ids := make([]string, len(els))
	for i, el := range els {
		ids[i] = el.ID
	}
	return ids
}

func TestDiscoverEquipmentByTypeTag(t *testing.T) {
	ex := &model.Extract{
		Elements: []model.Element{
			{ID: "a", Kind: "IfcUnitaryEquipment", Name: "AHU 01"},
			{ID: "b", Kind: "IfcDuctSegment", Name: "Duct"},
			{ID: "c", Kind: "IfcAirTerminal", Name: "Diffuser"},
		},
	}

	got := discoveredIDs(DiscoverEquipment(ex))
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("DiscoverEquipment = %v, want [a]", got)
	}
}

func TestDiscoverEquipmentByKeyword(t *testing.T) {
	tests := []struct {
		name string
		el   model.Element
		want bool
	}{
		{"NameMatch", model.Element{ID: "x", Kind: "IfcBuildingElementProxy", Name: "Rooftop AHU-3"}, true},
		{"SecondaryKindMatch", model.Element{ID: "x", Kind: "IfcBuildingElementProxy", SecondaryKind: "Heat Recovery Unit"}, true},
		{"TagMatch", model.Element{ID: "x", Kind: "IfcBuildingElementProxy", Tag: "HRU-02"}, true},
		{"PropertyValueMatch", model.Element{ID: "x", Kind: "IfcBuildingElementProxy", PropertySets: map[string]map[string]any{
			"Pset_Manufacturer": {"Description": "air handling unit, 2 fans"},
		}}, true},
		{"PropertyKeyMatch", model.Element{ID: "x", Kind: "IfcBuildingElementProxy", PropertySets: map[string]map[string]any{
			"Pset_Common": {"AHUReference": 12},
		}}, true},
		{"NoMatch", model.Element{ID: "x", Kind: "IfcBuildingElementProxy", Name: "Column"}, false},
		{"TerminalExcludedDespiteKeyword", model.Element{ID: "x", Kind: "IfcAirTerminal", Name: "AHU outlet"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ex := &model.Extract{Elements: []model.Element{tc.el}}
			got := DiscoverEquipment(ex)
			if (len(got) == 1) != tc.want {
				t.Fatalf("DiscoverEquipment(%v) found=%v, want %v", tc.el, len(got) == 1, tc.want)
			}
		})
	}
}

func TestDiscoverEquipmentDeterministicOrder(t *testing.T) {
	ex := &model.Extract{
		Elements: []model.Element{
			{ID: "2", Kind: "IfcFan", Name: "fan B"},
			{ID: "1", Kind: "IfcFan", Name: "Fan A"},
			{ID: "3", Kind: "IfcBoiler", Name: "fan a"},
		},
		Candidates: model.Candidates{Equipment: []string{"2", "2"}},
	}

	got := discoveredIDs(DiscoverEquipment(ex))
	// Sorted by lowercased name, then kind, then id; candidate dedup absorbed.
	want := []string{"3", "1", "2"}
	if len(got) != len(want) {
		t.Fatalf("DiscoverEquipment = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("DiscoverEquipment = %v, want %v", got, want)
		}
	}
}
