package traversal

import (
	"fmt"
	"strings"
	"testing"

	"github.com/OpenTwinHQ/opentwin/backend/pkg/model"
)

func chainExtract(length int, terminalAtEnd bool) *model.Extract {
	ex := &model.Extract{
		Elements: []model.Element{
			{ID: "AHU-1", Kind: "IfcUnitaryEquipment", Name: "AHU 01"},
		},
		Candidates: model.Candidates{Equipment: []string{"AHU-1"}},
	}
	prev := "AHU-1"
	for i := 1; i <= length; i++ {
		id := fmt.Sprintf("F%d", i)
		kind := "IfcDuctSegment"
		if terminalAtEnd && i == length {
			kind = "IfcAirTerminal"
		}
		ex.Elements = append(ex.Elements, model.Element{ID: id, Kind: kind})
		ex.PortConnections = append(ex.PortConnections, model.PortConnection{
			ElementID:    prev,
			ConnectedIDs: []string{id},
		})
		prev = id
	}
	return ex
}

func traverseIDs(terms []Terminal) []string {
	ids := make([]string, len(terms))
	for i, t := range terms {
		ids[i] = t.ID
	}
	return ids
}

func TestTraverseSimpleFeed(t *testing.T) {
	ex := &model.Extract{
		Elements: []model.Element{
			{ID: "E", Kind: "IfcUnitaryEquipment", Name: "AHU 01"},
			{ID: "T1", Kind: "IfcAirTerminal", Name: "Diffuser 1", Storey: "Level 1"},
			{ID: "S1", Kind: "IfcSpace", Name: "Office 101", Number: "101", Storey: "Level 1"},
		},
		PortConnections: []model.PortConnection{
			{ElementID: "E", ConnectedIDs: []string{"T1"}},
		},
		Relations: []model.Relation{
			{Type: model.RelationContainment, FromID: "T1", ToID: "S1"},
		},
		Candidates: model.Candidates{Equipment: []string{"E"}},
	}

	net := NewNetwork(ex)
	res := Traverse(net, "E", map[string]struct{}{"E": {}}, Options{})

	if got := traverseIDs(res.ServedTerminals); len(got) != 1 || got[0] != "T1" {
		t.Fatalf("ServedTerminals = %v, want [T1]", got)
	}
	if len(res.ServedSpaces) != 1 || res.ServedSpaces[0].ID != "S1" {
		t.Fatalf("ServedSpaces = %v, want [S1]", res.ServedSpaces)
	}
	if res.ServedSpaces[0].Number != "101" {
		t.Fatalf("space number = %q, want 101", res.ServedSpaces[0].Number)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
}

func TestTraverseMultiPortSeed(t *testing.T) {
	// Supply and exhaust branches both originate at the unit; both terminals
	// must be found even though they hang off different ports.
	ex := &model.Extract{
		Elements: []model.Element{
			{ID: "E", Kind: "IfcUnitaryEquipment"},
			{ID: "D1", Kind: "IfcDuctSegment"},
			{ID: "D2", Kind: "IfcDuctSegment"},
			{ID: "T1", Kind: "IfcAirTerminal"},
			{ID: "T2", Kind: "IfcAirTerminal"},
		},
		PortConnections: []model.PortConnection{
			{ElementID: "E", ConnectedIDs: []string{"D1", "D2"}},
			{ElementID: "D1", ConnectedIDs: []string{"T1"}},
			{ElementID: "D2", ConnectedIDs: []string{"T2"}},
		},
		Candidates: model.Candidates{Equipment: []string{"E"}},
	}

	net := NewNetwork(ex)
	res := Traverse(net, "E", map[string]struct{}{"E": {}}, Options{})

	got := traverseIDs(res.ServedTerminals)
	if len(got) != 2 || got[0] != "T1" || got[1] != "T2" {
		t.Fatalf("ServedTerminals = %v, want [T1 T2]", got)
	}
}

func TestTraverseCycleSafety(t *testing.T) {
	ex := &model.Extract{
		Elements: []model.Element{
			{ID: "E", Kind: "IfcUnitaryEquipment"},
			{ID: "F1", Kind: "IfcDuctFitting"},
			{ID: "F2", Kind: "IfcDuctFitting"},
			{ID: "F3", Kind: "IfcDuctFitting"},
		},
		PortConnections: []model.PortConnection{
			{ElementID: "E", ConnectedIDs: []string{"F1"}},
			{ElementID: "F1", ConnectedIDs: []string{"F2"}},
			{ElementID: "F2", ConnectedIDs: []string{"F3"}},
			{ElementID: "F3", ConnectedIDs: []string{"F1"}},
		},
		Candidates: model.Candidates{Equipment: []string{"E"}},
	}

	net := NewNetwork(ex)
	res := Traverse(net, "E", map[string]struct{}{"E": {}}, Options{})

	if len(res.ServedTerminals) != 0 {
		t.Fatalf("ServedTerminals = %v, want empty", res.ServedTerminals)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("cycle within bounds must not warn, got %v", res.Warnings)
	}
}

func TestTraverseDepthCutoff(t *testing.T) {
	// 40 fittings ending in a terminal, default MaxDepth 35: not found.
	ex := chainExtract(41, true)
	net := NewNetwork(ex)
	res := Traverse(net, "AHU-1", map[string]struct{}{"AHU-1": {}}, Options{MaxDepth: 35})

	if len(res.ServedTerminals) != 0 {
		t.Fatalf("terminal beyond depth bound must be dropped, got %v", traverseIDs(res.ServedTerminals))
	}
}

func TestTraverseWithinDepthFindsTerminal(t *testing.T) {
	ex := chainExtract(10, true)
	net := NewNetwork(ex)
	res := Traverse(net, "AHU-1", map[string]struct{}{"AHU-1": {}}, Options{})

	if got := traverseIDs(res.ServedTerminals); len(got) != 1 || got[0] != "F10" {
		t.Fatalf("ServedTerminals = %v, want [F10]", got)
	}
}

func TestTraverseNodeBudgetWarning(t *testing.T) {
	// A star of 50 fittings with MaxNodes 10: traversal halts early and warns.
	ex := &model.Extract{
		Elements: []model.Element{
			{ID: "E", Kind: "IfcUnitaryEquipment"},
		},
		Candidates: model.Candidates{Equipment: []string{"E"}},
	}
	connected := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("F%d", i)
		ex.Elements = append(ex.Elements, model.Element{ID: id, Kind: "IfcDuctFitting"})
		connected = append(connected, id)
	}
	ex.PortConnections = []model.PortConnection{{ElementID: "E", ConnectedIDs: connected}}

	net := NewNetwork(ex)
	res := Traverse(net, "E", map[string]struct{}{"E": {}}, Options{MaxNodes: 10})

	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "stopped after 10 nodes") {
		t.Fatalf("expected node budget warning, got %v", res.Warnings)
	}
}

func TestTraverseParallelPathsNoDuplicates(t *testing.T) {
	// Two fittings both feed T1; visited-on-enqueue must keep it a single hit.
	ex := &model.Extract{
		Elements: []model.Element{
			{ID: "E", Kind: "IfcUnitaryEquipment"},
			{ID: "F1", Kind: "IfcDuctFitting"},
			{ID: "F2", Kind: "IfcDuctFitting"},
			{ID: "T1", Kind: "IfcAirTerminal"},
		},
		PortConnections: []model.PortConnection{
			{ElementID: "E", ConnectedIDs: []string{"F1", "F2"}},
			{ElementID: "F1", ConnectedIDs: []string{"T1"}},
			{ElementID: "F2", ConnectedIDs: []string{"T1"}},
		},
		Candidates: model.Candidates{Equipment: []string{"E"}},
	}

	net := NewNetwork(ex)
	res := Traverse(net, "E", map[string]struct{}{"E": {}}, Options{})

	if got := traverseIDs(res.ServedTerminals); len(got) != 1 || got[0] != "T1" {
		t.Fatalf("ServedTerminals = %v, want exactly [T1]", got)
	}
}

func TestTraverseGenericConnectionFallback(t *testing.T) {
	// No port data at all; the generic connects-to relation still reaches T1.
	ex := &model.Extract{
		Elements: []model.Element{
			{ID: "E", Kind: "IfcUnitaryEquipment"},
			{ID: "T1", Kind: "IfcAirTerminal"},
		},
		Connections: []model.Connection{
			{FromID: "T1", ToID: "E"},
		},
		Candidates: model.Candidates{Equipment: []string{"E"}},
	}

	net := NewNetwork(ex)
	res := Traverse(net, "E", map[string]struct{}{"E": {}}, Options{})

	if got := traverseIDs(res.ServedTerminals); len(got) != 1 || got[0] != "T1" {
		t.Fatalf("ServedTerminals = %v, want [T1]", got)
	}
}

func TestTraverseOtherEquipmentNotExpanded(t *testing.T) {
	// A second unit sits between E and T1. It must not be traversed through.
	ex := &model.Extract{
		Elements: []model.Element{
			{ID: "E", Kind: "IfcUnitaryEquipment"},
			{ID: "E2", Kind: "IfcUnitaryEquipment"},
			{ID: "T1", Kind: "IfcAirTerminal"},
		},
		PortConnections: []model.PortConnection{
			{ElementID: "E", ConnectedIDs: []string{"E2"}},
			{ElementID: "E2", ConnectedIDs: []string{"T1"}},
		},
		Candidates: model.Candidates{Equipment: []string{"E", "E2"}},
	}

	net := NewNetwork(ex)
	res := Traverse(net, "E", map[string]struct{}{"E": {}, "E2": {}}, Options{})

	if len(res.ServedTerminals) != 0 {
		t.Fatalf("terminal behind another equipment unit must not be reached, got %v", traverseIDs(res.ServedTerminals))
	}
}

func TestSystemAssociatedTerminalsStaySeparate(t *testing.T) {
	ex := &model.Extract{
		Elements: []model.Element{
			{ID: "E", Kind: "IfcUnitaryEquipment"},
			{ID: "T1", Kind: "IfcAirTerminal"},
			{ID: "T2", Kind: "IfcAirTerminal"},
		},
		PortConnections: []model.PortConnection{
			{ElementID: "E", ConnectedIDs: []string{"T1"}},
		},
		Systems: []model.SystemMembership{
			{ElementID: "E", SystemID: "sys1", SystemName: "Supply Air 01"},
			{ElementID: "T1", SystemID: "sys1", SystemName: "Supply Air 01"},
			{ElementID: "T2", SystemID: "sys1", SystemName: "Supply Air 01"},
		},
		Candidates: model.Candidates{Equipment: []string{"E"}},
	}

	net := NewNetwork(ex)
	res := Traverse(net, "E", map[string]struct{}{"E": {}}, Options{})

	if got := traverseIDs(res.ServedTerminals); len(got) != 1 || got[0] != "T1" {
		t.Fatalf("ServedTerminals = %v, want [T1]", got)
	}
	if got := traverseIDs(res.SystemAssociatedTerminals); len(got) != 1 || got[0] != "T2" {
		t.Fatalf("SystemAssociatedTerminals = %v, want [T2]", got)
	}
}

func TestServedSpacesStoreyFallbackAndGrouping(t *testing.T) {
	terminals := []Terminal{
		{ID: "T1", SpaceID: "S1", SpaceName: "Office", Storey: "L1", Systems: []string{"Supply Air 01", "Return Air 01"}},
		{ID: "T2", SpaceID: "S1", Storey: "L1", Systems: []string{"Supply Air 01", "Exhaust Air 02"}},
		{ID: "T3", Storey: "L2", Systems: []string{"Fresh Air Intake"}},
		{ID: "T4"},
	}

	spaces := servedSpaces(terminals)
	if len(spaces) != 2 {
		t.Fatalf("got %d spaces, want 2 (terminal without space and storey dropped)", len(spaces))
	}

	office := spaces[0]
	if office.ID != "S1" {
		t.Fatalf("first space = %q, want S1", office.ID)
	}
	if got := office.SystemsByDirection[DirectionSupply]; len(got) != 1 || got[0] != "Supply Air 01" {
		t.Fatalf("supply systems = %v, want deduplicated [Supply Air 01]", got)
	}
	if got := office.SystemsByDirection[DirectionExhaust]; len(got) != 1 || got[0] != "Exhaust Air 02" {
		t.Fatalf("exhaust systems = %v", got)
	}

	storeyLevel := spaces[1]
	if storeyLevel.ID != "storey:L2" {
		t.Fatalf("fallback space id = %q, want storey:L2", storeyLevel.ID)
	}
	if got := storeyLevel.SystemsByDirection[DirectionFresh]; len(got) != 1 {
		t.Fatalf("fresh systems = %v", got)
	}
}

func TestClassifySystemDirection(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Supply Air 01", DirectionSupply},
		{"RETURN AIR", DirectionReturn},
		{"Exhaust riser", DirectionExhaust},
		{"Fresh air intake", DirectionFresh},
		{"Outside air", DirectionFresh},
		{"Chilled water", DirectionOther},
		{"", DirectionOther},
	}
	for _, tc := range tests {
		if got := ClassifySystemDirection(tc.in); got != tc.want {
			t.Fatalf("ClassifySystemDirection(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
