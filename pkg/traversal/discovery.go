package traversal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/OpenTwinHQ/opentwin/backend/pkg/model"
)

// Fixed type sets for terminal and equipment classification. Terminal types
// always win: an element matching both sets is a terminal, never equipment.
var terminalKinds = map[string]struct{}{
	"IfcAirTerminal":    {},
	"IfcAirTerminalBox": {},
}

var equipmentKinds = map[string]struct{}{
	"IfcUnitaryEquipment":      {},
	"IfcAirToAirHeatRecovery":  {},
	"IfcFan":                   {},
	"IfcPump":                  {},
	"IfcBoiler":                {},
	"IfcChiller":               {},
	"IfcCoil":                  {},
	"IfcCompressor":            {},
	"IfcEvaporativeCooler":     {},
	"IfcElectricGenerator":     {},
	"IfcCooledBeam":            {},
	"IfcCondenser":             {},
	"IfcHeatExchanger":         {},
	"IfcEnergyConversionDevice": {},
}

// hvacKeywords is the keyword vocabulary for the second discovery tier,
// matched as lowercase substrings across name, secondary type, tag and
// property set key/value strings.
var hvacKeywords = []string{
	"ahu",
	"hru",
	"rtu",
	"erv",
	"hrv",
	"heat recovery",
	"air handling",
	"air handler",
	"rooftop unit",
	"ventilation unit",
	"makeup air",
}

func isTerminalKind(kind string) bool {
	_, ok := terminalKinds[kind]
	return ok
}

func isEquipmentKind(kind string) bool {
	_, ok := equipmentKinds[kind]
	return ok
}

// DiscoverEquipment finds the traversal seeds for an extract. Discovery is
// two-tier: elements with an equipment-indicating type tag, then elements
// whose name, secondary type, tag or property strings contain an
// HVAC-indicating keyword. Terminal-typed elements are excluded from both
// tiers. The parser's own equipment candidates are always included.
//
// The returned list is deduplicated by id and sorted by
// (lowercased name, kind, id) for deterministic build output.
func DiscoverEquipment(ex *model.Extract) []model.Element {
	byID := make(map[string]model.Element, len(ex.Elements))
	for _, el := range ex.Elements {
		byID[el.ID] = el
	}

	picked := make(map[string]struct{})
	var out []model.Element

	add := func(el model.Element) {
		if isTerminalKind(el.Kind) {
			return
		}
		if _, ok := picked[el.ID]; ok {
			return
		}
		picked[el.ID] = struct{}{}
		out = append(out, el)
	}

	for _, id := range ex.Candidates.Equipment {
		if el, ok := byID[id]; ok {
			add(el)
		}
	}

	for _, el := range ex.Elements {
		if isEquipmentKind(el.Kind) {
			add(el)
		}
	}

	for _, el := range ex.Elements {
		if matchesHVACKeyword(el) {
			add(el)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		ni, nj := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if ni != nj {
			return ni < nj
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})

	return out
}

func matchesHVACKeyword(el model.Element) bool {
	haystacks := []string{el.Name, el.SecondaryKind, el.Tag}
	for pset, props := range el.PropertySets {
		haystacks = append(haystacks, pset)
		for key, value := range props {
			haystacks = append(haystacks, key, fmt.Sprintf("%v", value))
		}
	}
	for _, h := range haystacks {
		if h == "" {
			continue
		}
		lower := strings.ToLower(h)
		for _, kw := range hvacKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// EquipmentIDSet returns the discovered equipment as an id set for the
// traversal's expansion cutoff.
func EquipmentIDSet(equipment []model.Element) map[string]struct{} {
	set := make(map[string]struct{}, len(equipment))
	for _, el := range equipment {
		set[el.ID] = struct{}{}
	}
	return set
}
