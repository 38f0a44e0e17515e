package traversal

import "strings"

// Flow direction buckets for system name classification.
const (
	DirectionSupply  = "supply"
	DirectionReturn  = "return"
	DirectionExhaust = "exhaust"
	DirectionFresh   = "fresh"
	DirectionOther   = "other"
)

// ClassifySystemDirection buckets a system name by keyword. The first match
// wins in the order supply, return, exhaust, fresh/outside.
func ClassifySystemDirection(systemName string) string {
	lower := strings.ToLower(systemName)
	switch {
	case strings.Contains(lower, "supply"):
		return DirectionSupply
	case strings.Contains(lower, "return"):
		return DirectionReturn
	case strings.Contains(lower, "exhaust"):
		return DirectionExhaust
	case strings.Contains(lower, "fresh"), strings.Contains(lower, "outside"):
		return DirectionFresh
	default:
		return DirectionOther
	}
}
