package store

import (
	"errors"
	"reflect"
	"testing"

	"github.com/OpenTwinHQ/opentwin/backend/pkg/graph"
)

func TestChunkRange(t *testing.T) {
	var windows [][2]int
	err := ChunkRange(7, 3, func(start, end int) error {
		windows = append(windows, [2]int{start, end})
		return nil
	})
	if err != nil {
		t.Fatalf("ChunkRange: %v", err)
	}
	want := [][2]int{{0, 3}, {3, 6}, {6, 7}}
	if !reflect.DeepEqual(windows, want) {
		t.Fatalf("windows = %v, want %v", windows, want)
	}

	if err := ChunkRange(0, 3, func(int, int) error { t.Fatal("fn called for empty range"); return nil }); err != nil {
		t.Fatalf("ChunkRange(0): %v", err)
	}

	boom := errors.New("boom")
	err = ChunkRange(10, 4, func(start, end int) error {
		if start > 0 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		name                 string
		total, limit, offset int
		wantStart, wantEnd   int
	}{
		{"NoPaging", 10, 0, 0, 0, 10},
		{"FirstPage", 10, 3, 0, 0, 3},
		{"MidPage", 10, 3, 3, 3, 6},
		{"PartialLastPage", 10, 3, 9, 9, 10},
		{"OffsetBeyondTotal", 10, 3, 50, 10, 10},
		{"NegativeOffset", 10, 3, -1, 0, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end := PageBounds(tc.total, tc.limit, tc.offset)
			if start != tc.wantStart || end != tc.wantEnd {
				t.Fatalf("PageBounds(%d, %d, %d) = (%d, %d), want (%d, %d)",
					tc.total, tc.limit, tc.offset, start, end, tc.wantStart, tc.wantEnd)
			}
		})
	}
}

func TestOrderByInput(t *testing.T) {
	existing := map[string]struct{}{"a": {}, "c": {}}
	got := OrderByInput([]string{"c", "b", "a", "c"}, existing)
	if !reflect.DeepEqual(got, []string{"c", "a"}) {
		t.Fatalf("got %v, want [c a]", got)
	}
}

func TestMatchesFilters(t *testing.T) {
	node := graph.Node{
		ID: "w1", Kind: "IfcWall", Name: "North Wall", Storey: "Level 1",
		Materials: []string{"Gypsum", "Insulation"},
	}
	tests := []struct {
		name    string
		filters QueryFilters
		want    bool
	}{
		{"Empty", QueryFilters{}, true},
		{"KindMatch", QueryFilters{Kind: "IfcWall"}, true},
		{"KindMiss", QueryFilters{Kind: "IfcSpace"}, false},
		{"StoreyMatch", QueryFilters{Storey: "Level 1"}, true},
		{"StoreyMiss", QueryFilters{Storey: "Level 2"}, false},
		{"MaterialMatch", QueryFilters{Material: "Insulation"}, true},
		{"MaterialMiss", QueryFilters{Material: "Steel"}, false},
		{"NameCaseInsensitive", QueryFilters{NameContains: "north w"}, true},
		{"NameMiss", QueryFilters{NameContains: "south"}, false},
		{"Combined", QueryFilters{Kind: "IfcWall", Storey: "Level 1", NameContains: "WALL"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MatchesFilters(node, tc.filters); got != tc.want {
				t.Fatalf("MatchesFilters = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDedupeEdges(t *testing.T) {
	edges := []graph.Edge{
		{Source: "a", Target: "b", Type: "FEEDS"},
		{Source: "a", Target: "b", Type: "SERVES"},
		{Source: "a", Target: "b", Type: "FEEDS"},
	}
	got := DedupeEdges(edges)
	if len(got) != 2 {
		t.Fatalf("got %d edges, want 2", len(got))
	}
}

func TestSortNeighbors(t *testing.T) {
	nodes := []graph.Node{
		{ID: "3", Name: "beta", Kind: "IfcWall"},
		{ID: "1", Name: "Alpha", Kind: "IfcWall"},
		{ID: "2", Name: "alpha", Kind: "IfcSpace"},
	}
	SortNeighbors(nodes)
	got := []string{nodes[0].ID, nodes[1].ID, nodes[2].ID}
	// Lowercased name ties broken by lowercased kind.
	if !reflect.DeepEqual(got, []string{"2", "1", "3"}) {
		t.Fatalf("order = %v", got)
	}
}
