package pgx

import "testing"

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ahu", "ahu"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`c:\path`, `c:\\path`},
	}
	for _, tc := range tests {
		if got := escapeLike(tc.in); got != tc.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClampDepth(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 1}, {-3, 1}, {1, 1}, {3, 3}, {4, 4}, {9, 4},
	}
	for _, tc := range tests {
		if got := clampDepth(tc.in); got != tc.want {
			t.Errorf("clampDepth(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
