// Package taxonomy validates dot-separated hierarchical codes against the
// active label set and caches that set with a time-to-live.
package taxonomy

import "strings"

// MaxDepth is the deepest level tracked per entry (n1..n4).
const MaxDepth = 4

// Normalize trims whitespace and stray dots from a proposed code.
func Normalize(code string) string {
	return strings.Trim(strings.TrimSpace(code), ".")
}

// Depth returns the number of segments in code. The empty code has depth 0.
func Depth(code string) int {
	if code == "" {
		return 0
	}
	return strings.Count(code, ".") + 1
}

// Parent returns code without its last segment, or "" at the top level.
func Parent(code string) string {
	i := strings.LastIndexByte(code, '.')
	if i < 0 {
		return ""
	}
	return code[:i]
}

// Levels returns the cumulative prefixes of code for levels 1 through 4.
// Levels deeper than code are empty.
func Levels(code string) [MaxDepth]string {
	var out [MaxDepth]string
	if code == "" {
		return out
	}
	segs := strings.Split(code, ".")
	for i := 0; i < MaxDepth && i < len(segs); i++ {
		out[i] = strings.Join(segs[:i+1], ".")
	}
	return out
}

// Within reports whether code is scope or one of its descendants.
// Every code is within the empty scope.
func Within(code, scope string) bool {
	if scope == "" {
		return true
	}
	return code == scope || strings.HasPrefix(code, scope+".")
}

// IsCoarse reports whether code still needs refinement.
func IsCoarse(code string) bool {
	return Depth(code) <= 1
}

// IsRefinement reports whether replacing oldCode with newCode refines the entry.
func IsRefinement(oldCode, newCode string) bool {
	d := Depth(newCode)
	return d >= 2 && d > Depth(oldCode)
}
