package pattern

import (
	"fmt"

	"github.com/gobwas/glob"
)

// SelectByTag returns the indices of testcases with a tag or feature matching
// the glob expression, in library order.
func SelectByTag(testcases []Testcase, expr string) ([]int, error) {
	g, err := glob.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid tag pattern %q: %w", expr, err)
	}

	var idx []int
	for i, tc := range testcases {
		if matchAny(g, tc.Tags) || matchAny(g, tc.Features) {
			idx = append(idx, i)
		}
	}
	return idx, nil
}

func matchAny(g glob.Glob, values []string) bool {
	for _, v := range values {
		if g.Match(v) {
			return true
		}
	}
	return false
}
