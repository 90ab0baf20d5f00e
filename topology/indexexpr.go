package topology

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
)

// IndexExpr is a comma separated list of 0-based particle indices and
// inclusive ranges, e.g. "0, 4-7, 12".
type IndexExpr struct {
	Items []*IndexItem `parser:"( @@ ( \",\" @@ )* )?"`
}

type IndexItem struct {
	From  int         `parser:"@Int"`
	Range *IndexRange `parser:"@@?"`
}

type IndexRange struct {
	To int `parser:"\"-\" @Int"`
}

var parseIndexExpr = participle.MustBuild[IndexExpr]()

// ParseIndices parses an index expression into the set of indices it names.
// Every index must lie in [0, n).
func ParseIndices(expr string, n int) (map[int]struct{}, error) {
	set := make(map[int]struct{})
	if strings.TrimSpace(expr) == "" {
		return set, nil
	}

	x, err := parseIndexExpr.ParseString("", expr)
	if err != nil {
		return nil, err
	}

	for _, item := range x.Items {
		lo, hi := item.From, item.From
		if item.Range != nil {
			hi = item.Range.To
		}
		if hi < lo {
			return nil, fmt.Errorf("invalid range %d-%d", lo, hi)
		}
		if lo < 0 || hi >= n {
			return nil, fmt.Errorf("index out of range [0, %d): %d-%d", n, lo, hi)
		}
		for i := lo; i <= hi; i++ {
			set[i] = struct{}{}
		}
	}
	return set, nil
}
