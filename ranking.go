package rebind

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseRanking converts a raw ranking property to an int.
// Missing, out-of-range, floating-point and unparsable values rank as 0.
func ParseRanking(v any) int {
	switch r := v.(type) {
	case nil:
		return 0
	case int:
		return r
	case int8:
		return int(r)
	case int16:
		return int(r)
	case int32:
		return int(r)
	case int64:
		if r < math.MinInt || r > math.MaxInt {
			return 0
		}
		return int(r)
	case uint:
		return rankFromUint(uint64(r))
	case uint8:
		return int(r)
	case uint16:
		return int(r)
	case uint32:
		return rankFromUint(uint64(r))
	case uint64:
		return rankFromUint(r)
	case float32, float64:
		return 0
	case string:
		return rankFromString(r)
	case fmt.Stringer:
		return rankFromString(r.String())
	default:
		return rankFromString(fmt.Sprint(v))
	}
}

func rankFromUint(u uint64) int {
	if u > math.MaxInt {
		return 0
	}
	return int(u)
}

func rankFromString(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// compareReferences orders references ascending by ranking, then by implementation name.
func compareReferences(a, b ServiceReference) int {
	if c := cmp.Compare(ParseRanking(a.Property(RankingProperty)), ParseRanking(b.Property(RankingProperty))); c != 0 {
		return c
	}
	return strings.Compare(a.Implementation(), b.Implementation())
}
