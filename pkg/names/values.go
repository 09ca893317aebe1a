package names

import (
	"sort"
	"strconv"
	"strings"
)

// Value returns the value of the first key-value pair matching key in a
// BIDS-style name, e.g. Value("sub-001_id-5", "sub") == "001". The second
// return is false when the name has no such key.
func Value(name, key string) (string, bool) {
	for _, segment := range strings.Split(name, "_") {
		rest, ok := strings.CutPrefix(segment, key+"-")
		if !ok {
			continue
		}

		return rest, true
	}

	return "", false
}

// IntValues extracts the numeric value of the given key from every name that
// carries it. Names without the key, or with a non-numeric value, are
// skipped. Leading zeros are stripped by the conversion, so "sub-003" and
// "sub-03" map to the same value.
func IntValues(namesList []string, key string) []int {
	values := make([]int, 0, len(namesList))

	for _, name := range namesList {
		raw, ok := Value(name, key)
		if !ok {
			continue
		}

		n, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}

		values = append(values, n)
	}

	return values
}

// SortedUniqueInts returns the distinct values in ascending order.
func SortedUniqueInts(values []int) []int {
	seen := make(map[int]struct{}, len(values))
	out := make([]int, 0, len(values))

	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	sort.Ints(out)

	return out
}

// Consecutive reports whether a sorted slice of integers increases by
// exactly one at every step.
func Consecutive(sorted []int) bool {
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1]+1 {
			return false
		}
	}

	return true
}

// NumLeadingZeros counts the leading zeros of the digit run in a value such
// as "001" or a prefixed name such as "sub-001". A value of all zeros counts
// len-1 leading zeros.
func NumLeadingZeros(value string) int {
	if i := strings.LastIndexByte(value, '-'); i >= 0 {
		value = value[i+1:]
	}

	trimmed := strings.TrimLeft(value, "0")
	if trimmed == "" && len(value) > 0 {
		return len(value) - 1
	}

	return len(value) - len(trimmed)
}
