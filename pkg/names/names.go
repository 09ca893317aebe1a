// Package names parses and expands BIDS-style subject and session names.
//
// A name is a string of underscore-separated key-value segments, e.g.
// "sub-001_date-20230101". User input may carry tags (@TO@, @DATE@, @TIME@,
// @DATETIME@, @*@) that are expanded or substituted here. Expansion is pure
// string work: no filesystem access happens in this package.
package names

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
)

// Tags recognised during expansion.
const (
	RangeTag    = "@TO@"
	DateTag     = "@DATE@"
	TimeTag     = "@TIME@"
	DatetimeTag = "@DATETIME@"
	WildcardTag = "@*@"
)

// Prefix is the BIDS level a name belongs to.
type Prefix string

// The two supported prefixes.
const (
	Sub Prefix = "sub"
	Ses Prefix = "ses"
)

// WithDash returns the prefix as it appears in names, e.g. "sub-".
func (p Prefix) WithDash() string {
	return string(p) + "-"
}

// rangeExpr matches a full first segment of the form <prefix>-<digits>@TO@<digits>.
var rangeExpr = map[Prefix]*regexp.Regexp{
	Sub: regexp.MustCompile(`^sub-([0-9]+)@TO@([0-9]+)$`),
	Ses: regexp.MustCompile(`^ses-([0-9]+)@TO@([0-9]+)$`),
}

// Expander formats and expands subject / session names. The clock is
// consulted when substituting date / time tags, so tests can pin the output.
type Expander struct {
	Clock clockwork.Clock
}

// NewExpander returns an Expander using the wall clock.
func NewExpander() *Expander {
	return &Expander{Clock: clockwork.NewRealClock()}
}

// NormalizeInput coerces an untyped name argument (as arriving from the CLI
// or a config file) into a list of strings. A single string becomes a
// one-element list. Anything that is not a string or a collection of strings
// fails with InvalidInputTypeError.
func NormalizeInput(input any) ([]string, error) {
	switch v := input.(type) {
	case string:
		return []string{v}, nil
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, ele := range v {
			s, ok := ele.(string)
			if !ok {
				return nil, InvalidInputTypeError{Value: input}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, InvalidInputTypeError{Value: input}
	}
}

// Expand checks and formats a list of subject or session names:
// names are prefixed (e.g. "001" -> "sub-001"), checked for spaces and
// exact duplicates, then @TO@ ranges are expanded inline and date / time
// tags substituted. Output order is input order with ranges inlined.
func (e *Expander) Expand(names []string, prefix Prefix) ([]string, error) {
	for _, name := range names {
		if strings.Contains(name, " ") {
			return nil, InvalidNameFormatError{Name: name}
		}
	}

	prefixed := ensurePrefixes(names, prefix)

	seen := make(map[string]struct{}, len(prefixed))
	for _, name := range prefixed {
		if _, ok := seen[name]; ok {
			return nil, DuplicateNameError{Name: name}
		}
		seen[name] = struct{}{}
	}

	expanded, err := e.expandRanges(prefixed, prefix)
	if err != nil {
		return nil, err
	}

	return e.substituteDatetimeTags(expanded)
}

// ensurePrefixes prepends "<prefix>-" to every name that does not already
// start with it.
func ensurePrefixes(names []string, prefix Prefix) []string {
	withDash := prefix.WithDash()

	out := make([]string, len(names))
	for i, name := range names {
		if strings.HasPrefix(name, withDash) {
			out[i] = name
		} else {
			out[i] = withDash + name
		}
	}

	return out
}

// expandRanges replaces every name carrying an @TO@ tag with the contiguous
// run of names it denotes. The tag must sit in the first underscore-delimited
// segment as <prefix>-<digits>@TO@<digits>; any other shape fails with
// InvalidRangeFormatError. The run is zero-padded to the maximum leading-zero
// count of the two endpoints plus one, e.g. sub-01@TO@003 expands to
// sub-001, sub-002, sub-003. Text after the tag segment is re-attached
// verbatim to every generated name.
func (e *Expander) expandRanges(names []string, prefix Prefix) ([]string, error) {
	out := make([]string, 0, len(names))

	for _, name := range names {
		if !strings.Contains(name, RangeTag) {
			out = append(out, name)
			continue
		}

		firstSegment := name
		if i := strings.IndexByte(name, '_'); i >= 0 {
			firstSegment = name[:i]
		}

		match := rangeExpr[prefix].FindStringSubmatch(firstSegment)
		if match == nil {
			return nil, InvalidRangeFormatError{Name: name, Prefix: prefix}
		}

		left, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, InvalidRangeFormatError{Name: name, Prefix: prefix}
		}

		right, err := strconv.Atoi(match[2])
		if err != nil {
			return nil, InvalidRangeFormatError{Name: name, Prefix: prefix}
		}

		if left >= right {
			return nil, InvalidRangeError{Name: name, Left: left, Right: right}
		}

		pad := NumLeadingZeros(match[1])
		if z := NumLeadingZeros(match[2]); z > pad {
			pad = z
		}
		pad++

		suffix := name[len(firstSegment):]
		for n := left; n <= right; n++ {
			out = append(out, fmt.Sprintf("%s%0*d%s", prefix.WithDash(), pad, n, suffix))
		}
	}

	return out, nil
}

// substituteDatetimeTags replaces @DATETIME@, @DATE@ or @TIME@ (checked in
// that order of precedence) with key-value segments computed from the clock
// at call time. At most one tag is permitted per name. Underscores are
// inserted around the substitution point when missing, so "sub-001@DATE@"
// becomes "sub-001_date-<YYYYMMDD>".
func (e *Expander) substituteDatetimeTags(names []string) ([]string, error) {
	now := e.Clock.Now()
	dateValue := "date-" + now.Format("20060102")
	timeValue := "time-" + now.Format("150405")

	out := make([]string, len(names))
	for i, name := range names {
		tagCount := strings.Count(name, DatetimeTag) +
			strings.Count(name, DateTag) +
			strings.Count(name, TimeTag)

		if tagCount == 0 {
			out[i] = name
			continue
		}

		if tagCount > 1 {
			return nil, MultipleDateTagsError{Name: name}
		}

		switch {
		case strings.Contains(name, DatetimeTag):
			name = insertUnderscoresAround(name, DatetimeTag)
			out[i] = strings.Replace(name, DatetimeTag, dateValue+"_"+timeValue, 1)
		case strings.Contains(name, DateTag):
			name = insertUnderscoresAround(name, DateTag)
			out[i] = strings.Replace(name, DateTag, dateValue, 1)
		default:
			name = insertUnderscoresAround(name, TimeTag)
			out[i] = strings.Replace(name, TimeTag, timeValue, 1)
		}
	}

	return out, nil
}

// insertUnderscoresAround ensures the tag is underscore-delimited on both
// sides, inserting an underscore where one is missing. No insertion happens
// on a side where the tag already touches the string boundary.
func insertUnderscoresAround(name, tag string) string {
	idx := strings.Index(name, tag)

	if idx > 0 && name[idx-1] != '_' {
		name = name[:idx] + "_" + name[idx:]
		idx++
	}

	end := idx + len(tag)
	if end < len(name) && name[end] != '_' {
		name = name[:end] + "_" + name[end:]
	}

	return name
}

// CheckAlternatingDelimiters validates that every fully-formatted name uses
// alternating dashes and underscores to separate key-value pairs, starting
// with the dash after the sub / ses prefix. Names that fail would break
// key-value extraction downstream.
func CheckAlternatingDelimiters(names []string) error {
	for _, name := range names {
		var delims []byte
		for i := 0; i < len(name); i++ {
			if name[i] == '-' || name[i] == '_' {
				delims = append(delims, name[i])
			}
		}

		if len(delims) == 0 {
			continue
		}

		if delims[0] != '-' {
			return InvalidNameFormatError{
				Name:   name,
				Reason: "the first delimiter after 'sub' or 'ses' must be a dash, e.g. sub-001",
			}
		}

		for i := 1; i < len(delims); i++ {
			if delims[i] == delims[i-1] {
				return InvalidNameFormatError{
					Name:   name,
					Reason: "dashes and underscores must alternate (they separate key-value pairs)",
				}
			}
		}
	}

	return nil
}
