package tree

import (
	"github.com/sirupsen/logrus"

	"github.com/joe/datashuttle/pkg/names"
	"github.com/joe/datashuttle/pkg/remotefs"
)

// NextNumber suggests the next free sub or ses number by scanning both
// stores at the given bases and taking the maximum in use plus one. Gaps in
// the numbering are tolerated with a warning. Returns the suggestion and the
// current maximum.
func NextNumber(
	local, central remotefs.Searcher,
	localBase, centralBase string,
	prefix names.Prefix,
	log logrus.FieldLogger,
) (next, max int, err error) {
	pattern := prefix.WithDash() + "*"

	localDirs, _, err := local.ListDirsMatching(localBase, pattern)
	if err != nil {
		return 0, 0, err
	}

	centralDirs, _, err := central.ListDirsMatching(centralBase, pattern)
	if err != nil {
		return 0, 0, err
	}

	allDirs := append(localDirs, centralDirs...)
	WarnOnInconsistentLeadingZeros(allDirs, prefix, log)

	numbers := names.SortedUniqueInts(names.IntValues(allDirs, string(prefix)))
	if len(numbers) == 0 {
		return 0, 0, NoExistingFoldersError{Prefix: prefix}
	}

	if !names.Consecutive(numbers) && log != nil {
		log.WithField("prefix", string(prefix)).
			Warn("existing folder numbers are not consecutive, suggesting max + 1")
	}

	max = numbers[len(numbers)-1]

	return max + 1, max, nil
}

// WarnOnInconsistentLeadingZeros warns when the existing folder names pad
// their numbers to different widths, e.g. sub-001 next to sub-01. Mixed
// padding is tolerated everywhere (comparisons are numeric) but usually
// signals a naming mistake worth surfacing.
func WarnOnInconsistentLeadingZeros(existing []string, prefix names.Prefix, log logrus.FieldLogger) {
	if log == nil {
		return
	}

	widths := make(map[int]struct{})
	for _, name := range existing {
		value, ok := names.Value(name, string(prefix))
		if !ok {
			continue
		}
		widths[len(value)] = struct{}{}
	}

	if len(widths) > 1 {
		log.WithField("prefix", string(prefix)).
			Warn("existing folder numbers use inconsistent zero padding")
	}
}
