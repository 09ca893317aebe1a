package remotefs

import (
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"
)

// Local searches folder trees on the local filesystem.
type Local struct {
	log logrus.FieldLogger
}

// NewLocal creates a local-filesystem searcher.
func NewLocal(log logrus.FieldLogger) *Local {
	return &Local{log: log}
}

// ListDirsMatching lists the folders and files directly under path whose
// names match pattern.
func (l *Local) ListDirsMatching(path, pattern string) ([]string, []string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			if l.log != nil {
				l.log.WithField("path", path).Info("search path does not exist, no matches")
			}
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read folder %s: %w", path, err)
	}

	var dirs, files []string
	for _, entry := range entries {
		matched, err := doublestar.Match(pattern, entry.Name())
		if err != nil {
			return nil, nil, fmt.Errorf("bad search pattern %q: %w", pattern, err)
		}
		if !matched {
			continue
		}

		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		} else {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(dirs)
	sort.Strings(files)

	return dirs, files, nil
}
