package tree

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/joe/datashuttle/internal/config"
	"github.com/joe/datashuttle/pkg/names"
	"github.com/joe/datashuttle/pkg/remotefs"
)

// Creator validates names and materializes project folders on the local
// store.
type Creator struct {
	Cfg      *config.Configs
	Local    remotefs.Searcher
	Expander *names.Expander
	Log      logrus.FieldLogger
}

// CreateFolders expands the subject and session names, checks them against
// the existing local tree, and creates the planned folders. Recreating an
// existing folder is a no-op, so repeated calls with the same names succeed.
// Returns the full paths created or confirmed.
func (c *Creator) CreateFolders(topLevelFolder string, subs, sess []string, sel Selector) ([]string, error) {
	expandedSubs, err := c.Expander.Expand(subs, names.Sub)
	if err != nil {
		return nil, err
	}

	var expandedSess []string
	if len(sess) > 0 {
		expandedSess, err = c.Expander.Expand(sess, names.Ses)
		if err != nil {
			return nil, err
		}
	}

	if err := names.CheckAlternatingDelimiters(expandedSubs); err != nil {
		return nil, err
	}
	if err := names.CheckAlternatingDelimiters(expandedSess); err != nil {
		return nil, err
	}

	base := c.Cfg.LocalBase(topLevelFolder)

	if err := c.checkDuplicates(base, expandedSubs, names.Sub); err != nil {
		return nil, err
	}

	// Session numbers only need to be unique within their subject.
	for _, sub := range expandedSubs {
		if err := c.checkDuplicates(filepath.Join(base, sub), expandedSess, names.Ses); err != nil {
			return nil, err
		}
	}

	planned, err := Plan(c.Cfg, expandedSubs, expandedSess, sel)
	if err != nil {
		return nil, err
	}

	created := make([]string, 0, len(planned))
	for _, folder := range planned {
		full := filepath.Join(base, filepath.FromSlash(folder.RelPath))

		if err := os.MkdirAll(full, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create folder %s: %w", full, err)
		}

		if c.Log != nil {
			c.Log.WithField("path", full).Info("made folder")
		}
		created = append(created, full)
	}

	return created, nil
}

// checkDuplicates rejects any new name whose number is already taken by a
// differently named folder under searchBase. The comparison is on the
// extracted integer, so sub-3 collides with an existing sub-003.
func (c *Creator) checkDuplicates(searchBase string, newNames []string, prefix names.Prefix) error {
	if len(newNames) == 0 {
		return nil
	}

	existing, _, err := c.Local.ListDirsMatching(searchBase, prefix.WithDash()+"*")
	if err != nil {
		return err
	}

	WarnOnInconsistentLeadingZeros(existing, prefix, c.Log)

	taken := make(map[int]string, len(existing))
	for _, name := range existing {
		value, ok := names.Value(name, string(prefix))
		if !ok {
			continue
		}
		number, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		taken[number] = name
	}

	for _, name := range newNames {
		value, ok := names.Value(name, string(prefix))
		if !ok {
			continue
		}
		number, err := strconv.Atoi(value)
		if err != nil {
			continue
		}

		if existingName, ok := taken[number]; ok && existingName != name {
			return DuplicateKeyError{Prefix: prefix, NewName: name, ExistingName: existingName}
		}
	}

	return nil
}
