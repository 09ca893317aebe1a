package tree

import (
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/joe/datashuttle/internal/config"
	"github.com/joe/datashuttle/internal/rclone"
	"github.com/joe/datashuttle/pkg/names"
	"github.com/joe/datashuttle/pkg/remotefs"
)

// Transferrer moves project folders between the local and central stores via
// rclone. Names are resolved against the source store, so "all" and
// wildcard names match what actually exists on the side being read.
type Transferrer struct {
	Cfg      *config.Configs
	Runner   rclone.Runner
	Expander *names.Expander
	Log      logrus.FieldLogger
}

func (t *Transferrer) expander() *names.Expander {
	if t.Expander != nil {
		return t.Expander
	}

	return names.NewExpander()
}

// Upload transfers the selected folders from the local to the central store.
func (t *Transferrer) Upload(
	local remotefs.Searcher, topLevelFolder string, subs, sess []string, sel Selector, dryRun bool,
) error {
	return t.transfer(true, local, topLevelFolder, subs, sess, sel, dryRun)
}

// Download transfers the selected folders from the central to the local
// store.
func (t *Transferrer) Download(
	central remotefs.Searcher, topLevelFolder string, subs, sess []string, sel Selector, dryRun bool,
) error {
	return t.transfer(false, central, topLevelFolder, subs, sess, sel, dryRun)
}

func (t *Transferrer) transfer(
	upload bool, source remotefs.Searcher, topLevelFolder string, subs, sess []string, sel Selector, dryRun bool,
) error {
	sourceBase := t.Cfg.CentralBase(topLevelFolder)
	if upload {
		sourceBase = t.Cfg.LocalBase(topLevelFolder)
	}

	includes, err := t.buildIncludes(source, sourceBase, subs, sess, sel)
	if err != nil {
		return err
	}

	if len(includes) == 0 {
		if t.Log != nil {
			t.Log.WithField("top_level_folder", topLevelFolder).Info("nothing to transfer")
		}
		return nil
	}

	ssh := t.Cfg.ConnectionMethod == config.ConnectionSSH

	opts := rclone.CopyOptions{
		Includes:          includes,
		OverwriteOldFiles: t.Cfg.OverwriteOldFiles,
		Verbosity:         t.Cfg.TransferVerbosity,
		ShowProgress:      t.Cfg.ShowTransferProgress,
		DryRun:            dryRun,
	}
	if upload {
		opts.Source = t.Cfg.LocalBase(topLevelFolder)
		opts.Dest = rclone.Target(ssh, t.Cfg.CentralBase(topLevelFolder))
	} else {
		opts.Source = rclone.Target(ssh, t.Cfg.CentralBase(topLevelFolder))
		opts.Dest = t.Cfg.LocalBase(topLevelFolder)
	}

	if t.Log != nil {
		t.Log.WithFields(logrus.Fields{
			"source":   opts.Source,
			"dest":     opts.Dest,
			"includes": len(includes),
			"dry_run":  dryRun,
		}).Info("starting transfer")
	}

	return rclone.Copy(t.Runner, opts)
}

// buildIncludes resolves the subject and session names on the source store
// and renders one rclone include pattern per data-type folder.
func (t *Transferrer) buildIncludes(
	source remotefs.Searcher, sourceBase string, subs, sess []string, sel Selector,
) ([]string, error) {
	dataTypes, err := sel.resolve(t.Cfg)
	if err != nil {
		return nil, err
	}

	resolvedSubs, err := t.resolveNames(source, sourceBase, names.Sub, subs)
	if err != nil {
		return nil, err
	}

	var includes []string
	seen := make(map[string]struct{})
	add := func(pattern string) {
		if _, ok := seen[pattern]; ok {
			return
		}
		seen[pattern] = struct{}{}
		includes = append(includes, pattern)
	}

	for _, sub := range resolvedSubs {
		for _, folder := range dataTypes {
			if folder.Level == config.LevelSub {
				add(path.Join(sub, folder.Name) + "/**")
			}
		}

		// Sessions resolve per subject: "all" under one subject must not
		// pull in another subject's session names.
		resolvedSess, err := t.resolveNames(source, path.Join(sourceBase, sub), names.Ses, sess)
		if err != nil {
			return nil, err
		}

		for _, ses := range resolvedSess {
			for _, folder := range dataTypes {
				if folder.Level == config.LevelSes {
					add(path.Join(sub, ses, folder.Name) + "/**")
				}
			}
		}
	}

	return includes, nil
}

// resolveNames maps user-supplied names to concrete folder names on the
// source store. "all" matches every prefixed folder; names carrying the
// @*@ tag are glob-searched; anything else goes through the name expander,
// so ranges and date tags work in transfer calls too. Order is kept and
// duplicates are dropped.
func (t *Transferrer) resolveNames(
	source remotefs.Searcher, base string, prefix names.Prefix, values []string,
) ([]string, error) {
	var resolved []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		resolved = append(resolved, name)
	}

	for _, value := range values {
		switch {
		case value == "all":
			dirs, _, err := source.ListDirsMatching(base, prefix.WithDash()+"*")
			if err != nil {
				return nil, err
			}
			for _, dir := range dirs {
				add(dir)
			}
		case strings.Contains(value, names.WildcardTag):
			pattern := strings.ReplaceAll(value, names.WildcardTag, "*")
			dirs, _, err := source.ListDirsMatching(base, pattern)
			if err != nil {
				return nil, err
			}
			for _, dir := range dirs {
				add(dir)
			}
		default:
			expanded, err := t.expander().Expand([]string{value}, prefix)
			if err != nil {
				return nil, err
			}
			if err := names.CheckAlternatingDelimiters(expanded); err != nil {
				return nil, err
			}
			for _, name := range expanded {
				add(name)
			}
		}
	}

	return resolved, nil
}
