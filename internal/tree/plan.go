// Package tree builds and transfers the project folder hierarchy: numbered
// subject and session folders under a top-level folder, with enabled
// data-type folders at their fixed levels.
package tree

import (
	"path"
	"sort"

	"github.com/joe/datashuttle/internal/config"
	"github.com/joe/datashuttle/internal/logging"
)

// Selector names the data types an operation covers: all enabled types, an
// explicit subset, or none.
type Selector struct {
	All  bool
	Keys []string
}

// SelectAll covers every enabled data type.
var SelectAll = Selector{All: true}

// ParseSelector interprets CLI-style data-type values. "all" anywhere in the
// list selects every enabled type; "none" (or an empty list) selects no data
// types, so only the subject and session container folders are touched.
func ParseSelector(values []string) Selector {
	keys := make([]string, 0, len(values))
	for _, value := range values {
		if value == "all" {
			return SelectAll
		}
		if value == "none" {
			continue
		}
		keys = append(keys, value)
	}

	return Selector{Keys: keys}
}

// resolve maps the selector to concrete data-type folders, honoring the
// use_* flags. Unknown keys reject the whole selection: nothing is created
// or transferred on a partially valid request.
func (s Selector) resolve(cfg *config.Configs) ([]config.DataTypeFolder, error) {
	available := cfg.DataTypeFolders()

	keys := s.Keys
	if s.All {
		keys = config.DataTypeKeys
	}

	var folders []config.DataTypeFolder
	for _, key := range keys {
		folder, ok := available[key]
		if !ok {
			return nil, config.UnknownDataTypeError{Key: key}
		}
		if !folder.Used {
			continue
		}
		folders = append(folders, folder)
	}

	sort.Slice(folders, func(i, j int) bool { return folders[i].Key < folders[j].Key })

	return folders, nil
}

// PlannedFolder is one folder to create, relative to the top-level folder.
type PlannedFolder struct {
	RelPath  string
	DataType string
}

// Plan lays out the folders for the given subjects, sessions and data types.
// Subject and session names must already be expanded and validated. Every
// data-type folder carries a meta subfolder marking it as tool-managed.
func Plan(cfg *config.Configs, subs, sess []string, sel Selector) ([]PlannedFolder, error) {
	dataTypes, err := sel.resolve(cfg)
	if err != nil {
		return nil, err
	}

	var planned []PlannedFolder

	addDataType := func(base string, folder config.DataTypeFolder) {
		dtypePath := path.Join(base, folder.Name)
		planned = append(planned,
			PlannedFolder{RelPath: dtypePath, DataType: folder.Key},
			PlannedFolder{RelPath: path.Join(dtypePath, logging.MetaFolderName), DataType: folder.Key},
		)
	}

	for _, sub := range subs {
		planned = append(planned, PlannedFolder{RelPath: sub})

		for _, folder := range dataTypes {
			if folder.Level == config.LevelSub {
				addDataType(sub, folder)
			}
		}

		for _, ses := range sess {
			planned = append(planned, PlannedFolder{RelPath: path.Join(sub, ses)})

			for _, folder := range dataTypes {
				if folder.Level == config.LevelSes {
					addDataType(path.Join(sub, ses), folder)
				}
			}
		}
	}

	return planned, nil
}
