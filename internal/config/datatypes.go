package config

import "fmt"

// UnknownDataTypeError reports a data-type key that is not one of the
// canonical data types.
type UnknownDataTypeError struct {
	Key string
}

func (err UnknownDataTypeError) Error() string {
	return fmt.Sprintf("unknown data type %q (valid: ephys, behav, funcimg, histology)", err.Key)
}

// Level is the tree level a data-type folder is fixed to.
type Level string

// The two tree levels.
const (
	LevelSub Level = "sub"
	LevelSes Level = "ses"
)

// DataTypeFolder describes one configurable data-type subfolder. Key and
// Level are fixed per data type; Name is user-customizable at run time and
// Used is derived live from the matching use_* flag.
type DataTypeFolder struct {
	Key   string
	Name  string
	Level Level
	Used  bool
}

// DataTypeKeys lists the canonical data-type keys in display order.
var DataTypeKeys = []string{"ephys", "behav", "funcimg", "histology"}

// DataTypeFolders derives the current data-type folder set from the config.
// It is rebuilt on every call, so edits to the use_* flags or display names
// take effect immediately on the next planning or transfer call.
func (c *Configs) DataTypeFolders() map[string]DataTypeFolder {
	folders := map[string]DataTypeFolder{
		"ephys":     {Key: "ephys", Level: LevelSes, Used: c.UseEphys},
		"behav":     {Key: "behav", Level: LevelSes, Used: c.UseBehav},
		"funcimg":   {Key: "funcimg", Level: LevelSes, Used: c.UseFuncimg},
		"histology": {Key: "histology", Level: LevelSub, Used: c.UseHistology},
	}

	for key, folder := range folders {
		folder.Name = key
		if custom, ok := c.dataTypeNames[key]; ok && custom != "" {
			folder.Name = custom
		}
		folders[key] = folder
	}

	return folders
}

// SetDataTypeName overrides the on-disk display name of one data type, e.g.
// renaming "behav" folders to "behaviour". An empty name restores the
// canonical key as the display name.
func (c *Configs) SetDataTypeName(key, name string) error {
	if _, ok := c.DataTypeFolders()[key]; !ok {
		return UnknownDataTypeError{Key: key}
	}

	if c.dataTypeNames == nil {
		c.dataTypeNames = make(map[string]string)
	}
	c.dataTypeNames[key] = name

	return nil
}
