package tree

import (
	"fmt"

	"github.com/joe/datashuttle/pkg/names"
)

// DuplicateKeyError reports an attempt to create a folder whose sub or ses
// number is already taken by a folder with a different full name. Numbers
// are compared as integers, so differently padded forms of the same number
// still collide.
type DuplicateKeyError struct {
	Prefix       names.Prefix
	NewName      string
	ExistingName string
}

func (err DuplicateKeyError) Error() string {
	return fmt.Sprintf(
		"cannot make folders: a %s already exists with the same %s id as %s (possibly with leading zeros). The existing folder is %s",
		err.Prefix, err.Prefix, err.NewName, err.ExistingName,
	)
}

// NoExistingFoldersError reports that a next-number suggestion was requested
// but no numbered folder exists yet on either store.
type NoExistingFoldersError struct {
	Prefix names.Prefix
}

func (err NoExistingFoldersError) Error() string {
	return fmt.Sprintf("no %s folders were found in the project, so no next number can be suggested", err.Prefix)
}
