// Package config holds the persisted project configuration: the local and
// central roots, the connection method, transfer options and the per-data-type
// enablement flags. The key set is canonical: a config with missing, unknown
// or ill-typed entries is rejected as a whole.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Connection methods for reaching the central store.
const (
	ConnectionLocalFilesystem = "local_filesystem"
	ConnectionSSH             = "ssh"
)

// TopLevelFolders are the fixed root categories under which every
// subject/session tree lives. Exactly one is "current" at any time
// (see Settings.TopLevelFolder).
var TopLevelFolders = []string{"rawdata", "derivatives"}

// DefaultTopLevelFolder is the selection used for fresh projects.
const DefaultTopLevelFolder = "rawdata"

// IsTopLevelFolder reports whether name is one of the canonical top-level
// folders.
func IsTopLevelFolder(name string) bool {
	for _, folder := range TopLevelFolders {
		if folder == name {
			return true
		}
	}

	return false
}

// Configs is the canonical flat configuration. Field order matches the
// canonical key order; serialization uses the json tags (ghodss/yaml).
type Configs struct {
	LocalPath            string `json:"local_path"`
	CentralPath          string `json:"central_path"`
	ConnectionMethod     string `json:"connection_method"`
	CentralHostID        string `json:"central_host_id"`
	CentralHostUsername  string `json:"central_host_username"`
	OverwriteOldFiles    bool   `json:"overwrite_old_files"`
	TransferVerbosity    string `json:"transfer_verbosity"`
	ShowTransferProgress bool   `json:"show_transfer_progress"`
	UseEphys             bool   `json:"use_ephys"`
	UseBehav             bool   `json:"use_behav"`
	UseFuncimg           bool   `json:"use_funcimg"`
	UseHistology         bool   `json:"use_histology"`

	// dataTypeNames holds run-time display-name overrides for data-type
	// folders, keyed by canonical key. Not persisted.
	dataTypeNames map[string]string
}

// Keys is the canonical ordered key set. Loading rejects any config whose
// keys differ from this set.
var Keys = []string{
	"local_path",
	"central_path",
	"connection_method",
	"central_host_id",
	"central_host_username",
	"overwrite_old_files",
	"transfer_verbosity",
	"show_transfer_progress",
	"use_ephys",
	"use_behav",
	"use_funcimg",
	"use_histology",
}

// Validate checks the config against the canonical rules. It must pass
// before the config is saved or used.
func (c *Configs) Validate() error {
	if c.ConnectionMethod != ConnectionSSH && c.ConnectionMethod != ConnectionLocalFilesystem {
		return fmt.Errorf("connection_method must be %q or %q, got %q",
			ConnectionSSH, ConnectionLocalFilesystem, c.ConnectionMethod)
	}

	for key, value := range map[string]string{
		"local_path":   c.LocalPath,
		"central_path": c.CentralPath,
	} {
		if value == "" {
			return fmt.Errorf("%s must be set", key)
		}
		if strings.HasPrefix(value, "~") {
			return fmt.Errorf("%s must contain the full folder path with no ~ syntax", key)
		}
	}

	if !filepath.IsAbs(c.LocalPath) {
		return fmt.Errorf("local_path must be an absolute path, got %q", c.LocalPath)
	}

	// The central path lives on the central machine when connecting over
	// SSH, so it is always checked POSIX-style.
	if !strings.HasPrefix(c.CentralPath, "/") && !filepath.IsAbs(c.CentralPath) {
		return fmt.Errorf("central_path must be an absolute path, got %q", c.CentralPath)
	}

	if c.ConnectionMethod == ConnectionSSH && (c.CentralHostID == "" || c.CentralHostUsername == "") {
		return fmt.Errorf("central_host_id and central_host_username are required when connection_method is ssh")
	}

	if c.TransferVerbosity != "v" && c.TransferVerbosity != "vv" {
		return fmt.Errorf("transfer_verbosity must be \"v\" or \"vv\", got %q", c.TransferVerbosity)
	}

	if !c.UseEphys && !c.UseBehav && !c.UseFuncimg && !c.UseHistology {
		return fmt.Errorf("at least one data type must be enabled, from: use_ephys use_behav use_funcimg use_histology")
	}

	return nil
}

// LocalBase returns the local root of the given top-level folder.
func (c *Configs) LocalBase(topLevelFolder string) string {
	return filepath.Join(c.LocalPath, topLevelFolder)
}

// CentralBase returns the central root of the given top-level folder. The
// central path may live on a remote POSIX host, so joining is slash-based.
func (c *Configs) CentralBase(topLevelFolder string) string {
	return strings.TrimSuffix(c.CentralPath, "/") + "/" + topLevelFolder
}
