// Package project is the user-facing facade. A Project ties together the
// persisted config, the folder tree builder and the transfer machinery for
// one named research project.
package project

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/joe/datashuttle/internal/config"
	"github.com/joe/datashuttle/internal/logging"
	"github.com/joe/datashuttle/internal/rclone"
	"github.com/joe/datashuttle/internal/tree"
	"github.com/joe/datashuttle/pkg/names"
	"github.com/joe/datashuttle/pkg/remotefs"
)

// Project is one named project with its persisted state loaded.
type Project struct {
	Name     string
	Store    *config.Store
	Cfg      *config.Configs
	Settings config.Settings

	Runner rclone.Runner
	Clock  clockwork.Clock
}

// New opens the named project. The config is loaded when one has been made;
// otherwise every operation except MakeConfigFile reports that setup is
// needed first.
func New(name string) (*Project, error) {
	if name == "" {
		return nil, fmt.Errorf("a project name is required")
	}

	dir, err := config.AppDir(name)
	if err != nil {
		return nil, err
	}

	store := config.NewStore(afero.NewOsFs(), dir)

	p := &Project{
		Name:   name,
		Store:  store,
		Clock:  clockwork.NewRealClock(),
		Runner: rclone.ExecRunner{},
	}

	if store.Exists() {
		cfg, err := store.Load()
		if err != nil {
			return nil, err
		}
		p.Cfg = cfg

		settings, err := store.LoadSettings()
		if err != nil {
			return nil, err
		}
		p.Settings = settings
	} else {
		p.Settings = config.Settings{TopLevelFolder: config.DefaultTopLevelFolder}
	}

	return p, nil
}

// requireConfig guards operations that need a configured project.
func (p *Project) requireConfig() error {
	if p.Cfg == nil {
		return fmt.Errorf("project %s has no config yet: run make-config-file first", p.Name)
	}

	return nil
}

// MakeConfigFile validates and persists a fresh config, replacing any
// existing one.
func (p *Project) MakeConfigFile(cfg config.Configs) error {
	if err := p.Store.Save(&cfg); err != nil {
		return err
	}

	p.Cfg = &cfg

	settings, err := p.Store.LoadSettings()
	if err != nil {
		return err
	}
	p.Settings = settings

	log, done := p.operationLog("make_config_file")
	defer done()
	log.WithField("path", p.Store.ConfigPath()).Info("wrote config file")

	return nil
}

// UpdateConfig changes one config entry, rejecting updates that would leave
// the config invalid.
func (p *Project) UpdateConfig(key, value string) error {
	if err := p.requireConfig(); err != nil {
		return err
	}

	log, done := p.operationLog("update_config")
	defer done()

	if err := p.Store.UpdateEntry(p.Cfg, key, value); err != nil {
		log.WithError(err).Error("config update rejected")
		return err
	}

	log.WithFields(logrus.Fields{"key": key, "value": value}).Info("updated config")

	return nil
}

// SetTopLevelFolder switches the current top-level folder and persists the
// choice.
func (p *Project) SetTopLevelFolder(name string) error {
	if !config.IsTopLevelFolder(name) {
		return fmt.Errorf("%q is not a top-level folder (valid: %v)", name, config.TopLevelFolders)
	}

	p.Settings.TopLevelFolder = name

	return p.Store.SaveSettings(p.Settings)
}

// WithTopLevelFolder runs fn with the current top-level folder temporarily
// switched. The previous selection is restored whether or not fn fails.
func (p *Project) WithTopLevelFolder(name string, fn func() error) error {
	previous := p.Settings.TopLevelFolder

	if err := p.SetTopLevelFolder(name); err != nil {
		return err
	}

	defer func() {
		p.Settings.TopLevelFolder = previous
		_ = p.Store.SaveSettings(p.Settings)
	}()

	return fn()
}

// MakeSubFolders creates subject (and optionally session) folders with the
// selected data types under the current top-level folder. Name lists accept
// range and date tags.
func (p *Project) MakeSubFolders(subs, sess, dataTypes []string) ([]string, error) {
	if err := p.requireConfig(); err != nil {
		return nil, err
	}

	log, done := p.operationLog("make_sub_folders")
	defer done()

	creator := &tree.Creator{
		Cfg:      p.Cfg,
		Local:    remotefs.NewLocal(log),
		Expander: &names.Expander{Clock: p.Clock},
		Log:      log,
	}

	sel := tree.SelectAll
	if len(dataTypes) > 0 {
		sel = tree.ParseSelector(dataTypes)
	}

	created, err := creator.CreateFolders(p.Settings.TopLevelFolder, subs, sess, sel)
	if err != nil {
		log.WithError(err).Error("folder creation failed")
		return nil, err
	}

	if view, err := p.ShowLocalTree(); err == nil {
		log.Debug("local tree after creation:\n" + view)
	}

	return created, nil
}

// CheckNameFormatting shows how the given names expand and validates them,
// creating nothing.
func (p *Project) CheckNameFormatting(prefix names.Prefix, values []string) ([]string, error) {
	expander := &names.Expander{Clock: p.Clock}

	expanded, err := expander.Expand(values, prefix)
	if err != nil {
		return nil, err
	}

	if err := names.CheckAlternatingDelimiters(expanded); err != nil {
		return nil, err
	}

	return expanded, nil
}

// NextSubNumber suggests the next free subject number across both stores
// under the current top-level folder. Also returns the current maximum.
func (p *Project) NextSubNumber() (next, max int, err error) {
	return p.nextNumber(names.Sub, "")
}

// NextSesNumber suggests the next free session number for one subject
// across both stores.
func (p *Project) NextSesNumber(sub string) (next, max int, err error) {
	return p.nextNumber(names.Ses, sub)
}

func (p *Project) nextNumber(prefix names.Prefix, sub string) (int, int, error) {
	if err := p.requireConfig(); err != nil {
		return 0, 0, err
	}

	log, done := p.operationLog("next_number")
	defer done()

	central, closeCentral, err := p.centralSearcher(log)
	if err != nil {
		return 0, 0, err
	}
	defer closeCentral()

	localBase := p.Cfg.LocalBase(p.Settings.TopLevelFolder)
	centralBase := p.Cfg.CentralBase(p.Settings.TopLevelFolder)
	if sub != "" {
		localBase = filepath.Join(localBase, sub)
		centralBase = path.Join(centralBase, sub)
	}

	return tree.NextNumber(remotefs.NewLocal(log), central, localBase, centralBase, prefix, log)
}

// centralSearcher opens a searcher on the central store. The closer must be
// called when done.
func (p *Project) centralSearcher(log logrus.FieldLogger) (remotefs.Searcher, func(), error) {
	return remotefs.CreateSearcher(p.connectionInfo(), log)
}

// connectionInfo renders the config into connection parameters, pointing at
// the project's own key and known-hosts files.
func (p *Project) connectionInfo() remotefs.ConnectionInfo {
	return remotefs.ConnectionInfo{
		SSH:            p.Cfg.ConnectionMethod == config.ConnectionSSH,
		Host:           p.Cfg.CentralHostID,
		User:           p.Cfg.CentralHostUsername,
		PrivateKeyPath: filepath.Join(p.Store.Dir(), "ssh_key"),
		KnownHostsPath: filepath.Join(p.Store.Dir(), "known_hosts"),
	}
}

// SetupSSH performs the one-time SSH setup: the host key is verified and
// recorded, a fresh key pair is generated and installed on the central host,
// and rclone is pointed at the key. The password is only used during this
// setup; later connections authenticate with the key.
func (p *Project) SetupSSH(password string, accept func(fingerprint string) bool) error {
	if err := p.requireConfig(); err != nil {
		return err
	}

	if p.Cfg.ConnectionMethod != config.ConnectionSSH {
		return fmt.Errorf("connection_method is %q: SSH setup only applies to ssh projects", p.Cfg.ConnectionMethod)
	}

	log, done := p.operationLog("setup_ssh")
	defer done()

	info := p.connectionInfo()
	info.Password = password

	if err := remotefs.VerifyHost(info, accept); err != nil {
		return err
	}
	log.WithField("host", info.Host).Info("host key accepted and recorded")

	if err := remotefs.SetupKeyPair(info); err != nil {
		return err
	}
	log.Info("key pair generated and installed on central host")

	if err := rclone.SetupSSHRemote(p.Runner, info.Host, info.User, info.PrivateKeyPath); err != nil {
		return err
	}
	log.Info("rclone remote configured")

	return nil
}

// operationLog opens the per-operation log file, falling back to a discard
// logger when the project folder is not writable yet.
func (p *Project) operationLog(operation string) (logrus.FieldLogger, func()) {
	if p.Cfg == nil {
		return logging.Discard(), func() {}
	}

	log, closer, err := logging.NewOperationLogger(p.Cfg.LocalPath, operation, p.Clock)
	if err != nil {
		return logging.Discard(), func() {}
	}

	return log, closer
}
