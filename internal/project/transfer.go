package project

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/joe/datashuttle/internal/config"
	"github.com/joe/datashuttle/internal/rclone"
	"github.com/joe/datashuttle/internal/tree"
	"github.com/joe/datashuttle/pkg/names"
	"github.com/joe/datashuttle/pkg/remotefs"
)

// Upload transfers the selected folders from the local to the central store
// under the current top-level folder. Subject and session lists accept
// literal names, "all", and the @*@ wildcard tag.
func (p *Project) Upload(subs, sess, dataTypes []string, dryRun bool) error {
	return p.transferData(true, "upload_data", subs, sess, dataTypes, dryRun)
}

// Download transfers the selected folders from the central to the local
// store under the current top-level folder.
func (p *Project) Download(subs, sess, dataTypes []string, dryRun bool) error {
	return p.transferData(false, "download_data", subs, sess, dataTypes, dryRun)
}

// UploadAll uploads everything under the current top-level folder.
func (p *Project) UploadAll(dryRun bool) error {
	return p.transferData(true, "upload_all", []string{"all"}, []string{"all"}, nil, dryRun)
}

// DownloadAll downloads everything under the current top-level folder.
func (p *Project) DownloadAll(dryRun bool) error {
	return p.transferData(false, "download_all", []string{"all"}, []string{"all"}, nil, dryRun)
}

func (p *Project) transferData(upload bool, operation string, subs, sess, dataTypes []string, dryRun bool) error {
	if err := p.requireConfig(); err != nil {
		return err
	}

	log, done := p.operationLog(operation)
	defer done()

	if err := rclone.CheckAvailable(p.Runner); err != nil {
		return err
	}

	if err := p.ensureRcloneRemote(); err != nil {
		return err
	}

	source, closeSource, err := p.sourceSearcher(upload, log)
	if err != nil {
		return err
	}
	defer closeSource()

	sel := tree.SelectAll
	if len(dataTypes) > 0 {
		sel = tree.ParseSelector(dataTypes)
	}

	transferrer := &tree.Transferrer{
		Cfg:      p.Cfg,
		Runner:   p.Runner,
		Expander: &names.Expander{Clock: p.Clock},
		Log:      log,
	}

	if upload {
		err = transferrer.Upload(source, p.Settings.TopLevelFolder, subs, sess, sel, dryRun)
	} else {
		err = transferrer.Download(source, p.Settings.TopLevelFolder, subs, sess, sel, dryRun)
	}
	if err != nil {
		log.WithError(err).Error("transfer failed")
		return err
	}

	return nil
}

// sourceSearcher opens the searcher on whichever store names are resolved
// against: local for uploads, central for downloads.
func (p *Project) sourceSearcher(upload bool, log logrus.FieldLogger) (remotefs.Searcher, func(), error) {
	if upload {
		return remotefs.NewLocal(log), func() {}, nil
	}

	return p.centralSearcher(log)
}

// ensureRcloneRemote keeps the rclone config entry for SSH projects in step
// with the current host settings. No-op for local-filesystem projects.
func (p *Project) ensureRcloneRemote() error {
	if p.Cfg.ConnectionMethod != config.ConnectionSSH {
		return nil
	}

	info := p.connectionInfo()

	return rclone.SetupSSHRemote(p.Runner, info.Host, info.User, info.PrivateKeyPath)
}

// UploadFolderOrFile transfers a single file or folder, given by its path
// relative to the current top-level folder, from the local to the central
// store.
func (p *Project) UploadFolderOrFile(relPath string, dryRun bool) error {
	return p.transferSpecific(true, "upload_specific", relPath, dryRun)
}

// DownloadFolderOrFile transfers a single file or folder, given by its path
// relative to the current top-level folder, from the central to the local
// store.
func (p *Project) DownloadFolderOrFile(relPath string, dryRun bool) error {
	return p.transferSpecific(false, "download_specific", relPath, dryRun)
}

func (p *Project) transferSpecific(upload bool, operation, relPath string, dryRun bool) error {
	if err := p.requireConfig(); err != nil {
		return err
	}

	relPath = path.Clean(strings.TrimSuffix(filepath.ToSlash(relPath), "/"))
	if relPath == "." || relPath == "" || path.IsAbs(relPath) || strings.HasPrefix(relPath, "..") {
		return fmt.Errorf("the path must be relative to the %s folder, got %q", p.Settings.TopLevelFolder, relPath)
	}

	log, done := p.operationLog(operation)
	defer done()

	if err := rclone.CheckAvailable(p.Runner); err != nil {
		return err
	}

	if err := p.ensureRcloneRemote(); err != nil {
		return err
	}

	ssh := p.Cfg.ConnectionMethod == config.ConnectionSSH

	opts := rclone.CopyOptions{
		// The path may name a file or a folder; one pattern covers each case.
		Includes:          []string{relPath, relPath + "/**"},
		OverwriteOldFiles: p.Cfg.OverwriteOldFiles,
		Verbosity:         p.Cfg.TransferVerbosity,
		ShowProgress:      p.Cfg.ShowTransferProgress,
		DryRun:            dryRun,
	}
	if upload {
		opts.Source = p.Cfg.LocalBase(p.Settings.TopLevelFolder)
		opts.Dest = rclone.Target(ssh, p.Cfg.CentralBase(p.Settings.TopLevelFolder))
	} else {
		opts.Source = rclone.Target(ssh, p.Cfg.CentralBase(p.Settings.TopLevelFolder))
		opts.Dest = p.Cfg.LocalBase(p.Settings.TopLevelFolder)
	}

	log.WithFields(logrus.Fields{"source": opts.Source, "dest": opts.Dest, "path": relPath}).
		Info("starting single-path transfer")

	return rclone.Copy(p.Runner, opts)
}

// UploadEntireProject uploads every top-level folder in turn. A failure in
// one folder is reported but does not stop the others; the current
// top-level folder selection is restored afterwards regardless.
func (p *Project) UploadEntireProject(dryRun bool) error {
	return p.transferEntireProject(true, dryRun)
}

// DownloadEntireProject downloads every top-level folder in turn, with the
// same continue-past-failures behavior as UploadEntireProject.
func (p *Project) DownloadEntireProject(dryRun bool) error {
	return p.transferEntireProject(false, dryRun)
}

func (p *Project) transferEntireProject(upload bool, dryRun bool) error {
	if err := p.requireConfig(); err != nil {
		return err
	}

	var errs []error

	for _, folder := range config.TopLevelFolders {
		err := p.WithTopLevelFolder(folder, func() error {
			if upload {
				return p.UploadAll(dryRun)
			}
			return p.DownloadAll(dryRun)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", folder, err))
		}
	}

	return errors.Join(errs...)
}
