// Package rclone drives the external rclone binary, which performs all file
// transfer between the local and central stores. This code only plans
// arguments and shells out; nothing here copies bytes itself.
package rclone

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Runner executes one rclone invocation and returns its combined output.
// Tests substitute a recording fake.
type Runner interface {
	Run(args ...string) (string, error)
}

// ExecRunner runs rclone as a subprocess and logs its output verbatim.
type ExecRunner struct {
	Log logrus.FieldLogger
}

// Run executes rclone with the given arguments.
func (r ExecRunner) Run(args ...string) (string, error) {
	out, err := exec.Command("rclone", args...).CombinedOutput()
	output := string(out)

	if r.Log != nil && strings.TrimSpace(output) != "" {
		r.Log.WithField("command", "rclone "+strings.Join(args, " ")).Info(output)
	}

	if err != nil {
		return output, fmt.Errorf("rclone %s failed: %w\n%s", args[0], err, output)
	}

	return output, nil
}

// CheckAvailable probes for a working rclone on PATH.
func CheckAvailable(runner Runner) error {
	if _, err := runner.Run("version"); err != nil {
		return fmt.Errorf("rclone is required for transfers but is not working: %w", err)
	}

	return nil
}

// SSHRemoteName is the rclone config entry used for the central host.
const SSHRemoteName = "central_ssh"

// SetupSSHRemote writes the rclone config entry for the central host,
// pointing at the project's private key. Idempotent: rclone overwrites an
// existing entry of the same name.
func SetupSSHRemote(runner Runner, host, user, keyPath string) error {
	_, err := runner.Run(
		"config", "create", SSHRemoteName, "sftp",
		"host", host,
		"user", user,
		"port", "22",
		"key_file", keyPath,
	)
	if err != nil {
		return fmt.Errorf("failed to configure central remote: %w", err)
	}

	return nil
}

// Target renders a transfer endpoint: a plain path for the local filesystem,
// or a remote-prefixed path when the central store is reached over SSH.
func Target(ssh bool, path string) string {
	if ssh {
		return SSHRemoteName + ":" + path
	}

	return path
}

// CopyOptions describes one aggregated copy between two stores.
type CopyOptions struct {
	Source   string
	Dest     string
	Includes []string

	OverwriteOldFiles bool
	Verbosity         string // "v" or "vv"
	ShowProgress      bool
	DryRun            bool
}

// CopyArgs builds the argument list for one rclone copy.
func CopyArgs(opts CopyOptions) []string {
	args := []string{"copy", opts.Source, opts.Dest, "--create-empty-src-dirs"}

	for _, include := range opts.Includes {
		args = append(args, "--include", include)
	}

	if opts.Verbosity == "vv" {
		args = append(args, "-vv")
	} else {
		args = append(args, "-v")
	}

	// Without overwrite, files already present on the destination are left
	// alone even when the source copy is newer.
	if !opts.OverwriteOldFiles {
		args = append(args, "--ignore-existing")
	}

	if opts.ShowProgress {
		args = append(args, "--progress")
	}

	if opts.DryRun {
		args = append(args, "--dry-run")
	}

	return args
}

// Copy runs one aggregated copy.
func Copy(runner Runner, opts CopyOptions) error {
	if _, err := runner.Run(CopyArgs(opts)...); err != nil {
		return fmt.Errorf("transfer from %s to %s failed: %w", opts.Source, opts.Dest, err)
	}

	return nil
}
