package rclone_test

import (
	"errors"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/datashuttle/internal/rclone"
)

type fakeRunner struct {
	calls [][]string
	err   error
}

func (f *fakeRunner) Run(args ...string) (string, error) {
	f.calls = append(f.calls, args)
	return "", f.err
}

func TestCopyArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts rclone.CopyOptions
		want []string
	}{
		{
			name: "defaults keep existing files",
			opts: rclone.CopyOptions{
				Source:    "/local/rawdata",
				Dest:      "central_ssh:/central/rawdata",
				Includes:  []string{"sub-001/ses-002/ephys/**"},
				Verbosity: "v",
			},
			want: []string{
				"copy", "/local/rawdata", "central_ssh:/central/rawdata",
				"--create-empty-src-dirs",
				"--include", "sub-001/ses-002/ephys/**",
				"-v", "--ignore-existing",
			},
		},
		{
			name: "overwrite with progress and high verbosity",
			opts: rclone.CopyOptions{
				Source:            "/central/rawdata",
				Dest:              "/local/rawdata",
				Includes:          []string{"sub-001/**", "sub-002/**"},
				OverwriteOldFiles: true,
				Verbosity:         "vv",
				ShowProgress:      true,
			},
			want: []string{
				"copy", "/central/rawdata", "/local/rawdata",
				"--create-empty-src-dirs",
				"--include", "sub-001/**",
				"--include", "sub-002/**",
				"-vv", "--progress",
			},
		},
		{
			name: "dry run",
			opts: rclone.CopyOptions{
				Source:    "/a",
				Dest:      "/b",
				Verbosity: "v",
				DryRun:    true,
			},
			want: []string{
				"copy", "/a", "/b", "--create-empty-src-dirs",
				"-v", "--ignore-existing", "--dry-run",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			g.Expect(rclone.CopyArgs(tt.opts)).To(Equal(tt.want))
		})
	}
}

func TestTarget(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(rclone.Target(false, "/central/project/rawdata")).To(Equal("/central/project/rawdata"))
	g.Expect(rclone.Target(true, "/central/project/rawdata")).To(Equal("central_ssh:/central/project/rawdata"))
}

func TestSetupSSHRemote(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	runner := &fakeRunner{}
	g.Expect(rclone.SetupSSHRemote(runner, "central.example.com", "researcher", "/keys/id")).To(Succeed())

	g.Expect(runner.calls).To(HaveLen(1))
	g.Expect(runner.calls[0]).To(Equal([]string{
		"config", "create", "central_ssh", "sftp",
		"host", "central.example.com",
		"user", "researcher",
		"port", "22",
		"key_file", "/keys/id",
	}))
}

func TestCheckAvailable(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(rclone.CheckAvailable(&fakeRunner{})).To(Succeed())

	broken := &fakeRunner{err: errors.New("exec: rclone: not found")}
	g.Expect(rclone.CheckAvailable(broken)).ShouldNot(Succeed())
}
