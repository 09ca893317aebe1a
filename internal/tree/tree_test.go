package tree_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bmatcuk/doublestar/v4"
	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/datashuttle/internal/config"
	"github.com/joe/datashuttle/internal/tree"
	"github.com/joe/datashuttle/pkg/names"
	"github.com/joe/datashuttle/pkg/remotefs"
)

func testConfigs(localPath string) *config.Configs {
	return &config.Configs{
		LocalPath:         localPath,
		CentralPath:       "/central/project",
		ConnectionMethod:  config.ConnectionLocalFilesystem,
		TransferVerbosity: "v",
		UseEphys:          true,
		UseBehav:          true,
		UseFuncimg:        true,
		UseHistology:      true,
	}
}

func newCreator(cfg *config.Configs) *tree.Creator {
	return &tree.Creator{
		Cfg:      cfg,
		Local:    remotefs.NewLocal(nil),
		Expander: names.NewExpander(),
	}
}

func TestCreateFoldersFullTree(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg := testConfigs(t.TempDir())
	creator := newCreator(cfg)

	_, err := creator.CreateFolders("rawdata", []string{"001"}, []string{"001", "002"}, tree.SelectAll)
	g.Expect(err).ShouldNot(HaveOccurred())

	base := cfg.LocalBase("rawdata")
	wantDirs := []string{
		"sub-001/histology",
		"sub-001/ses-001/behav",
		"sub-001/ses-001/ephys",
		"sub-001/ses-001/funcimg",
		"sub-001/ses-002/behav",
		"sub-001/ses-002/ephys",
		"sub-001/ses-002/funcimg",
	}
	for _, dir := range wantDirs {
		full := filepath.Join(base, filepath.FromSlash(dir))

		info, err := os.Stat(full)
		g.Expect(err).ShouldNot(HaveOccurred(), dir)
		g.Expect(info.IsDir()).To(BeTrue(), dir)

		// Every data-type folder carries a meta marker folder.
		_, err = os.Stat(filepath.Join(full, ".datashuttle_meta"))
		g.Expect(err).ShouldNot(HaveOccurred(), dir)
	}
}

func TestCreateFoldersSkipsUnusedDataTypes(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg := testConfigs(t.TempDir())
	cfg.UseBehav = false

	_, err := newCreator(cfg).CreateFolders("rawdata", []string{"sub-001"}, []string{"ses-001"}, tree.SelectAll)
	g.Expect(err).ShouldNot(HaveOccurred())

	base := cfg.LocalBase("rawdata")
	_, err = os.Stat(filepath.Join(base, "sub-001", "ses-001", "ephys"))
	g.Expect(err).ShouldNot(HaveOccurred())

	_, err = os.Stat(filepath.Join(base, "sub-001", "ses-001", "behav"))
	g.Expect(os.IsNotExist(err)).To(BeTrue())
}

func TestCreateFoldersDuplicateSubKey(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg := testConfigs(t.TempDir())
	creator := newCreator(cfg)

	_, err := creator.CreateFolders("rawdata", []string{"sub-001_id-123"}, nil, tree.SelectAll)
	g.Expect(err).ShouldNot(HaveOccurred())

	// Same number, different full name: rejected even with different
	// padding.
	for _, clash := range []string{"sub-001_id-125", "sub-01_id-125"} {
		_, err = creator.CreateFolders("rawdata", []string{clash}, nil, tree.SelectAll)

		var dupErr tree.DuplicateKeyError
		g.Expect(errors.As(err, &dupErr)).To(BeTrue(), "expected DuplicateKeyError, got %v", err)
		g.Expect(dupErr.ExistingName).To(Equal("sub-001_id-123"))
	}

	// A fresh number is fine.
	_, err = creator.CreateFolders("rawdata", []string{"sub-003"}, nil, tree.SelectAll)
	g.Expect(err).ShouldNot(HaveOccurred())
}

func TestCreateFoldersIdempotent(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	creator := newCreator(testConfigs(t.TempDir()))

	for i := 0; i < 2; i++ {
		_, err := creator.CreateFolders("rawdata", []string{"sub-001_id-123"}, []string{"ses-001"}, tree.SelectAll)
		g.Expect(err).ShouldNot(HaveOccurred())
	}
}

func TestCreateFoldersSessionsScopedPerSubject(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg := testConfigs(t.TempDir())
	creator := newCreator(cfg)

	_, err := creator.CreateFolders("rawdata", []string{"sub-001"}, []string{"ses-001_id-a"}, tree.SelectAll)
	g.Expect(err).ShouldNot(HaveOccurred())

	// The same session number under another subject does not clash.
	_, err = creator.CreateFolders("rawdata", []string{"sub-002"}, []string{"ses-001_id-a"}, tree.SelectAll)
	g.Expect(err).ShouldNot(HaveOccurred())

	// Under the same subject it does.
	_, err = creator.CreateFolders("rawdata", []string{"sub-001"}, []string{"ses-01_id-b"}, tree.SelectAll)

	var dupErr tree.DuplicateKeyError
	g.Expect(errors.As(err, &dupErr)).To(BeTrue(), "expected DuplicateKeyError, got %v", err)
	g.Expect(dupErr.Prefix).To(Equal(names.Ses))
}

func TestCreateFoldersUnknownDataTypeCreatesNothing(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg := testConfigs(t.TempDir())

	sel := tree.ParseSelector([]string{"ephys", "bogus"})
	_, err := newCreator(cfg).CreateFolders("rawdata", []string{"sub-001"}, []string{"ses-001"}, sel)

	var unknownErr config.UnknownDataTypeError
	g.Expect(errors.As(err, &unknownErr)).To(BeTrue(), "expected UnknownDataTypeError, got %v", err)
	g.Expect(unknownErr.Key).To(Equal("bogus"))

	// The valid part of the request must not have been created.
	_, err = os.Stat(filepath.Join(cfg.LocalBase("rawdata"), "sub-001"))
	g.Expect(os.IsNotExist(err)).To(BeTrue())
}

func TestNextNumber(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	localRoot := t.TempDir()
	centralRoot := t.TempDir()
	for _, dir := range []string{"sub-001", "sub-002"} {
		g.Expect(os.Mkdir(filepath.Join(localRoot, dir), 0o755)).To(Succeed())
	}
	// The central store contributes numbers too, padded differently.
	g.Expect(os.Mkdir(filepath.Join(centralRoot, "sub-03"), 0o755)).To(Succeed())

	searcher := remotefs.NewLocal(nil)

	next, max, err := tree.NextNumber(searcher, searcher, localRoot, centralRoot, names.Sub, nil)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(max).To(Equal(3))
	g.Expect(next).To(Equal(4))
}

func TestNextNumberNoFolders(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	searcher := remotefs.NewLocal(nil)

	_, _, err := tree.NextNumber(searcher, searcher, t.TempDir(), t.TempDir(), names.Ses, nil)

	var noneErr tree.NoExistingFoldersError
	g.Expect(errors.As(err, &noneErr)).To(BeTrue(), "expected NoExistingFoldersError, got %v", err)
}

// fakeSearcher serves folder listings from a fixed map of path to names.
type fakeSearcher struct {
	dirs map[string][]string
}

func (f fakeSearcher) ListDirsMatching(path, pattern string) ([]string, []string, error) {
	var out []string
	for _, name := range f.dirs[path] {
		if ok, _ := doublestar.Match(pattern, name); ok {
			out = append(out, name)
		}
	}

	return out, nil, nil
}

type fakeRunner struct {
	calls [][]string
}

func (f *fakeRunner) Run(args ...string) (string, error) {
	f.calls = append(f.calls, args)
	return "", nil
}

func TestUploadExplicitNames(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg := testConfigs("/local/project")
	runner := &fakeRunner{}
	transferrer := &tree.Transferrer{Cfg: cfg, Runner: runner}

	err := transferrer.Upload(
		fakeSearcher{}, "rawdata",
		[]string{"sub-001"}, []string{"ses-002"}, tree.SelectAll, false,
	)
	g.Expect(err).ShouldNot(HaveOccurred())

	g.Expect(runner.calls).To(HaveLen(1))
	g.Expect(runner.calls[0]).To(Equal([]string{
		"copy", "/local/project/rawdata", "/central/project/rawdata",
		"--create-empty-src-dirs",
		"--include", "sub-001/histology/**",
		"--include", "sub-001/ses-002/behav/**",
		"--include", "sub-001/ses-002/ephys/**",
		"--include", "sub-001/ses-002/funcimg/**",
		"-v", "--ignore-existing",
	}))
}

func TestUploadResolvesAllAgainstLocal(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg := testConfigs("/local/project")
	cfg.UseHistology = false
	cfg.UseBehav = false
	cfg.UseFuncimg = false

	source := fakeSearcher{dirs: map[string][]string{
		"/local/project/rawdata":         {"sub-001", "sub-002"},
		"/local/project/rawdata/sub-001": {"ses-001"},
		"/local/project/rawdata/sub-002": {"ses-044"},
	}}

	runner := &fakeRunner{}
	transferrer := &tree.Transferrer{Cfg: cfg, Runner: runner}

	err := transferrer.Upload(source, "rawdata", []string{"all"}, []string{"all"}, tree.SelectAll, false)
	g.Expect(err).ShouldNot(HaveOccurred())

	g.Expect(runner.calls).To(HaveLen(1))
	g.Expect(runner.calls[0]).To(ContainElements(
		"sub-001/ses-001/ephys/**",
		"sub-002/ses-044/ephys/**",
	))
	// Sessions resolve per subject, never across subjects.
	g.Expect(runner.calls[0]).NotTo(ContainElement("sub-001/ses-044/ephys/**"))
}

func TestUploadWildcardNames(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg := testConfigs("/local/project")
	cfg.UseHistology = false
	cfg.UseBehav = false
	cfg.UseFuncimg = false

	source := fakeSearcher{dirs: map[string][]string{
		"/local/project/rawdata": {
			"sub-001_date-20230208",
			"sub-001_date-20240101",
			"sub-002",
		},
		"/local/project/rawdata/sub-001_date-20230208": {"ses-001"},
		"/local/project/rawdata/sub-001_date-20240101": {"ses-001"},
	}}

	runner := &fakeRunner{}
	transferrer := &tree.Transferrer{Cfg: cfg, Runner: runner}

	err := transferrer.Upload(
		source, "rawdata",
		[]string{"sub-001_date-@*@"}, []string{"all"}, tree.SelectAll, false,
	)
	g.Expect(err).ShouldNot(HaveOccurred())

	g.Expect(runner.calls).To(HaveLen(1))
	g.Expect(runner.calls[0]).To(ContainElements(
		"sub-001_date-20230208/ses-001/ephys/**",
		"sub-001_date-20240101/ses-001/ephys/**",
	))
}

func TestPlanWithNoneSelectorMakesContainersOnly(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg := testConfigs("/local/project")

	planned, err := tree.Plan(cfg, []string{"sub-001"}, []string{"ses-001"}, tree.ParseSelector([]string{"none"}))
	g.Expect(err).ShouldNot(HaveOccurred())

	var paths []string
	for _, folder := range planned {
		paths = append(paths, folder.RelPath)
	}
	g.Expect(paths).To(Equal([]string{"sub-001", "sub-001/ses-001"}))
}

func TestUploadExpandsRangeNames(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg := testConfigs("/local/project")
	cfg.UseHistology = false
	cfg.UseBehav = false
	cfg.UseFuncimg = false

	runner := &fakeRunner{}
	transferrer := &tree.Transferrer{Cfg: cfg, Runner: runner}

	err := transferrer.Upload(
		fakeSearcher{}, "rawdata",
		[]string{"001@TO@002"}, []string{"ses-001"}, tree.SelectAll, false,
	)
	g.Expect(err).ShouldNot(HaveOccurred())

	g.Expect(runner.calls).To(HaveLen(1))
	g.Expect(runner.calls[0]).To(ContainElements(
		"sub-001/ses-001/ephys/**",
		"sub-002/ses-001/ephys/**",
	))
}

func TestUploadRejectsBadlyDelimitedNames(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg := testConfigs("/local/project")
	runner := &fakeRunner{}
	transferrer := &tree.Transferrer{Cfg: cfg, Runner: runner}

	err := transferrer.Upload(
		fakeSearcher{}, "rawdata",
		[]string{"sub-001-extra"}, []string{"ses-001"}, tree.SelectAll, false,
	)

	var formatErr names.InvalidNameFormatError
	g.Expect(errors.As(err, &formatErr)).To(BeTrue(), "got %v", err)
	g.Expect(runner.calls).To(BeEmpty())
}

func TestDownloadSwapsSourceAndDest(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg := testConfigs("/local/project")
	cfg.ConnectionMethod = config.ConnectionSSH
	cfg.CentralHostID = "central.example.com"
	cfg.CentralHostUsername = "researcher"

	source := fakeSearcher{dirs: map[string][]string{
		"/central/project/rawdata":         {"sub-001"},
		"/central/project/rawdata/sub-001": {"ses-001"},
	}}

	runner := &fakeRunner{}
	transferrer := &tree.Transferrer{Cfg: cfg, Runner: runner}

	err := transferrer.Download(source, "rawdata", []string{"all"}, []string{"all"}, tree.SelectAll, false)
	g.Expect(err).ShouldNot(HaveOccurred())

	g.Expect(runner.calls).To(HaveLen(1))
	g.Expect(runner.calls[0][1]).To(Equal("central_ssh:/central/project/rawdata"))
	g.Expect(runner.calls[0][2]).To(Equal("/local/project/rawdata"))
}

func TestTransferNothingToDo(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	runner := &fakeRunner{}
	transferrer := &tree.Transferrer{Cfg: testConfigs("/local/project"), Runner: runner}

	// "all" on an empty source resolves to no names, so rclone never runs.
	err := transferrer.Upload(fakeSearcher{}, "rawdata", []string{"all"}, []string{"all"}, tree.SelectAll, false)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(runner.calls).To(BeEmpty())
}
