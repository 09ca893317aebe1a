package config_test

import (
	"errors"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers
	"github.com/spf13/afero"

	"github.com/joe/datashuttle/internal/config"
)

func validConfigs() *config.Configs {
	return &config.Configs{
		LocalPath:         "/home/user/project",
		CentralPath:       "/central/project",
		ConnectionMethod:  config.ConnectionLocalFilesystem,
		TransferVerbosity: "v",
		UseEphys:          true,
		UseBehav:          true,
		UseFuncimg:        true,
		UseHistology:      true,
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Configs)
		wantErr bool
	}{
		{"valid local filesystem", func(c *config.Configs) {}, false},
		{
			"valid ssh",
			func(c *config.Configs) {
				c.ConnectionMethod = config.ConnectionSSH
				c.CentralHostID = "central.example.com"
				c.CentralHostUsername = "researcher"
			},
			false,
		},
		{"unknown connection method", func(c *config.Configs) { c.ConnectionMethod = "ftp" }, true},
		{"empty local path", func(c *config.Configs) { c.LocalPath = "" }, true},
		{"tilde in local path", func(c *config.Configs) { c.LocalPath = "~/project" }, true},
		{"relative local path", func(c *config.Configs) { c.LocalPath = "project" }, true},
		{"relative central path", func(c *config.Configs) { c.CentralPath = "central/project" }, true},
		{
			"ssh without host",
			func(c *config.Configs) { c.ConnectionMethod = config.ConnectionSSH },
			true,
		},
		{"bad verbosity", func(c *config.Configs) { c.TransferVerbosity = "vvv" }, true},
		{
			"no data types enabled",
			func(c *config.Configs) {
				c.UseEphys = false
				c.UseBehav = false
				c.UseFuncimg = false
				c.UseHistology = false
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfigs()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	store := config.NewStore(afero.NewMemMapFs(), "/app/myproject")

	g.Expect(store.Exists()).To(BeFalse())

	cfg := validConfigs()
	g.Expect(store.Save(cfg)).To(Succeed())
	g.Expect(store.Exists()).To(BeTrue())

	loaded, err := store.Load()
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(loaded).To(Equal(cfg))
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := afero.NewMemMapFs()
	store := config.NewStore(fs, "/app/myproject")
	g.Expect(store.Save(validConfigs())).To(Succeed())

	raw, err := afero.ReadFile(fs, store.ConfigPath())
	g.Expect(err).ShouldNot(HaveOccurred())

	tampered := append(raw, []byte("mystery_key: true\n")...)
	g.Expect(afero.WriteFile(fs, store.ConfigPath(), tampered, 0o644)).To(Succeed())

	_, err = store.Load()
	g.Expect(err).Should(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("mystery_key"))
}

func TestLoadRejectsMissingKey(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := afero.NewMemMapFs()
	store := config.NewStore(fs, "/app/myproject")

	partial := []byte("local_path: /home/user/project\ncentral_path: /central/project\n")
	g.Expect(fs.MkdirAll("/app/myproject", 0o755)).To(Succeed())
	g.Expect(afero.WriteFile(fs, store.ConfigPath(), partial, 0o644)).To(Succeed())

	_, err := store.Load()
	g.Expect(err).Should(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("was not found"))
}

func TestUpdateEntry(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	store := config.NewStore(afero.NewMemMapFs(), "/app/myproject")
	cfg := validConfigs()
	g.Expect(store.Save(cfg)).To(Succeed())

	g.Expect(store.UpdateEntry(cfg, "overwrite_old_files", "true")).To(Succeed())
	g.Expect(cfg.OverwriteOldFiles).To(BeTrue())

	// The updated value is persisted.
	loaded, err := store.Load()
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(loaded.OverwriteOldFiles).To(BeTrue())
}

func TestUpdateEntryRevertsOnInvalid(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	store := config.NewStore(afero.NewMemMapFs(), "/app/myproject")
	cfg := validConfigs()
	g.Expect(store.Save(cfg)).To(Succeed())

	err := store.UpdateEntry(cfg, "local_path", "relative/path")
	g.Expect(err).Should(HaveOccurred())

	// The live config keeps its previous value and the persisted copy is
	// untouched.
	g.Expect(cfg.LocalPath).To(Equal("/home/user/project"))

	loaded, err := store.Load()
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(loaded.LocalPath).To(Equal("/home/user/project"))
}

func TestUpdateEntryRejectsUnknownKey(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	store := config.NewStore(afero.NewMemMapFs(), "/app/myproject")
	cfg := validConfigs()

	g.Expect(store.UpdateEntry(cfg, "nope", "value")).ShouldNot(Succeed())
}

func TestSettingsDefaults(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	store := config.NewStore(afero.NewMemMapFs(), "/app/myproject")

	settings, err := store.LoadSettings()
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(settings.TopLevelFolder).To(Equal(config.DefaultTopLevelFolder))

	settings.TopLevelFolder = "derivatives"
	g.Expect(store.SaveSettings(settings)).To(Succeed())

	reloaded, err := store.LoadSettings()
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(reloaded.TopLevelFolder).To(Equal("derivatives"))
}

func TestDataTypeFoldersLiveRead(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg := validConfigs()
	cfg.UseBehav = false

	folders := cfg.DataTypeFolders()
	g.Expect(folders).To(HaveLen(4))
	g.Expect(folders["behav"].Used).To(BeFalse())
	g.Expect(folders["ephys"].Used).To(BeTrue())

	// Flipping a flag is visible on the very next call.
	cfg.UseBehav = true
	g.Expect(cfg.DataTypeFolders()["behav"].Used).To(BeTrue())

	// Levels are fixed per data type.
	g.Expect(folders["histology"].Level).To(Equal(config.LevelSub))
	for _, key := range []string{"ephys", "behav", "funcimg"} {
		g.Expect(folders[key].Level).To(Equal(config.LevelSes), key)
	}
}

func TestSetDataTypeName(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg := validConfigs()

	g.Expect(cfg.SetDataTypeName("behav", "behaviour")).To(Succeed())
	g.Expect(cfg.DataTypeFolders()["behav"].Name).To(Equal("behaviour"))

	// Empty restores the canonical name.
	g.Expect(cfg.SetDataTypeName("behav", "")).To(Succeed())
	g.Expect(cfg.DataTypeFolders()["behav"].Name).To(Equal("behav"))

	err := cfg.SetDataTypeName("bogus", "x")
	var unknownErr config.UnknownDataTypeError
	g.Expect(err).Should(HaveOccurred())
	g.Expect(errors.As(err, &unknownErr)).To(BeTrue())
}
