package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
)

const (
	configFileName   = "config.yaml"
	settingsFileName = "persistent_settings.yaml"
)

// AppDir returns the per-project application folder (~/.datashuttle/<name>)
// where the config and persistent settings are stored. This folder is outside
// the project tree so it survives local-path changes.
func AppDir(projectName string) (string, error) {
	dir, err := homedir.Expand(filepath.Join("~", ".datashuttle", projectName))
	if err != nil {
		return "", fmt.Errorf("failed to resolve app folder: %w", err)
	}

	return dir, nil
}

// Store reads and writes the project config and persistent settings.
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore creates a store rooted at dir on the given filesystem.
func NewStore(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

// Dir returns the app folder this store reads and writes.
func (s *Store) Dir() string {
	return s.dir
}

// ConfigPath returns the full path of the config file.
func (s *Store) ConfigPath() string {
	return filepath.Join(s.dir, configFileName)
}

// Exists reports whether a config file has been written for this project.
func (s *Store) Exists() bool {
	ok, err := afero.Exists(s.fs, s.ConfigPath())
	return err == nil && ok
}

// Load reads and validates the config file. The file must carry exactly the
// canonical key set: unknown or missing keys fail the load.
func (s *Store) Load() (*Configs, error) {
	raw, err := afero.ReadFile(s.fs, s.ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no config file found at %s: %w", s.ConfigPath(), err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := checkCanonicalKeys(raw); err != nil {
		return nil, err
	}

	var cfg Configs
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", s.ConfigPath(), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s is invalid: %w", s.ConfigPath(), err)
	}

	return &cfg, nil
}

// Save validates and writes the config file, creating the app folder if
// needed.
func (s *Store) Save(cfg *Configs) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create app folder %s: %w", s.dir, err)
	}

	if err := afero.WriteFile(s.fs, s.ConfigPath(), raw, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// checkCanonicalKeys verifies the serialized config carries exactly the
// canonical key set.
func checkCanonicalKeys(raw []byte) error {
	var onDisk map[string]any
	if err := yaml.Unmarshal(raw, &onDisk); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	canonical := make(map[string]struct{}, len(Keys))
	for _, key := range Keys {
		canonical[key] = struct{}{}
		if _, ok := onDisk[key]; !ok {
			return fmt.Errorf("loading failed: the key %q was not found in the supplied config", key)
		}
	}

	for key := range onDisk {
		if _, ok := canonical[key]; !ok {
			return fmt.Errorf("the supplied config contains an invalid key: %q", key)
		}
	}

	return nil
}

// UpdateEntry sets a single config entry from its string representation,
// validates the result, and persists it. An update that would make the
// config invalid is reverted and reported, leaving the previous value live.
func (s *Store) UpdateEntry(cfg *Configs, key, value string) error {
	previous := *cfg

	if err := setEntry(cfg, key, value); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		*cfg = previous
		return fmt.Errorf("%s was not updated: %w", key, err)
	}

	return s.Save(cfg)
}

// setEntry assigns one canonical entry, parsing booleans where required.
func setEntry(cfg *Configs, key, value string) error {
	boolValue := func() (bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("value for %s must be true or false, got %q", key, value)
		}
		return b, nil
	}

	var err error

	switch key {
	case "local_path":
		cfg.LocalPath = value
	case "central_path":
		cfg.CentralPath = value
	case "connection_method":
		cfg.ConnectionMethod = value
	case "central_host_id":
		cfg.CentralHostID = value
	case "central_host_username":
		cfg.CentralHostUsername = value
	case "transfer_verbosity":
		cfg.TransferVerbosity = value
	case "overwrite_old_files":
		cfg.OverwriteOldFiles, err = boolValue()
	case "show_transfer_progress":
		cfg.ShowTransferProgress, err = boolValue()
	case "use_ephys":
		cfg.UseEphys, err = boolValue()
	case "use_behav":
		cfg.UseBehav, err = boolValue()
	case "use_funcimg":
		cfg.UseFuncimg, err = boolValue()
	case "use_histology":
		cfg.UseHistology, err = boolValue()
	default:
		return fmt.Errorf("%q is not a valid config key", key)
	}

	return err
}

// Settings are small preferences persisted across sessions, separate from
// the validated config.
type Settings struct {
	TopLevelFolder string `json:"top_level_folder"`
}

// settingsPath returns the full path of the persistent settings file.
func (s *Store) settingsPath() string {
	return filepath.Join(s.dir, settingsFileName)
}

// LoadSettings reads the persistent settings, initializing defaults on first
// use.
func (s *Store) LoadSettings() (Settings, error) {
	defaults := Settings{TopLevelFolder: DefaultTopLevelFolder}

	raw, err := afero.ReadFile(s.fs, s.settingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			if err := s.SaveSettings(defaults); err != nil {
				return Settings{}, err
			}
			return defaults, nil
		}
		return Settings{}, fmt.Errorf("failed to read persistent settings: %w", err)
	}

	settings := defaults
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to parse persistent settings: %w", err)
	}

	return settings, nil
}

// SaveSettings writes the persistent settings.
func (s *Store) SaveSettings(settings Settings) error {
	raw, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to serialize persistent settings: %w", err)
	}

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create app folder %s: %w", s.dir, err)
	}

	if err := afero.WriteFile(s.fs, s.settingsPath(), raw, 0o644); err != nil {
		return fmt.Errorf("failed to write persistent settings: %w", err)
	}

	return nil
}
