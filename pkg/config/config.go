package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the profile configuration written by init.
	FileName = "config.toml"
	appDir   = "nsign"
)

// alternate profile files accepted by LoadProfile, in lookup order after FileName.
var yamlFileNames = []string{"config.yaml", "config.yml"}

// IPCConfig defines socket settings.
type IPCConfig struct {
	SocketPath string `toml:"socketPath" yaml:"socketPath"`
}

// StorageConfig defines SQLite tuning options.
type StorageConfig struct {
	DBPath      string `toml:"dbPath" yaml:"dbPath"`
	JournalMode string `toml:"journalMode" yaml:"journalMode"`
	Synchronous string `toml:"synchronous" yaml:"synchronous"`
}

// LoggingConfig defines basic logging knobs.
type LoggingConfig struct {
	Level       string `toml:"level" yaml:"level"`
	FilePath    string `toml:"filePath" yaml:"filePath"`
	FileMaxSize int    `toml:"fileMaxSizeMB" yaml:"fileMaxSizeMB"`
	FileBackups int    `toml:"fileMaxBackups" yaml:"fileMaxBackups"`
}

// CallbackConfig controls how outbound callback URLs are opened.
type CallbackConfig struct {
	OpenCommand string   `toml:"openCommand" yaml:"openCommand"`
	OpenSchemes []string `toml:"openSchemes" yaml:"openSchemes"`
}

// ProfileConfig aggregates service configuration for a profile.
type ProfileConfig struct {
	ProfileName string         `toml:"profileName" yaml:"profileName"`
	Storage     StorageConfig  `toml:"storage" yaml:"storage"`
	IPC         IPCConfig      `toml:"ipc" yaml:"ipc"`
	Logging     LoggingConfig  `toml:"logging" yaml:"logging"`
	Callback    CallbackConfig `toml:"callback" yaml:"callback"`
}

// DefaultProfile returns the settings written by init.
func DefaultProfile(name string) *ProfileConfig {
	return &ProfileConfig{
		ProfileName: name,
		Storage: StorageConfig{
			DBPath:      "nsign.db",
			JournalMode: "DELETE",
			Synchronous: "FULL",
		},
		IPC: IPCConfig{SocketPath: "nsignd.sock"},
		Logging: LoggingConfig{
			Level:       "info",
			FilePath:    "logs/nsignd.log",
			FileMaxSize: 10,
			FileBackups: 3,
		},
		Callback: CallbackConfig{
			OpenCommand: "xdg-open",
			OpenSchemes: []string{"http", "https"},
		},
	}
}

// Directory returns the default profile directory for name under the XDG
// config home.
func Directory(name string) string {
	if name == "" {
		name = "default"
	}
	return filepath.Join(xdg.ConfigHome, appDir, name)
}

// Load reads a profile file. Files ending in .yaml or .yml are decoded as
// YAML, everything else as TOML.
func Load(path string) (*ProfileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg ProfileConfig
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = toml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadProfile loads the configuration stored in a profile directory.
func LoadProfile(dir string) (*ProfileConfig, error) {
	path, err := FindProfileFile(dir)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// FindProfileFile returns the first configuration file present in dir.
func FindProfileFile(dir string) (string, error) {
	for _, name := range append([]string{FileName}, yamlFileNames...) {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no %s in %s: %w", FileName, dir, os.ErrNotExist)
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg *ProfileConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	}
	return toml.NewEncoder(f).Encode(cfg)
}

// ResolvePath makes p absolute relative to the profile directory.
func ResolvePath(profileDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(profileDir, p)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (cfg *ProfileConfig) validate() error {
	if cfg.ProfileName == "" {
		return fmt.Errorf("profileName required")
	}
	if cfg.Storage.DBPath == "" {
		return fmt.Errorf("storage.dbPath required")
	}
	if cfg.IPC.SocketPath == "" {
		return fmt.Errorf("ipc.socketPath required")
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.FileMaxSize < 0 || cfg.Logging.FileBackups < 0 {
		return fmt.Errorf("logging size limits must not be negative")
	}
	if cfg.Callback.OpenCommand == "" {
		cfg.Callback.OpenCommand = "xdg-open"
	}
	return nil
}
