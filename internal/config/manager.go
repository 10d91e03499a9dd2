package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/aelpxy/dockup/internal/fault"
	"github.com/aelpxy/dockup/internal/utils"
	"github.com/aelpxy/dockup/pkg/models"
)

const EnvConfigPath = "DOCKUP_CONFIG"

// DefaultPath is $DOCKUP_CONFIG, else ~/.dockup/config.toml.
func DefaultPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".dockup", "config.toml"), nil
}

// Manager owns the persisted run configuration. When the TOML file exists
// it is used as is; otherwise the configuration comes from the
// environment. The two sources are never merged.
type Manager struct {
	configPath string
	config     *models.RunConfig
	fromFile   bool
	lookupEnv  func(string) (string, bool)
}

func NewManager(configPath string) *Manager {
	defaults := Defaults()
	return &Manager{
		configPath: configPath,
		config:     &defaults,
		lookupEnv:  os.LookupEnv,
	}
}

func (m *Manager) Path() string {
	return m.configPath
}

// FromFile reports whether the last Load read the TOML file.
func (m *Manager) FromFile() bool {
	return m.fromFile
}

func (m *Manager) Load() error {
	config := Defaults()

	_, err := os.Stat(m.configPath)
	switch {
	case err == nil:
		if _, err := toml.DecodeFile(m.configPath, &config); err != nil {
			return fault.New(fault.KindConfig, "load config", fmt.Errorf("failed to decode %s: %w", m.configPath, err))
		}
		m.fromFile = true
	case errors.Is(err, os.ErrNotExist):
		if err := applyEnv(&config, m.lookupEnv); err != nil {
			return err
		}
		m.fromFile = false
	default:
		return fault.New(fault.KindConfig, "load config", fmt.Errorf("failed to access %s: %w", m.configPath, err))
	}

	expandPaths(&config)
	m.config = &config
	return nil
}

// Save writes the configuration with owner-only permissions since it holds
// credentials.
func (m *Manager) Save() error {
	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m.config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := utils.AtomicWriteFile(m.configPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	m.fromFile = true
	return nil
}

func (m *Manager) GetConfig() *models.RunConfig {
	return m.config
}

// Snapshot returns a copy for one run.
func (m *Manager) Snapshot() models.RunConfig {
	return *m.config
}

// Set assigns one dotted key, for example "ssh.port".
func (m *Manager) Set(key, value string) error {
	f, ok := lookupField(key)
	if !ok {
		return fault.Newf(fault.KindConfig, "set "+key, "unknown key (valid keys: %s)", keyList())
	}
	if err := f.set(m.config, value); err != nil {
		return fault.New(fault.KindConfig, "set "+key, err)
	}
	expandPaths(m.config)
	return nil
}

// Get returns one dotted key rendered as text.
func (m *Manager) Get(key string) (string, error) {
	f, ok := lookupField(key)
	if !ok {
		return "", fault.Newf(fault.KindConfig, "get "+key, "unknown key")
	}
	return f.get(m.config), nil
}

// Entries lists every key with its value, secrets masked.
func (m *Manager) Entries() []Entry {
	entries := make([]Entry, 0, len(fields))
	for _, f := range fields {
		value := f.get(m.config)
		if f.secret && value != "" {
			value = utils.MaskSensitive(value, 0)
		}
		entries = append(entries, Entry{Key: f.key, Value: value, Env: f.env})
	}
	return entries
}

type Entry struct {
	Key   string
	Value string
	Env   string
}

func (m *Manager) Validate() error {
	return Validate(m.config)
}

func expandPaths(config *models.RunConfig) {
	config.DockerParent = utils.ExpandHome(config.DockerParent)
	config.SSH.Key = utils.ExpandHome(config.SSH.Key)
	config.SSH.KnownHosts = utils.ExpandHome(config.SSH.KnownHosts)
	config.Backup.ScratchDir = utils.ExpandHome(config.Backup.ScratchDir)
}
