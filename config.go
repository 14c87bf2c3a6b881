package fscli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	defaults "github.com/Paranoid-AF/fscli/default"
)

// FileConfig is the on-disk configuration: a set of named profiles.
type FileConfig struct {
	Profiles map[string]Profile `yaml:"fs_cli" toml:"fs_cli"`
}

// Profile is one named connection profile. Every field is optional; unset
// fields take the built-in defaults when the profile is resolved.
type Profile struct {
	Host                *string           `yaml:"host,omitempty" toml:"host,omitempty"`
	Port                *int              `yaml:"port,omitempty" toml:"port,omitempty"`
	Password            *string           `yaml:"password,omitempty" toml:"password,omitempty"`
	User                *string           `yaml:"user,omitempty" toml:"user,omitempty"`
	Debug               *int              `yaml:"debug,omitempty" toml:"debug,omitempty"`
	Color               *string           `yaml:"color,omitempty" toml:"color,omitempty"`
	HistoryFile         *string           `yaml:"history_file,omitempty" toml:"history_file,omitempty"`
	Timeout             *int              `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Retry               *bool             `yaml:"retry,omitempty" toml:"retry,omitempty"`
	Reconnect           *bool             `yaml:"reconnect,omitempty" toml:"reconnect,omitempty"`
	Events              *bool             `yaml:"events,omitempty" toml:"events,omitempty"`
	LogLevel            *string           `yaml:"log_level,omitempty" toml:"log_level,omitempty"`
	Quiet               *bool             `yaml:"quiet,omitempty" toml:"quiet,omitempty"`
	Macros              map[string]string `yaml:"macros,omitempty" toml:"macros,omitempty"`
	MaxAutoCompleteUUID *int              `yaml:"max_auto_complete_uuid,omitempty" toml:"max_auto_complete_uuid,omitempty"`
}

// AppConfig is the fully resolved configuration handed to the session.
type AppConfig struct {
	Host                string
	Port                int
	Password            string
	User                string
	Debug               DebugLevel
	Color               ColorMode
	HistoryFile         string
	Timeout             time.Duration
	Retry               bool
	Reconnect           bool
	Events              bool
	LogLevel            LogLevel
	Quiet               bool
	Macros              map[string]string
	Execute             []string
	MaxAutoCompleteUUID int
}

const (
	defaultHost                = "localhost"
	defaultPort                = 8021
	defaultPassword            = "ClueCon"
	defaultTimeoutMillis       = 2000
	defaultMaxAutoCompleteUUID = 20
	configFileName             = "fs_cli.yaml"
)

// ErrInvalidConfig wraps every rejected configuration value.
var ErrInvalidConfig = errors.New("invalid configuration")

// ParseTimeout converts a millisecond timeout, which must be positive.
func ParseTimeout(ms int) (time.Duration, error) {
	if ms <= 0 {
		return 0, fmt.Errorf("%w: timeout must be a positive number of milliseconds, got %d", ErrInvalidConfig, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ConfigDir returns the config directory path.
// Resolution order: $FS_CLI_CONFIG_DIR > $XDG_CONFIG_HOME > ~/.config
func ConfigDir() string {
	if dir := os.Getenv("FS_CLI_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return configHome
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "fs_cli-config")
	}
	return filepath.Join(home, ".config")
}

// ConfigPaths returns the candidate config files in lookup order. An explicit
// path (from --config) is the only candidate when given.
func ConfigPaths(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	var paths []string
	if env := os.Getenv("FS_CLI_CONFIG"); env != "" {
		paths = append(paths, env)
	}
	dir := ConfigDir()
	paths = append(paths,
		filepath.Join(dir, configFileName),
		filepath.Join(dir, "fs_cli.toml"),
	)
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".fs_cli.yaml"))
	}
	return append(paths, "/etc/freeswitch/fs_cli.yaml")
}

// DefaultConfig returns the configuration from the embedded default_config.yaml.
func DefaultConfig() *FileConfig {
	cfg, err := decodeConfig(configFileName, defaults.DefaultConfigYAML)
	if err != nil {
		panic("fscli: invalid embedded default_config.yaml: " + err.Error())
	}
	return cfg
}

// LoadConfig loads the first existing config file and returns it with the
// path it came from. When nothing exists the embedded default is written to
// ConfigDir (best effort) and returned with an empty path.
func LoadConfig(explicit string) (*FileConfig, string, error) {
	for _, path := range ConfigPaths(explicit) {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, "", fmt.Errorf("read config file %s: %w", path, err)
		}
		cfg, err := decodeConfig(path, data)
		if err != nil {
			return nil, "", fmt.Errorf("parse config file %s: %w", path, err)
		}
		return cfg, path, nil
	}

	if explicit == "" {
		dir := ConfigDir()
		if err := os.MkdirAll(dir, 0755); err == nil {
			_ = os.WriteFile(filepath.Join(dir, configFileName), defaults.DefaultConfigYAML, 0644)
		}
	}
	return DefaultConfig(), "", nil
}

func decodeConfig(path string, data []byte) (*FileConfig, error) {
	var cfg FileConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}
	return &cfg, nil
}

// Profile returns the named profile.
func (c *FileConfig) Profile(name string) (Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile '%s' not found", name)
	}
	return p, nil
}

// ProfileNames returns the profile names, sorted.
func (c *FileConfig) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve converts the profile into typed values, filling defaults and
// applying environment overrides.
func (p Profile) Resolve() (*AppConfig, error) {
	cfg := &AppConfig{
		Host:                ResolveHost(p),
		Port:                intOr(p.Port, defaultPort),
		Password:            ResolvePassword(p),
		User:                stringOr(p.User, ""),
		HistoryFile:         stringOr(p.HistoryFile, ""),
		Retry:               boolOr(p.Retry, false),
		Reconnect:           boolOr(p.Reconnect, false),
		Events:              boolOr(p.Events, false),
		Quiet:               boolOr(p.Quiet, false),
		Macros:              BuildMacros(p.Macros),
		MaxAutoCompleteUUID: intOr(p.MaxAutoCompleteUUID, defaultMaxAutoCompleteUUID),
	}

	debug, err := ParseDebugLevel(fmt.Sprint(intOr(p.Debug, 0)))
	if err != nil {
		return nil, err
	}
	cfg.Debug = debug

	if cfg.Timeout, err = ParseTimeout(intOr(p.Timeout, defaultTimeoutMillis)); err != nil {
		return nil, err
	}

	if cfg.Color, err = ParseColorMode(stringOr(p.Color, "line")); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = ParseLogLevel(stringOr(p.LogLevel, "debug")); err != nil {
		return nil, err
	}
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = DefaultHistoryFile()
	}
	return cfg, nil
}

// ResolveHost returns the host to connect to.
// Priority: $FS_CLI_HOST env > profile value > localhost.
func ResolveHost(p Profile) string {
	if host := os.Getenv("FS_CLI_HOST"); host != "" {
		return host
	}
	return stringOr(p.Host, defaultHost)
}

// ResolvePassword returns the ESL password.
// Priority: $FS_CLI_PASSWORD env > profile value > ClueCon.
func ResolvePassword(p Profile) string {
	if pw := os.Getenv("FS_CLI_PASSWORD"); pw != "" {
		return pw
	}
	return stringOr(p.Password, defaultPassword)
}

// DefaultHistoryFile is ~/.fs_cli_history, or ./.fs_cli_history without a home.
func DefaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".fs_cli_history")
}

// DefaultMacros returns the stock F1-F12 bindings.
func DefaultMacros() map[string]string {
	return map[string]string{
		"f1":  "help",
		"f2":  "status",
		"f3":  "show channels",
		"f4":  "show calls",
		"f5":  "sofia status",
		"f6":  "reloadxml",
		"f7":  "/log console",
		"f8":  "/log debug",
		"f9":  "sofia status profile internal",
		"f10": "fsctl pause",
		"f11": "fsctl resume",
		"f12": "version",
	}
}

// BuildMacros overlays user bindings on the defaults. Keys are lowercased.
func BuildMacros(overrides map[string]string) map[string]string {
	macros := DefaultMacros()
	for key, value := range overrides {
		macros[strings.ToLower(key)] = value
	}
	return macros
}

// FunctionKey resolves a typed function-key name such as "F2" to its macro.
func FunctionKey(input string, macros map[string]string) (string, bool) {
	cmd, ok := macros[strings.ToLower(strings.TrimSpace(input))]
	return cmd, ok
}

func stringOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
