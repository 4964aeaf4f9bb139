package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by the Manager
const EnvPrefix = "WALLPAPER_"

// providerKeyEnv are the plain API key variables also honoured without prefix
var providerKeyEnv = map[string]string{
	"UNSPLASH_API_KEY":  "api_keys.unsplash",
	"WALLHAVEN_API_KEY": "api_keys.wallhaven",
	"PIXABAY_API_KEY":   "api_keys.pixabay",
}

// Manager handles configuration loading and parsing.
type Manager struct {
	k           *koanf.Koanf
	configPaths []string
	envFiles    []string
	explicit    bool
}

// NewManager creates a manager. An explicit configFile is the only file
// read and must exist; otherwise the default locations are searched.
func NewManager(configFile string) *Manager {
	m := &Manager{
		k:           koanf.New("."),
		configPaths: getDefaultConfigPaths(),
		envFiles:    []string{".env"},
	}
	if configFile != "" {
		m.configPaths = []string{configFile}
		m.explicit = true
	}
	return m
}

// Load fills cfg from, in increasing precedence: cfg's current values,
// config files, .env files, the environment and overrides. Override keys use
// the dotted koanf paths, for example "api_keys.unsplash".
func (m *Manager) Load(cfg *Config, overrides map[string]any) error {
	// 1. Load defaults from the struct
	if err := m.k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeConfig, "load defaults", err)
	}

	// 2. Config files
	if err := m.loadFiles(); err != nil {
		return err
	}

	// 3. .env files only fill variables that are not already set
	for _, path := range m.envFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return apperrors.Wrap(apperrors.ErrorTypeConfig, fmt.Sprintf("load %s", path), err)
		}
	}

	// 4. Environment
	if err := m.loadFromEnv(); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeConfig, "load environment", err)
	}

	// 5. Command line
	if len(overrides) > 0 {
		if err := m.k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return apperrors.Wrap(apperrors.ErrorTypeConfig, "load flags", err)
		}
	}

	if err := m.k.Unmarshal("", cfg); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeConfig, "decode configuration", err)
	}

	return cfg.Validate()
}

// String returns a value for the given key.
func (m *Manager) String(key string) string {
	return m.k.String(key)
}

// Keys returns every loaded key
func (m *Manager) Keys() []string {
	return m.k.Keys()
}

func (m *Manager) loadFiles() error {
	for _, path := range m.configPaths {
		err := m.loadFromFile(path)
		switch {
		case err == nil:
		case errors.Is(err, fs.ErrNotExist) && !m.explicit:
		default:
			return apperrors.Wrap(apperrors.ErrorTypeConfig, fmt.Sprintf("load config from %s", path), err)
		}
	}
	return nil
}

// loadFromFile loads configuration from a file.
func (m *Manager) loadFromFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	return m.k.Load(file.Provider(path), parser)
}

// loadFromEnv reads the plain provider key variables, then everything under
// EnvPrefix. A double underscore separates nesting levels so single
// underscores can stay inside key names: WALLPAPER_EVENTS__NATS__URL is
// events.nats.url and WALLPAPER_OUTPUT_DIR is output_dir.
func (m *Manager) loadFromEnv() error {
	err := m.k.Load(env.Provider("", ".", func(s string) string {
		return providerKeyEnv[s]
	}), nil)
	if err != nil {
		return err
	}

	return m.k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
}

// getDefaultConfigPaths returns the default config paths to check, lowest
// precedence first.
func getDefaultConfigPaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths,
			filepath.Join(dir, ServiceName, "config.json"),
			filepath.Join(dir, ServiceName, "config.yaml"),
		)
	}

	paths = append(paths,
		fmt.Sprintf("configs/%s.json", ServiceName),
		fmt.Sprintf("configs/%s.yaml", ServiceName),
		fmt.Sprintf("%s.json", ServiceName),
		fmt.Sprintf("%s.yaml", ServiceName),
	)

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		paths = append(paths, configPath)
	}
	return paths
}
