package sources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ConfigCache loads source definitions from *.yml files and keeps them in
// memory for the scheduler and the API.
type ConfigCache struct {
	sourcesDir   string
	knownFormats map[string]bool
	cache        map[string]*Config
	mu           sync.RWMutex
}

// NewConfigCache builds a cache over sourcesDir. knownFormats is the set of
// registered decoder labels; a config declaring any other format is rejected.
func NewConfigCache(sourcesDir string, knownFormats []string) *ConfigCache {
	formats := make(map[string]bool, len(knownFormats))
	for _, f := range knownFormats {
		formats[f] = true
	}
	return &ConfigCache{
		sourcesDir:   sourcesDir,
		knownFormats: formats,
		cache:        make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source configuration loaded", "source", name,
			"enabled", config.Settings.Enabled, "format", config.Format)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(name string) (*Config, error) {
	configFile := cc.configFilePath(name)
	config, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	config.Name = name

	if err := cc.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.Name] = config

	return config, nil
}

func (cc *ConfigCache) GetConfig(name string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[name]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", name)
	}
	return config, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabled := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabled[k] = v
		}
	}
	return enabled
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Settings.ReimportInterval == 0 {
		config.Settings.ReimportInterval = 86400
	}

	return &config, nil
}

func (cc *ConfigCache) validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if config.URL == "" {
		return fmt.Errorf("source URL is required")
	}
	if config.Title == "" {
		config.Title = config.Name
	}

	if config.Settings.ReimportInterval < 0 {
		return fmt.Errorf("reimport interval must be non-negative")
	}

	if config.Format != "" && !cc.knownFormats[config.Format] {
		return fmt.Errorf("unknown format: %s", config.Format)
	}

	return nil
}

func (cc *ConfigCache) configFilePath(name string) string {
	return filepath.Join(cc.sourcesDir, name+".yml")
}
