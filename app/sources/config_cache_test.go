package sources

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSourceConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestConfigCacheLoadValidConfig(t *testing.T) {
	tempDir := t.TempDir()

	writeSourceConfig(t, tempDir, "calendar", `
title: "City Calendar"
url: "https://example.com/events.ics"
format: "ical"

settings:
  enabled: true
  reimport_interval: 3600
  extract_descriptions: true
`)

	configCache := NewConfigCache(tempDir, []string{"ical", "hcalendar"})
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if configCache.GetConfigCount() != 1 {
		t.Errorf("Expected 1 config, got %d", configCache.GetConfigCount())
	}

	config, err := configCache.GetConfig("calendar")
	if err != nil {
		t.Fatal(err)
	}

	if config.Name != "calendar" {
		t.Errorf("Expected name 'calendar', got '%s'", config.Name)
	}
	if config.Title != "City Calendar" {
		t.Errorf("Expected title 'City Calendar', got '%s'", config.Title)
	}
	if config.URL != "https://example.com/events.ics" {
		t.Errorf("Expected URL 'https://example.com/events.ics', got '%s'", config.URL)
	}
	if config.Format != "ical" {
		t.Errorf("Expected format 'ical', got '%s'", config.Format)
	}
	if !config.Settings.Enabled {
		t.Error("Expected config to be enabled")
	}
	if config.Settings.ReimportInterval != 3600 {
		t.Errorf("Expected reimport interval 3600, got %d", config.Settings.ReimportInterval)
	}
	if !config.Settings.ExtractDescriptions {
		t.Error("Expected description extraction to be on")
	}
}

func TestConfigCacheLoadConfigWithDefaults(t *testing.T) {
	tempDir := t.TempDir()

	writeSourceConfig(t, tempDir, "minimal", `
url: "https://example.com/events.ics"
`)

	configCache := NewConfigCache(tempDir, nil)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	config, err := configCache.GetConfig("minimal")
	if err != nil {
		t.Fatal(err)
	}

	if config.Title != "minimal" {
		t.Errorf("Expected title to default to the name, got '%s'", config.Title)
	}
	if config.Settings.ReimportInterval != 86400 {
		t.Errorf("Expected default reimport interval 86400, got %d", config.Settings.ReimportInterval)
	}
	if config.Format != "" {
		t.Errorf("Expected auto-detect format, got '%s'", config.Format)
	}
	if config.Settings.Enabled {
		t.Error("Expected config to be disabled by default")
	}
}

func TestConfigCacheRejectsMissingURL(t *testing.T) {
	tempDir := t.TempDir()

	writeSourceConfig(t, tempDir, "nourl", `
title: "No URL"
`)

	configCache := NewConfigCache(tempDir, nil)
	if err := configCache.Run(); err == nil {
		t.Error("Expected an error for a config without a URL")
	}
}

func TestConfigCacheRejectsUnknownFormat(t *testing.T) {
	tempDir := t.TempDir()

	writeSourceConfig(t, tempDir, "weird", `
url: "https://example.com/events"
format: "carrier-pigeon"
`)

	configCache := NewConfigCache(tempDir, []string{"ical"})
	if err := configCache.Run(); err == nil {
		t.Error("Expected an error for an unknown format")
	}
}

func TestConfigCacheRejectsNegativeInterval(t *testing.T) {
	tempDir := t.TempDir()

	writeSourceConfig(t, tempDir, "negative", `
url: "https://example.com/events"

settings:
  reimport_interval: -60
`)

	configCache := NewConfigCache(tempDir, nil)
	if err := configCache.Run(); err == nil {
		t.Error("Expected an error for a negative reimport interval")
	}
}

func TestConfigCacheGetEnabledConfigs(t *testing.T) {
	tempDir := t.TempDir()

	writeSourceConfig(t, tempDir, "on", `
url: "https://example.com/on.ics"

settings:
  enabled: true
`)
	writeSourceConfig(t, tempDir, "off", `
url: "https://example.com/off.ics"

settings:
  enabled: false
`)

	configCache := NewConfigCache(tempDir, nil)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if configCache.GetConfigCount() != 2 {
		t.Errorf("Expected 2 configs, got %d", configCache.GetConfigCount())
	}

	enabled := configCache.GetEnabledConfigs()
	if len(enabled) != 1 {
		t.Fatalf("Expected 1 enabled config, got %d", len(enabled))
	}
	if _, ok := enabled["on"]; !ok {
		t.Error("Expected the enabled config to be 'on'")
	}
}

func TestConfigCacheMissingDirectory(t *testing.T) {
	configCache := NewConfigCache(filepath.Join(t.TempDir(), "does-not-exist"), nil)
	if err := configCache.Run(); err != nil {
		t.Errorf("Expected a missing directory to be tolerated, got %v", err)
	}
}

func TestConfigCacheGetConfigNotFound(t *testing.T) {
	configCache := NewConfigCache(t.TempDir(), nil)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}
	if _, err := configCache.GetConfig("ghost"); err == nil {
		t.Error("Expected an error for an unknown config name")
	}
}
