package cfg

import (
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	Version = "1.2.3"
	if got := GetVersion(); got != "1.2.3" {
		t.Errorf("Expected version '1.2.3', got '%s'", got)
	}

	Version = ""
	if got := GetVersion(); got != "unknown" {
		t.Errorf("Expected 'unknown' for an empty version, got '%s'", got)
	}
}

func TestSetAndGet(t *testing.T) {
	original := globalCfg
	defer func() { globalCfg = original }()

	want := &Cfg{Port: "9090", WorkerCount: 2}
	Set(want)

	if got := Get(); got != want {
		t.Errorf("Expected the configuration set via Set, got %+v", got)
	}
}

func TestGetPanicsWhenUnloaded(t *testing.T) {
	original := globalCfg
	defer func() { globalCfg = original }()

	globalCfg = nil

	defer func() {
		if recover() == nil {
			t.Error("Expected Get to panic before Load")
		}
	}()
	Get()
}

func TestApplyTimezone(t *testing.T) {
	original := time.Local
	defer func() { time.Local = original }()

	if err := applyTimezone("America/New_York"); err != nil {
		t.Skipf("Timezone database unavailable: %v", err)
	}
	if time.Local.String() != "America/New_York" {
		t.Errorf("Expected local timezone America/New_York, got %s", time.Local)
	}

	if err := applyTimezone("Not/AZone"); err == nil {
		t.Error("Expected an error for an unknown timezone")
	}
}
