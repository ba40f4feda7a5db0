package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "remote:\n  base_url: http://localhost:5000\n")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Provider.Mode != "auto" {
		t.Errorf("mode = %q, want auto", c.Provider.Mode)
	}
	if c.Remote.ProbeTimeout != 3*time.Second {
		t.Errorf("probe timeout = %v", c.Remote.ProbeTimeout)
	}
	if len(c.Symbols) != len(DefaultSymbols) || c.Symbols[0] != "AAPL" {
		t.Errorf("symbols = %v", c.Symbols)
	}
	if c.Snapshots.Backend != "none" {
		t.Errorf("backend = %q", c.Snapshots.Backend)
	}
	if c.Kafka.Consumer.Store != "sqlite" || c.Kafka.Consumer.GroupID != "stocksight-sink" {
		t.Errorf("consumer = %+v", c.Kafka.Consumer)
	}
	if got := c.RemoteAPIBase(); got != "http://localhost:5000/api" {
		t.Errorf("api base = %q", got)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing base url": "provider:\n  mode: remote\n",
		"bad mode":         "provider:\n  mode: sometimes\n",
		"bad backend":      "provider:\n  mode: synthetic\nsnapshots:\n  backend: postgres\n",
		"kafka no brokers": "provider:\n  mode: synthetic\nsnapshots:\n  backend: kafka\n",
		"bad sink store":   "provider:\n  mode: synthetic\nkafka:\n  consumer:\n    store: mongo\n",
		"bad offset":       "provider:\n  mode: synthetic\nkafka:\n  consumer:\n    start_offset: middle\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestSyntheticModeNeedsNoRemote(t *testing.T) {
	c, err := Load(writeConfig(t, "provider:\n  mode: synthetic\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Remote.BaseURL != "" {
		t.Errorf("unexpected base url %q", c.Remote.BaseURL)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "remote:\n  base_url: http://localhost:5000\n")
	t.Setenv("REMOTE_BASE_URL", "http://predict:9000/")
	t.Setenv("PROVIDER_MODE", "remote")
	t.Setenv("SYMBOLS", " aapl, MSFT ,,")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("SNAPSHOT_BACKEND", "sqlite")

	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.RemoteAPIBase() != "http://predict:9000/api" {
		t.Errorf("api base = %q", c.RemoteAPIBase())
	}
	if c.Provider.Mode != "remote" {
		t.Errorf("mode = %q", c.Provider.Mode)
	}
	if len(c.Symbols) != 2 || c.Symbols[0] != "aapl" || c.Symbols[1] != "MSFT" {
		t.Errorf("symbols = %v", c.Symbols)
	}
	if !c.Cache.Redis.Enabled || c.Cache.Redis.Host != "cache" || c.Cache.Redis.Port != 6380 {
		t.Errorf("redis = %+v", c.Cache.Redis)
	}
	if c.Snapshots.Backend != "sqlite" {
		t.Errorf("backend = %q", c.Snapshots.Backend)
	}
}

func TestLoadWithEnvRevalidates(t *testing.T) {
	path := writeConfig(t, "provider:\n  mode: synthetic\n")
	t.Setenv("PROVIDER_MODE", "remote")

	if _, err := LoadWithEnv(path); err == nil {
		t.Fatalf("expected error for remote mode without base url")
	}
}
