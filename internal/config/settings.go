// Package config loads the monitor's global tunables from an optional YAML
// settings file, mirroring the split the teacher engine draws between its
// fixed Config struct (engine/config.go) and its layered configx resolver:
// here the split is between the per-target JSON registry file (owned by
// package registry) and this process-wide settings file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds every global, read-only-after-startup tunable named in
// spec.md §5.
type Settings struct {
	ProbeInterval           time.Duration `yaml:"probe_interval"`
	StatsInterval           time.Duration `yaml:"stats_interval"`
	RetentionWindow         time.Duration `yaml:"retention_window"`
	StorePageCacheKB        int           `yaml:"store_page_cache_kb"`
	PublicIPInterval        time.Duration `yaml:"public_ip_interval"`
	InterfaceEnumInterval   time.Duration `yaml:"interface_enum_interval"`
	HTTPClientTimeout       time.Duration `yaml:"http_client_timeout"`
	MetricsListenAddr       string        `yaml:"metrics_listen_addr"`
	EchoUtility             string        `yaml:"echo_utility"`
	TracingEnabled          bool          `yaml:"tracing_enabled"`
	OneMinuteTotalThreshold int           `yaml:"one_minute_total_threshold"`
}

// Defaults returns the spec-mandated defaults: 1.5s probe cadence, 15s stats
// passes, 7-day retention, ~10MB page cache, a 1m-window minimum sample
// count of 2 (spec.md §4.5 — the open question in §9 is resolved here by
// leaving the stock minimum of 2 and documenting the flap risk in DESIGN.md).
func Defaults() Settings {
	return Settings{
		ProbeInterval:           1500 * time.Millisecond,
		StatsInterval:           15 * time.Second,
		RetentionWindow:         7 * 24 * time.Hour,
		StorePageCacheKB:        10240,
		PublicIPInterval:        15 * time.Second,
		InterfaceEnumInterval:   15 * time.Second,
		HTTPClientTimeout:       5 * time.Second,
		MetricsListenAddr:       ":9107",
		EchoUtility:             defaultEchoUtility(),
		TracingEnabled:          false,
		OneMinuteTotalThreshold: 2,
	}
}

// Load reads a YAML settings file at path, overlaying it onto Defaults().
// A missing file is not an error: the defaults apply unchanged, matching
// spec.md's treatment of absent configuration being non-fatal for anything
// but the target registry.
func Load(path string) (Settings, error) {
	s := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("config: read settings file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("config: parse settings file %s: %w", path, err)
	}
	return s, nil
}
