package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, Defaults(), s)
}

func TestLoadOverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icmp_monitor.settings.yaml")
	require.NoError(t, writeFile(path, "probe_interval: 3s\nmetrics_listen_addr: \":9999\"\n"))

	s, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, s.ProbeInterval)
	require.Equal(t, ":9999", s.MetricsListenAddr)
	// Untouched fields keep their defaults.
	require.Equal(t, Defaults().StatsInterval, s.StatsInterval)
}

func TestLoadMalformedYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, writeFile(path, "probe_interval: [not a duration"))

	_, err := Load(path)
	require.Error(t, err)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
