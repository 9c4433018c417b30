package prober

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"icmpmon/internal/snapshot"
	"icmpmon/internal/store"
	"icmpmon/internal/telemetry/logging"
	"icmpmon/internal/telemetry/metrics"
	"icmpmon/internal/types"
)

// writeFakePing installs a tiny script named like the host's echo utility on
// PATH that prints ttl/time/bytes, and returns its basename for use as EchoBin.
func writeFakePing(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ping script targets unix shells")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "ping")
	body := "#!/bin/sh\necho '64 bytes from 127.0.0.1: icmp_seq=1 ttl=58 time=5.1 ms'\nexit 0\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return "ping"
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "icmp_monitor.sqlite3")
	s, err := store.Open(path, store.Config{}, logging.New(slog.Default()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPoolProbesOnceAndPublishesOkOutcome(t *testing.T) {
	echoBin := writeFakePing(t)
	st := openTestStore(t)
	snap := snapshot.New([]int64{1})
	reg := metrics.New()
	target := types.Target{ID: 1, Address: "127.0.0.1"}
	require.NoError(t, st.UpsertTarget(context.Background(), target))

	pool := New(st, snap, reg, logging.New(slog.Default()), Config{
		Interval: 50 * time.Millisecond,
		EchoBin:  echoBin,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	pool.Start(ctx, []types.Target{target})
	pool.Wait()

	outcome, ok := snap.Outcome(1)
	require.True(t, ok)
	require.Equal(t, types.StateOk, outcome.State)
	require.NotNil(t, outcome.LatencyMs)
	require.InDelta(t, 5.1, *outcome.LatencyMs, 0.001)
	require.NotNil(t, outcome.TTL)
	require.Equal(t, 58, *outcome.TTL)

	ws, err := st.QueryWindow(context.Background(), 1, types.Window1m)
	require.NoError(t, err)
	require.GreaterOrEqual(t, ws.Total, int64(1))
}

func TestResolveOncePublishesDNSErrorOnFailure(t *testing.T) {
	st := openTestStore(t)
	snap := snapshot.New([]int64{1})
	reg := metrics.New()
	target := types.Target{ID: 1, Address: "definitely-not-a-real-host.invalid"}
	require.NoError(t, st.UpsertTarget(context.Background(), target))

	pool := New(st, snap, reg, logging.New(slog.Default()), Config{
		Lookup: failingLookup{},
	})

	_, err := pool.resolveOnce(context.Background(), logging.New(slog.Default()), target)
	require.Error(t, err)

	outcome, ok := snap.Outcome(1)
	require.True(t, ok)
	require.Equal(t, types.StateDNSError, outcome.State)
}

type failingLookup struct{}

func (failingLookup) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	return nil, fmt.Errorf("lookup failed for %s", host)
}
