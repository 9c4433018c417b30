// Package interfaces periodically enumerates local network interfaces for
// the Shared Snapshot's ancillary slot (spec.md §4.7, §7). Grounded on the
// same periodic-collector shape as package publicip; enumeration itself
// uses net.Interfaces, the stdlib's only option here — no pack repo
// enumerates host NICs, so this is named rather than grounded
// (SPEC_FULL.md §4.9).
package interfaces

import (
	"context"
	"net"
	"time"

	"icmpmon/internal/snapshot"
	"icmpmon/internal/telemetry/logging"
)

// ErroName is the synthetic interface name/address published on enumeration
// failure (spec.md §7: "a synthetic (Erro, Erro) row").
const ErroName = "Erro"

// Enumerator abstracts host interface listing so it can be faked in tests.
type Enumerator interface {
	Interfaces() ([]net.Interface, error)
	Addrs(iface net.Interface) ([]net.Addr, error)
}

type netEnumerator struct{}

func (netEnumerator) Interfaces() ([]net.Interface, error) { return net.Interfaces() }
func (netEnumerator) Addrs(iface net.Interface) ([]net.Addr, error) { return iface.Addrs() }

// DefaultEnumerator uses the standard library.
func DefaultEnumerator() Enumerator { return netEnumerator{} }

// Collector polls the host's interface list on an interval.
type Collector struct {
	enum     Enumerator
	snap     *snapshot.Shared
	log      logging.Logger
	interval time.Duration
}

// Config tunes the collector.
type Config struct {
	Interval time.Duration
	Enum     Enumerator
}

// New constructs a Collector.
func New(snap *snapshot.Shared, log logging.Logger, cfg Config) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Enum == nil {
		cfg.Enum = DefaultEnumerator()
	}
	return &Collector{enum: cfg.Enum, snap: snap, log: log, interval: cfg.Interval}
}

// Run blocks, polling immediately and then every cfg.Interval, until ctx is
// cancelled.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

func (c *Collector) poll(ctx context.Context) {
	ifaces, err := c.enum.Interfaces()
	if err != nil {
		c.log.WarnCtx(ctx, "interface enumeration failed", "error", err)
		c.snap.SetInterfaces([]snapshot.InterfaceInfo{{Name: ErroName, Addr: ErroName}})
		return
	}

	out := make([]snapshot.InterfaceInfo, 0, len(ifaces))
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := c.enum.Addrs(iface)
		if err != nil || len(addrs) == 0 {
			continue
		}
		out = append(out, snapshot.InterfaceInfo{Name: iface.Name, Addr: firstIPv4(addrs)})
	}
	c.snap.SetInterfaces(out)
}

func firstIPv4(addrs []net.Addr) string {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip != nil {
			if v4 := ip.To4(); v4 != nil {
				return v4.String()
			}
		}
	}
	if len(addrs) > 0 {
		return addrs[0].String()
	}
	return ""
}
