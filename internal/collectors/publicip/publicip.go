// Package publicip periodically discovers the host's public IPv4 address
// for the Shared Snapshot's ancillary slot (spec.md §4.7, SPEC_FULL.md
// §4.9). Grounded on the pack's use of hashicorp/go-cleanhttp for a sane
// pooled HTTP client (99souls-ariadne has no direct analogue; the pattern
// is adopted from the retrieval pack's other GCP-token-fetching collector
// rather than the teacher itself).
package publicip

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"icmpmon/internal/snapshot"
	"icmpmon/internal/telemetry/logging"
	"icmpmon/internal/telemetry/metrics"
)

// Unknown is published when discovery fails for any reason.
const Unknown = "Unknown"

// DefaultEndpoint returns a bare IPv4 dotted-quad string over HTTPS.
const DefaultEndpoint = "https://api.ipify.org"

// Collector polls Endpoint on an interval and publishes the result.
type Collector struct {
	client   *http.Client
	snap     *snapshot.Shared
	metrics  *metrics.Registry
	log      logging.Logger
	endpoint string
	interval time.Duration
}

// Config tunes the collector.
type Config struct {
	Endpoint string
	Interval time.Duration
	Timeout  time.Duration
}

// New constructs a Collector using a cleanhttp-pooled client.
func New(snap *snapshot.Shared, reg *metrics.Registry, log logging.Logger, cfg Config) *Collector {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = cfg.Timeout
	return &Collector{client: client, snap: snap, metrics: reg, log: log, endpoint: cfg.Endpoint, interval: cfg.Interval}
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
	addr, err := c.fetch(ctx)
	if err != nil {
		c.log.WarnCtx(ctx, "public ip discovery failed, degrading to Unknown", "error", err)
		c.metrics.PublicIPFetchFailure.Inc()
		c.snap.SetPublicIPv4(Unknown)
		return
	}
	c.snap.SetPublicIPv4(addr)
}

func (c *Collector) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", httpStatusError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

type httpStatusError int

func (e httpStatusError) Error() string {
	return "publicip: unexpected status code " + http.StatusText(int(e))
}
