// Package prober runs one logical prober per Target (spec.md §4.4), shelling
// out to the host echo utility and publishing raw outcomes to both the Store
// and the Shared Snapshot. Grounded on the teacher engine's per-stage worker
// loop shape (engine/internal/pipeline/pipeline.go: a goroutine per worker,
// select on a work channel vs ctx.Done, generalized here from one loop to
// one goroutine per Target with no queue — probers are self-paced, not
// fed work).
package prober

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"icmpmon/internal/resolver"
	"icmpmon/internal/snapshot"
	"icmpmon/internal/store"
	"icmpmon/internal/telemetry/logging"
	"icmpmon/internal/telemetry/metrics"
	"icmpmon/internal/telemetry/tracing"
	"icmpmon/internal/types"
)

// ReprobePolicy controls what a prober does after a DNS resolution failure.
// spec.md §4.4 step 1 leaves this an explicit implementation choice.
type ReprobePolicy int

const (
	// RetryForever keeps resolving on every loop iteration, publishing
	// DnsError each time it still fails. Chosen as the default: a transient
	// resolver outage (DHCP/DNS restart) should self-heal without operator
	// intervention, and a permanently broken hostname still surfaces as a
	// steady stream of DnsError rather than a silently dead prober.
	RetryForever ReprobePolicy = iota
	// ExitOnFailure resolves once at startup and terminates the prober
	// goroutine on failure, relying on the caller to notice the target
	// stayed in DnsError and restart it externally.
	ExitOnFailure
)

const timestampLayout = "15:04:05.000"

// Pool runs and owns one goroutine per Target.
type Pool struct {
	store    *store.Store
	snap     *snapshot.Shared
	metrics  *metrics.Registry
	log      logging.Logger
	lookup   resolver.Lookup
	tracer   *tracing.Tracer
	interval time.Duration
	echoBin  string
	policy   ReprobePolicy

	wg sync.WaitGroup
}

// Config configures a Pool. Zero values fall back to spec.md defaults.
type Config struct {
	Interval time.Duration
	EchoBin  string
	Policy   ReprobePolicy
	Lookup   resolver.Lookup
	Tracer   *tracing.Tracer
}

// New constructs a Pool.
func New(st *store.Store, snap *snapshot.Shared, reg *metrics.Registry, log logging.Logger, cfg Config) *Pool {
	if cfg.Interval <= 0 {
		cfg.Interval = 1500 * time.Millisecond
	}
	if cfg.EchoBin == "" {
		cfg.EchoBin = "ping"
	}
	if cfg.Lookup == nil {
		cfg.Lookup = resolver.DefaultLookup()
	}
	return &Pool{
		store: st, snap: snap, metrics: reg, log: log,
		lookup: cfg.Lookup, tracer: cfg.Tracer, interval: cfg.Interval, echoBin: cfg.EchoBin, policy: cfg.Policy,
	}
}

// Start launches one goroutine per target. It returns immediately; probers
// run until ctx is cancelled. Call Wait to block until they have all exited.
func (p *Pool) Start(ctx context.Context, targets []types.Target) {
	for _, t := range targets {
		p.wg.Add(1)
		go p.run(ctx, t)
	}
}

// Wait blocks until every prober goroutine has exited.
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, target types.Target) {
	defer p.wg.Done()
	log := p.log.With("target_id", target.ID, "address", target.Address)

	resolvedIP := target.Address
	if !resolver.IsLiteralIPv4(target.Address) {
		ip, err := p.resolveOnce(ctx, log, target)
		if err != nil {
			if p.policy == ExitOnFailure {
				return
			}
		} else {
			resolvedIP = ip
		}
	}

	checked, err := lookPathOnce(p.echoBin)
	if err != nil {
		log.ErrorCtx(ctx, "echo utility not installed, prober terminating", "echo_bin", p.echoBin, "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if resolvedIP == "" || (!resolver.IsLiteralIPv4(target.Address) && p.policy == RetryForever) {
			ip, err := p.resolveOnce(ctx, log, target)
			if err != nil {
				p.sleep(ctx)
				continue
			}
			resolvedIP = ip
		}

		p.probeOnce(ctx, log, checked, target, resolvedIP)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

func (p *Pool) resolveOnce(ctx context.Context, log logging.Logger, target types.Target) (string, error) {
	ip, err := resolver.Resolve(ctx, p.lookup, target.Address)
	if err != nil {
		log.WarnCtx(ctx, "dns resolution failed", "error", err)
		prev, _ := p.snap.Outcome(target.ID)
		outcome := types.LastOutcome{
			State:          types.StateDNSError,
			TimestampText:  "dns_fail:" + time.Now().Format(timestampLayout),
			RecentRawLines: prev.RecentRawLines,
		}
		p.snap.SetOutcome(target.ID, outcome)
		if werr := p.store.AppendResult(ctx, types.ProbeResult{
			TargetID: target.ID, Timestamp: time.Now(), Success: false,
		}); werr != nil {
			p.metrics.StoreWriteFailures.Inc()
			log.ErrorCtx(ctx, "store write failed", "error", werr)
		}
		p.metrics.ProbesTotal.WithLabelValues(targetLabel(target.ID), "dns_error").Inc()
		return "", err
	}
	return ip, nil
}

func (p *Pool) probeOnce(ctx context.Context, log logging.Logger, echoBin string, target types.Target, resolvedIP string) {
	ctx, span := p.tracer.StartSpan(ctx, "prober.probe")
	span.SetAttributes(
		attribute.Int64("icmpmon.target_id", target.ID),
		attribute.String("icmpmon.resolved_ip", resolvedIP),
	)
	defer span.End()

	stdout, runErr := invokeEcho(ctx, echoBin, resolvedIP)
	now := time.Now()
	prev, _ := p.snap.Outcome(target.ID)

	if runErr == nil {
		fields := parseEchoOutput(stdout)
		outcome := types.LastOutcome{
			State:          types.StateOk,
			LatencyMs:      fields.LatencyMs,
			TTL:            fields.TTL,
			Bytes:          fields.Bytes,
			TimestampText:  now.Format(timestampLayout),
			RecentRawLines: prev.RecentRawLines,
		}
		if resolvedIP != target.Address {
			outcome.ResolvedIP = resolvedIP
		}
		outcome.PushRawLine(stdout)
		p.snap.SetOutcome(target.ID, outcome)

		if err := p.store.AppendResult(ctx, types.ProbeResult{
			TargetID: target.ID, Timestamp: now, Success: true,
			LatencyMs: fields.LatencyMs, TTL: fields.TTL, Bytes: fields.Bytes,
		}); err != nil {
			p.metrics.StoreWriteFailures.Inc()
			log.ErrorCtx(ctx, "store write failed", "error", err)
		}
		p.metrics.ProbesTotal.WithLabelValues(targetLabel(target.ID), "ok").Inc()
		if fields.LatencyMs != nil {
			p.metrics.ProbeLatencyMs.WithLabelValues(targetLabel(target.ID)).Observe(*fields.LatencyMs)
		}
		return
	}

	outcome := types.LastOutcome{
		State:          types.StateError,
		TimestampText:  "fail:" + now.Format(timestampLayout),
		RecentRawLines: prev.RecentRawLines,
	}
	if resolvedIP != target.Address {
		outcome.ResolvedIP = resolvedIP
	}
	outcome.PushRawLine(stdout)
	p.snap.SetOutcome(target.ID, outcome)

	if err := p.store.AppendResult(ctx, types.ProbeResult{
		TargetID: target.ID, Timestamp: now, Success: false,
	}); err != nil {
		p.metrics.StoreWriteFailures.Inc()
		log.ErrorCtx(ctx, "store write failed", "error", err)
	}
	p.metrics.ProbesTotal.WithLabelValues(targetLabel(target.ID), "error").Inc()
}

func (p *Pool) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.interval):
	}
}

func targetLabel(id int64) string { return fmt.Sprintf("%d", id) }

func lookPathOnce(bin string) (string, error) { return exec.LookPath(bin) }

// invokeEcho runs the host echo utility with "send one request" semantics
// (spec.md §4.4 step 2) and returns combined stdout even on a non-zero exit,
// since failure output may still carry diagnostic text worth keeping in the
// ring buffer.
func invokeEcho(ctx context.Context, resolvedBin, addr string) (string, error) {
	args := echoArgs(addr)
	cmd := exec.CommandContext(ctx, resolvedBin, args...)
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return text, fmt.Errorf("prober: invoke %s: %w", resolvedBin, err)
	}
	return text, err
}

// echoArgs builds "send one request" arguments for the host's ping variant.
func echoArgs(addr string) []string {
	if runtime.GOOS == "windows" {
		return []string{"-n", "1", addr}
	}
	return []string{"-c", "1", addr}
}
