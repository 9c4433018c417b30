// Package types defines the domain model shared across the monitor: targets,
// raw probe results, derived window statistics, and the per-target snapshot
// state consumed by the (out-of-scope) view layer.
package types

import "time"

// ProbeKind enumerates the probe types a Target can carry. Kept as a set
// for forward compatibility even though only "icmp" exists today.
type ProbeKind string

// IcmpProbe is the only probe kind implemented by this monitor.
const IcmpProbe ProbeKind = "icmp"

// Target is a stable, rarely-changing monitoring subject.
type Target struct {
	ID          int64
	Address     string
	Description string
	Tests       []ProbeKind
}

// Window identifies one of the three rolling aggregate windows.
type Window string

const (
	Window1m  Window = "1m"
	Window5m  Window = "5m"
	Window15m Window = "15m"
)

// ChosenWindow extends Window with the "collecting" state used once no
// window has enough samples yet.
type ChosenWindow string

const (
	ChosenWindow1m         ChosenWindow = "1m"
	ChosenWindow5m         ChosenWindow = "5m"
	ChosenWindow15m        ChosenWindow = "15m"
	ChosenWindowCollecting ChosenWindow = "collecting"
)

// ProbeResult is a single append-only probe outcome as persisted by the Store.
type ProbeResult struct {
	TargetID  int64
	Timestamp time.Time
	Success   bool
	LatencyMs *float64
	TTL       *int
	Bytes     *int
}

// WindowStats is the aggregate computed over one window for one target.
// Every numeric field may be nil when the window has no qualifying samples.
type WindowStats struct {
	Window      Window
	AvgLatency  *float64
	MinLatency  *float64
	MaxLatency  *float64
	SuccessRate *float64
	Total       int64
	Successes   int64
	Failures    int64
	Variance    *float64 // only populated for Window1m
}

// TargetSnapshot is the derived, adaptively-windowed view for one target.
type TargetSnapshot struct {
	TargetID     int64
	ChosenWindow ChosenWindow
	AvgLatency   *float64
	SuccessRate  *float64
	Total        int64
	StdDev       float64 // sqrt(variance); non-zero only when ChosenWindow == "1m"
	UpdatedAt    time.Time
}

// OutcomeState is the state of the most recent probe for a target.
type OutcomeState string

const (
	StateWaiting  OutcomeState = "Waiting"
	StateOk       OutcomeState = "Ok"
	StateError    OutcomeState = "Error"
	StateDNSError OutcomeState = "DnsError"
)

// LastOutcome is the in-memory record of the most recent probe attempt.
type LastOutcome struct {
	State          OutcomeState
	LatencyMs      *float64
	TTL            *int
	Bytes          *int
	TimestampText  string // HH:MM:SS.mmm, or "fail:HH:MM:SS.mmm" / "dns_fail:HH:MM:SS.mmm"
	ResolvedIP     string // set when Address was a hostname
	RecentRawLines []string
}

// MaxRecentRawLines bounds the ring buffer of raw echo-utility output kept
// per target for debugging, mirroring the original Python tool's scrollback.
const MaxRecentRawLines = 32

// PushRawLine appends a raw echo-utility output line, evicting the oldest
// entry once the ring buffer is full.
func (o *LastOutcome) PushRawLine(line string) {
	o.RecentRawLines = append(o.RecentRawLines, line)
	if len(o.RecentRawLines) > MaxRecentRawLines {
		o.RecentRawLines = o.RecentRawLines[len(o.RecentRawLines)-MaxRecentRawLines:]
	}
}
