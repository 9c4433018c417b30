package prober

import (
	"regexp"
	"strconv"
)

var (
	latencyPattern = regexp.MustCompile(`time[=<]([0-9]+(?:\.[0-9]+)?)`)
	ttlPattern     = regexp.MustCompile(`(?i)ttl=([0-9]+)`)
	bytesPattern   = regexp.MustCompile(`(?m)^\s*([0-9]+)\s+bytes from`)
)

// parsed holds the three optional fields pulled from one echo-utility
// invocation's stdout (spec.md §4.4 step 3). Any field the output omits
// stays nil — absence is reported, never coerced into a failure.
type parsed struct {
	LatencyMs *float64
	TTL       *int
	Bytes     *int
}

// parseEchoOutput extracts latency/ttl/bytes from raw ping stdout. It never
// returns an error: a line that matches none of the patterns simply yields
// an all-nil parsed, matching spec.md's "missing fields are reported as
// absent, not as failure."
func parseEchoOutput(stdout string) parsed {
	var p parsed
	if m := latencyPattern.FindStringSubmatch(stdout); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.LatencyMs = &v
		}
	}
	if m := ttlPattern.FindStringSubmatch(stdout); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			p.TTL = &v
		}
	}
	if m := bytesPattern.FindStringSubmatch(stdout); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			p.Bytes = &v
		}
	}
	return p
}
