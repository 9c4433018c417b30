// Package resolver maps a Target's address to a literal IPv4 string
// (spec.md §4.2), grounded on the original Python tool's is_ipv4()/resolve_dns()
// helpers (_examples/original_source/icmp_monitor/icmp_monitor.py).
package resolver

import (
	"context"
	"fmt"
	"net"
	"regexp"
)

// ErrDNSFailure is returned when hostname resolution yields no IPv4 address.
var ErrDNSFailure = fmt.Errorf("resolver: dns resolution failed")

var ipv4Pattern = regexp.MustCompile(
	`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`,
)

// IsLiteralIPv4 reports whether addr is already a dotted-quad IPv4 literal.
func IsLiteralIPv4(addr string) bool {
	return ipv4Pattern.MatchString(addr)
}

// Lookup abstracts DNS resolution so it can be faked in tests.
type Lookup interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

type netLookup struct{ resolver *net.Resolver }

func (n netLookup) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	return n.resolver.LookupIPAddr(ctx, host)
}

// DefaultLookup uses the standard library resolver.
func DefaultLookup() Lookup { return netLookup{resolver: net.DefaultResolver} }

// Resolve returns addr unchanged when it is already a literal IPv4 address;
// otherwise it performs a name lookup via lookup and returns the first IPv4
// address found, or wraps ErrDNSFailure.
func Resolve(ctx context.Context, lookup Lookup, addr string) (string, error) {
	if IsLiteralIPv4(addr) {
		return addr, nil
	}
	addrs, err := lookup.LookupIPAddr(ctx, addr)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDNSFailure, addr, err)
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", fmt.Errorf("%w: %s: no IPv4 address found", ErrDNSFailure, addr)
}
